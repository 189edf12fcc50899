package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/canvass/internal/auth"
	"github.com/felixgeelhaar/canvass/internal/health"
	"github.com/felixgeelhaar/canvass/internal/log"
	"github.com/felixgeelhaar/canvass/internal/metrics"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
	"github.com/felixgeelhaar/canvass/internal/server"
	"github.com/felixgeelhaar/canvass/internal/store"
	"github.com/felixgeelhaar/canvass/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the canvass backend",
	Long: `Run the reference backend the CLI talks to.

The server stores questionnaires and answers in the configured store
(memory, sqlite3, postgres or mongo), optionally caching prior answers in
Redis, and issues signed session tokens. auth.secret (or
CANVASS_AUTH_SECRET) must be set.

Endpoints:
  POST /v1/sessions                          log in
  GET  /v1/questionnaires[/{id}[/responses]] questionnaires and prior answers
  POST /v1/responses                         submit answers
  /health/live, /health/ready, /health/startup, /healthz
  /metrics                                   Prometheus metrics

The server drains connections on SIGTERM or SIGINT.

Examples:
  CANVASS_AUTH_SECRET=dev canvass serve
  canvass serve --addr :9090 --shutdown-timeout 60s`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "address to listen on (overrides server.address)")
	serveCmd.Flags().Duration("shutdown-timeout", 0, "maximum time to drain connections (overrides server.shutdown_timeout)")
	serveCmd.Flags().Bool("seed", true, "load the built-in questionnaire catalog into the store")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cc.Close()

	cfg := cc.Config
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Address = addr
	}
	if d, _ := cmd.Flags().GetDuration("shutdown-timeout"); d > 0 {
		cfg.Server.ShutdownTimeout = d
	}
	if err := cfg.RequireAuthSecret(); err != nil {
		return err
	}

	if cfg.Log.File == "" {
		cc.setLogger(log.ServerConfig())
	}
	logger := cc.Logger

	ctx := cmd.Context()
	info := version.GetInfo()
	reg, m := metrics.NewRegistry()

	st, err := store.Open(ctx, cfg.StoreOptions(), logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.WithError(err).Warn("closing store")
		}
	}()

	if seed, _ := cmd.Flags().GetBool("seed"); seed {
		added, err := store.Seed(ctx, st, questionnaire.Catalog())
		if err != nil {
			return err
		}
		logger.Info("seeded questionnaires", "added", added)
	}

	issuer, err := auth.NewIssuer([]byte(cfg.Auth.Secret), cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	pm := health.NewProbeManager(info.Version)
	pm.AddChecker(health.NewStoreChecker("store", st))

	srv, err := server.NewServer(server.Config{
		Address:         cfg.Server.Address,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, server.Deps{
		Store:    st,
		Issuer:   issuer,
		Probes:   pm,
		Metrics:  m,
		Gatherer: reg,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	logger.Info("starting canvass backend",
		"version", info.Version,
		"addr", cfg.Server.Address,
		"store", cfg.Store.Driver,
		"cache", cfg.Store.RedisAddr != "",
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("received shutdown signal, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		logger.Info("server stopped gracefully")
		return nil
	}
}
