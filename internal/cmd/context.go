package cmd

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/canvass/internal/api"
	"github.com/felixgeelhaar/canvass/internal/config"
	"github.com/felixgeelhaar/canvass/internal/identity"
	"github.com/felixgeelhaar/canvass/internal/log"
)

// CommandContext carries what a command needs: the effective configuration,
// a logger and the identity store. Commands build it in RunE instead of
// reading package globals.
type CommandContext struct {
	Config     *config.Config
	ConfigPath string
	Logger     *log.Logger

	identity identity.Store
	closers  []func() error
}

// NewCommandContext loads the configuration named by --config, applies the
// global flags on top and sets up logging to stderr, or to log.file when
// configured.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cc := &CommandContext{Config: cfg, ConfigPath: path}

	logCfg := log.DefaultConfig()
	if cfg.Log.File != "" {
		out, closeFn, err := log.OutputFile(cfg.Log.File)
		if err != nil {
			return nil, err
		}
		logCfg.Output = out
		cc.closers = append(cc.closers, closeFn)
	}
	cc.setLogger(logCfg)
	return cc, nil
}

// applyFlags overrides cfg with the global flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	for flag, dst := range map[string]*string{
		"log-level":  &cfg.Log.Level,
		"log-format": &cfg.Log.Format,
		"api-url":    &cfg.APIURL,
	} {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		v, err := cmd.Flags().GetString(flag)
		if err != nil {
			return err
		}
		*dst = v
	}
	return cfg.Validate()
}

func (cc *CommandContext) setLogger(base log.Config) {
	base.Level = log.ParseLevel(cc.Config.Log.Level)
	base.Format = log.ParseFormat(cc.Config.Log.Format)
	cc.Logger = log.New(base)
	log.SetDefaultLogger(cc.Logger)
}

// LogToFile redirects logging to path unless log.file is already set. The
// TUI uses it so log lines do not tear the screen.
func (cc *CommandContext) LogToFile(path string) error {
	if cc.Config.Log.File != "" {
		return nil
	}
	out, closeFn, err := log.OutputFile(path)
	if err != nil {
		return err
	}
	cc.closers = append(cc.closers, closeFn)

	logCfg := log.DefaultConfig()
	logCfg.Output = out
	cc.setLogger(logCfg)
	return nil
}

// DefaultLogPath returns ~/.canvass/canvass.log.
func DefaultLogPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "canvass.log"), nil
}

// IdentityStore returns the store holding the logged-in user.
func (cc *CommandContext) IdentityStore() (identity.Store, error) {
	if cc.identity != nil {
		return cc.identity, nil
	}
	path, err := identity.DefaultPath()
	if err != nil {
		return nil, err
	}
	cc.identity = identity.NewFileStore(path)
	return cc.identity, nil
}

// Session restores the saved identity.
func (cc *CommandContext) Session(ctx context.Context) (*identity.Session, error) {
	st, err := cc.IdentityStore()
	if err != nil {
		return nil, err
	}
	s := identity.NewSession(st)
	if err := s.Restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Client returns a backend client carrying the session token, if any.
func (cc *CommandContext) Client(s *identity.Session) *api.Client {
	opts := []api.ClientOption{api.WithLogger(cc.Logger)}
	if s != nil && s.Token() != "" {
		opts = append(opts, api.WithToken(s.Token()))
	}
	return api.NewClient(cc.Config.APIURL, opts...)
}

// Close releases log files opened for the command.
func (cc *CommandContext) Close() {
	for _, c := range cc.closers {
		_ = c()
	}
}
