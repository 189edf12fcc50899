package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/store"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, store.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Error(t, cfg.RequireAuthSecret(), "no secret by default")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Address, cfg.Server.Address)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://canvass.example.com
log:
  level: debug
store:
  driver: sqlite3
  dsn: file:canvass.db
  cache_ttl: 5m
server:
  shutdown_timeout: 10s
`), 0o600))

	t.Setenv("CANVASS_LOG_FORMAT", "json")
	t.Setenv("CANVASS_AUTH_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://canvass.example.com", cfg.APIURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, store.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Store.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, ":8080", cfg.Server.Address, "unset keys keep defaults")
	assert.NoError(t, cfg.RequireAuthSecret())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CANVASS_SERVER_ADDR=:9999\n"), 0o600))
	t.Setenv("CANVASS_SERVER_ADDR", "")
	require.NoError(t, os.Unsetenv("CANVASS_SERVER_ADDR"))

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Address)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unclosed"), 0o600))

	_, err := Load(path)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileUnmarshal))
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"CANVASS_API_URL":          "http://backend:8080",
		"CANVASS_STORE_DRIVER":     "mongo",
		"CANVASS_STORE_DSN":        "mongodb://localhost:27017",
		"CANVASS_REDIS_ADDR":       "localhost:6379",
		"CANVASS_REDIS_DB":         "2",
		"CANVASS_TOKEN_TTL":        "1h",
		"CANVASS_SHUTDOWN_TIMEOUT": "5s",
		"UNRELATED":                "x",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://backend:8080", cfg.APIURL)
	assert.Equal(t, store.DriverMongo, cfg.Store.Driver)
	assert.Equal(t, 2, cfg.Store.RedisDB)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)

	opts := cfg.StoreOptions()
	assert.Equal(t, "mongodb://localhost:27017", opts.DSN)
	assert.Equal(t, "localhost:6379", opts.RedisAddr)
	assert.Equal(t, 15*time.Minute, opts.CacheTTL)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"duration": {"CANVASS_CACHE_TTL": "soon"},
		"number":   {"CANVASS_REDIS_DB": "one"},
	} {
		t.Run(name, func(t *testing.T) {
			err := Default().ApplyEnv(envMap(env))
			assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad url", func(c *Config) { c.APIURL = "localhost:8080" }, "api_url"},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"no address", func(c *Config) { c.Server.Address = "" }, "server.address"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "oracle" }, "store.driver"},
		{"sql without dsn", func(c *Config) { c.Store.Driver = store.DriverPostgres }, "store.dsn"},
		{"negative redis db", func(c *Config) { c.Store.RedisDB = -1 }, "store.redis_db"},
		{"zero token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "auth.token_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Store.CacheTTL = 2 * time.Minute
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded := Default()
	require.NoError(t, loaded.mergeFile(path))
	assert.Equal(t, cfg, loaded)
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Auth.Secret = "hunter2"
	cfg.Store.RedisPassword = "pw"

	r := cfg.Redacted()
	assert.Equal(t, "********", r.Auth.Secret)
	assert.Equal(t, "********", r.Store.RedisPassword)
	assert.Equal(t, "hunter2", cfg.Auth.Secret, "original untouched")
}
