// Package config loads canvass settings.
//
// Values are layered, later layers winning:
//
//  1. built-in defaults
//  2. the YAML file (~/.canvass/config.yaml unless --config is given)
//  3. CANVASS_* environment variables, including those from a .env file
//
// Command line flags are applied on top by the cmd package.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/canvass/internal/api"
	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CANVASS_"

// Config is the full canvass configuration.
type Config struct {
	APIURL string       `yaml:"api_url"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Auth   AuthConfig   `yaml:"auth"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text" or "json"
	File   string `yaml:"file,omitempty"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver        string        `yaml:"driver"` // memory, sqlite3, postgres, mongo
	DSN           string        `yaml:"dsn,omitempty"`
	Database      string        `yaml:"database,omitempty"`
	RedisAddr     string        `yaml:"redis_addr,omitempty"`
	RedisPassword string        `yaml:"redis_password,omitempty"`
	RedisDB       int           `yaml:"redis_db,omitempty"`
	CacheTTL      time.Duration `yaml:"cache_ttl,omitempty"`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret,omitempty"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		APIURL: api.DefaultBaseURL,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Address:         ":8080",
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver:   store.DriverMemory,
			Database: store.DefaultMongoDatabase,
			CacheTTL: 15 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
	}
}

// Dir returns ~/.canvass, where the config, identity and log files live.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to get home directory", err)
	}
	return filepath.Join(home, ".canvass"), nil
}

// DefaultPath returns ~/.canvass/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load builds the configuration from defaults, the file at path and the
// environment. A missing file is not an error. An empty path means
// DefaultPath.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFiles reads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
// With no arguments it reads ./.env.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.NewFileUnmarshalError(f, "dotenv", err)
		}
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read config", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.NewFileUnmarshalError(path, "YAML", err)
	}
	return nil
}

// ApplyEnv overrides fields from CANVASS_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("%s%s: invalid duration %q", EnvPrefix, name, v), err)
		}
		*dst = d
		return nil
	}

	str("API_URL", &c.APIURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)
	str("SERVER_ADDR", &c.Server.Address)
	str("STORE_DRIVER", &c.Store.Driver)
	str("STORE_DSN", &c.Store.DSN)
	str("STORE_DATABASE", &c.Store.Database)
	str("REDIS_ADDR", &c.Store.RedisAddr)
	str("REDIS_PASSWORD", &c.Store.RedisPassword)
	str("AUTH_SECRET", &c.Auth.Secret)

	if v, ok := lookup(EnvPrefix + "REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("%sREDIS_DB: invalid number %q", EnvPrefix, v), err)
		}
		c.Store.RedisDB = n
	}
	for name, dst := range map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT": &c.Server.ShutdownTimeout,
		"CACHE_TTL":        &c.Store.CacheTTL,
		"TOKEN_TTL":        &c.Auth.TokenTTL,
	} {
		if err := dur(name, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks every field the CLI and the server rely on. The auth
// secret is checked separately by RequireAuthSecret since only the server
// needs it.
func (c *Config) Validate() error {
	var problems []string

	if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("api_url %q must be an http(s) URL", c.APIURL))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}

	if c.Server.Address == "" {
		problems = append(problems, "server.address must not be empty")
	}
	if c.Server.ShutdownTimeout < 0 {
		problems = append(problems, "server.shutdown_timeout must not be negative")
	}

	switch c.Store.Driver {
	case store.DriverMemory:
	case store.DriverSQLite, store.DriverPostgres, store.DriverMongo:
		if c.Store.DSN == "" {
			problems = append(problems, fmt.Sprintf("store.dsn is required for driver %s", c.Store.Driver))
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q must be memory, sqlite3, postgres or mongo", c.Store.Driver))
	}
	if c.Store.RedisDB < 0 {
		problems = append(problems, "store.redis_db must not be negative")
	}
	if c.Store.CacheTTL < 0 {
		problems = append(problems, "store.cache_ttl must not be negative")
	}
	if c.Auth.TokenTTL <= 0 {
		problems = append(problems, "auth.token_ttl must be positive")
	}

	if len(problems) > 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "invalid configuration: "+strings.Join(problems, "; ")).
			WithSuggestion("Run 'canvass config view' to inspect the effective configuration")
	}
	return nil
}

// RequireAuthSecret fails when no token signing secret is configured.
func (c *Config) RequireAuthSecret() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "auth.secret is required to run the server").
			WithSuggestion("Set " + EnvPrefix + "AUTH_SECRET or auth.secret in the config file")
	}
	return nil
}

// StoreOptions converts the store section for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:        c.Store.Driver,
		DSN:           c.Store.DSN,
		Database:      c.Store.Database,
		RedisAddr:     c.Store.RedisAddr,
		RedisPassword: c.Store.RedisPassword,
		RedisDB:       c.Store.RedisDB,
		CacheTTL:      c.Store.CacheTTL,
	}
}

// Redacted returns a copy safe to print: secrets are masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Auth.Secret != "" {
		out.Auth.Secret = "********"
	}
	if out.Store.RedisPassword != "" {
		out.Store.RedisPassword = "********"
	}
	return &out
}

// Save writes c as YAML to path with owner-only permissions.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write config", err)
	}
	return nil
}
