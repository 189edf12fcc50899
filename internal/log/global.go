package log

import (
	"os"
	"sync"
)

var (
	defaultLogger *Logger
	loggerMu      sync.RWMutex
)

// SetDefaultLogger replaces the process-wide logger. Passing nil makes the
// next DefaultLogger call rebuild it from the environment.
func SetDefaultLogger(logger *Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
}

// DefaultLogger returns the process-wide logger. Until a command installs
// one, it is built from DefaultConfig adjusted by CANVASS_LOG_LEVEL and
// CANVASS_LOG_FORMAT, so packages that log before the config is loaded
// still respect those variables.
func DefaultLogger() *Logger {
	loggerMu.RLock()
	l := defaultLogger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(EnvConfig(os.LookupEnv))
	}
	return defaultLogger
}

// EnvConfig returns DefaultConfig with the level and format taken from
// CANVASS_LOG_LEVEL and CANVASS_LOG_FORMAT when they are set.
func EnvConfig(lookup func(string) (string, bool)) Config {
	cfg := DefaultConfig()
	if v, ok := lookup("CANVASS_LOG_LEVEL"); ok && v != "" {
		cfg.Level = ParseLevel(v)
	}
	if v, ok := lookup("CANVASS_LOG_FORMAT"); ok && v != "" {
		cfg.Format = ParseFormat(v)
	}
	return cfg
}
