// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"time"

	"github.com/okian/fedbench/internal/domain/convergence"
	"github.com/okian/fedbench/internal/domain/objective"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches the log handler to JSON.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Patience and Eps are the stopping defaults for runs created without them.
	Patience int     `koanf:"patience"`
	Eps      float64 `koanf:"eps"`

	// KeyToMonitor is the default record key fed to the checker.
	KeyToMonitor string `koanf:"key_to_monitor"`

	// MaxRuns caps rounds per run; 0 disables the cap.
	MaxRuns int `koanf:"max_runs"`

	// RunTimeout caps the wall time of a run; 0 disables it.
	RunTimeout time.Duration `koanf:"run_timeout"`

	// MaxActiveRuns bounds how many runs the store holds.
	MaxActiveRuns int `koanf:"max_active_runs"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		ShutdownTimeout: 10 * time.Second,
		Patience:        convergence.DefaultPatience,
		Eps:             convergence.DefaultEps,
		KeyToMonitor:    objective.DefaultKey,
		MaxActiveRuns:   1024,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Patience <= 0:
		return fmt.Errorf("%w: patience must be positive, got %d", ErrInvalidConfig, c.Patience)
	case c.Eps <= 0 || c.Eps >= 1:
		return fmt.Errorf("%w: eps must be in (0,1), got %v", ErrInvalidConfig, c.Eps)
	case c.KeyToMonitor == "":
		return fmt.Errorf("%w: key_to_monitor must not be empty", ErrInvalidConfig)
	case c.MaxRuns < 0:
		return fmt.Errorf("%w: max_runs must not be negative", ErrInvalidConfig)
	case c.RunTimeout < 0:
		return fmt.Errorf("%w: run_timeout must not be negative", ErrInvalidConfig)
	case c.MaxActiveRuns <= 0:
		return fmt.Errorf("%w: max_active_runs must be positive", ErrInvalidConfig)
	}
	return nil
}
