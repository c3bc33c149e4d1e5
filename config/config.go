// Package config holds the settings of the pdfmaster server and command
// line. Values come from flags, then PDFMASTER_* environment variables, then
// defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wudi/pdfmaster/observability"
	"github.com/wudi/pdfmaster/tempstore"
)

// EnvPrefix prefixes the environment variable of every flag: -max-conns is
// read from PDFMASTER_MAX_CONNS.
const EnvPrefix = "PDFMASTER_"

type Config struct {
	Addr            string
	TempDir         string
	SweepInterval   time.Duration
	IdleTimeout     time.Duration
	MaxUpload       int64
	MaxConns        int
	ShutdownTimeout time.Duration
	LogLevel        string
	LogJSON         bool
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:            ":8000",
		TempDir:         filepath.Join(os.TempDir(), "pdf-master-pro"),
		SweepInterval:   tempstore.DefaultSweepInterval,
		IdleTimeout:     tempstore.DefaultIdleTimeout,
		MaxUpload:       100 << 20,
		MaxConns:        64,
		ShutdownTimeout: 15 * time.Second,
		LogLevel:        "info",
	}
}

// RegisterFlags binds c to flags on fs using the current values of c as
// defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fs.StringVar(&c.TempDir, "temp-dir", c.TempDir, "Directory for uploads and results")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "How often stale temp files are removed")
	fs.DurationVar(&c.IdleTimeout, "idle-timeout", c.IdleTimeout, "Age after which an unused temp file is removed")
	fs.Int64Var(&c.MaxUpload, "max-upload", c.MaxUpload, "Maximum request body size in bytes")
	fs.IntVar(&c.MaxConns, "max-conns", c.MaxConns, "Maximum concurrent connections")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "Grace period for in-flight requests on shutdown")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.BoolVar(&c.LogJSON, "log-json", c.LogJSON, "Emit JSON logs")
}

// Load parses args with fs, which must have c's flags registered, and fills
// every flag not given on the command line from the environment.
func (c *Config) Load(fs *flag.FlagSet, args []string, getenv func(string) string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var errs []error
	fs.VisitAll(func(f *flag.Flag) {
		if set[f.Name] {
			return
		}
		key := EnvName(f.Name)
		v := getenv(key)
		if v == "" {
			return
		}
		if err := fs.Set(f.Name, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	})
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return c.Validate()
}

// EnvName returns the environment variable consulted for flag name.
func EnvName(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.TempDir == "" {
		errs = append(errs, errors.New("temp-dir must not be empty"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("sweep-interval must be positive, got %s", c.SweepInterval))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("idle-timeout must be positive, got %s", c.IdleTimeout))
	}
	if c.MaxUpload <= 0 {
		errs = append(errs, fmt.Errorf("max-upload must be positive, got %d", c.MaxUpload))
	}
	if c.MaxConns <= 0 {
		errs = append(errs, fmt.Errorf("max-conns must be positive, got %d", c.MaxConns))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("shutdown-timeout must not be negative, got %s", c.ShutdownTimeout))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log-level: %w", err))
	}
	return errors.Join(errs...)
}

// Logger builds the logger described by c.
func (c Config) Logger() (observability.Logger, error) {
	return observability.NewLogger(c.LogLevel, c.LogJSON)
}
