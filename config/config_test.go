package config

import (
	"flag"
	"io"
	"strings"
	"testing"
	"time"
)

func load(t *testing.T, args []string, env map[string]string) (Config, error) {
	t.Helper()
	c := Default()
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c.RegisterFlags(fs)
	err := c.Load(fs, args, func(k string) string { return env[k] })
	return c, err
}

func TestDefaults(t *testing.T) {
	c, err := load(t, nil, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.SweepInterval != 5*time.Minute || c.IdleTimeout != 10*time.Minute {
		t.Fatalf("sweep defaults = %s / %s", c.SweepInterval, c.IdleTimeout)
	}
	if !strings.HasSuffix(c.TempDir, "pdf-master-pro") {
		t.Fatalf("TempDir = %q", c.TempDir)
	}
	if c.MaxConns != 64 || c.LogLevel != "info" || c.LogJSON {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestEnvironmentFallback(t *testing.T) {
	env := map[string]string{
		"PDFMASTER_ADDR":           ":9000",
		"PDFMASTER_IDLE_TIMEOUT":   "30s",
		"PDFMASTER_MAX_CONNS":      "8",
		"PDFMASTER_LOG_JSON":       "true",
		"PDFMASTER_SWEEP_INTERVAL": "1m",
	}
	c, err := load(t, []string{"-addr", "127.0.0.1:7000", "-max-conns", "4"}, env)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Addr != "127.0.0.1:7000" || c.MaxConns != 4 {
		t.Fatalf("flags must win over environment: %+v", c)
	}
	if c.IdleTimeout != 30*time.Second || c.SweepInterval != time.Minute || !c.LogJSON {
		t.Fatalf("environment not applied: %+v", c)
	}
}

func TestInvalidEnvironment(t *testing.T) {
	_, err := load(t, nil, map[string]string{"PDFMASTER_MAX_CONNS": "many"})
	if err == nil || !strings.Contains(err.Error(), "PDFMASTER_MAX_CONNS") {
		t.Fatalf("Load() error = %v, want mention of PDFMASTER_MAX_CONNS", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"interval", []string{"-sweep-interval", "0s"}, "sweep-interval"},
		{"idle", []string{"-idle-timeout", "-1s"}, "idle-timeout"},
		{"upload", []string{"-max-upload", "0"}, "max-upload"},
		{"conns", []string{"-max-conns", "0"}, "max-conns"},
		{"level", []string{"-log-level", "loud"}, "log-level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.args, nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestEnvName(t *testing.T) {
	if got := EnvName("shutdown-timeout"); got != "PDFMASTER_SHUTDOWN_TIMEOUT" {
		t.Fatalf("EnvName() = %q", got)
	}
}

func TestLogger(t *testing.T) {
	c := Default()
	c.LogLevel = "debug"
	if _, err := c.Logger(); err != nil {
		t.Fatalf("Logger() error = %v", err)
	}
}
