// Package config holds the settings of the authctl command-line client.
// Values come from defaults, an optional JSON file and AUTHCTL_* environment
// variables, in that order; command-line flags are applied by the caller.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime settings for authctl.
type Config struct {
	ServerURL   string        `env:"AUTHCTL_SERVER, overwrite"`
	SessionFile string        `env:"AUTHCTL_SESSION_FILE, overwrite"`
	Timeout     time.Duration `env:"AUTHCTL_TIMEOUT, overwrite"`
}

// LoadDefaults populates c with development defaults. The session file
// lives under the user's config directory when one is available.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:5000"
	c.Timeout = 10 * time.Second

	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c.SessionFile = filepath.Join(dir, "authkeeper", "session")
}

// LoadConfig builds a Config from defaults, the JSON file at path (if not
// empty) and the process environment.
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	return load(ctx, path, envconfig.OsLookuper())
}

func load(ctx context.Context, path string, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, path); err != nil {
		return nil, err
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}
	return cfg, nil
}
