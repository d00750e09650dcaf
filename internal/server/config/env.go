package config

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// portEnv carries the bare PORT variable understood by most hosting
// platforms. When set it wins over the HTTP_ADDR host part.
type portEnv struct {
	Port string `env:"PORT"`
}

func osLookuper() envconfig.Lookuper {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()
	return envconfig.OsLookuper()
}

func parseEnv(ctx context.Context, cfg *Config, l envconfig.Lookuper) error {
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: cfg, Lookuper: l}); err != nil {
		return fmt.Errorf("env: %w", err)
	}

	var p portEnv
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &p, Lookuper: l}); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	if p.Port != "" {
		cfg.HTTPAddr = ":" + p.Port
	}
	return nil
}

func load(ctx context.Context, args []string, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(ctx, cfg, l); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
