// Package config loads mechaway's runtime settings through koanf, layering
// provider sources over struct defaults.
package config

import (
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
)

// Config is the full set of runtime settings mechaway reads at startup.
type Config struct {
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	DataDir string `koanf:"data_dir"`
}

// Default returns the documented defaults, used before any provider is
// layered on top.
func Default() *Config {
	return &Config{
		Host:    "0.0.0.0",
		Port:    3004,
		DataDir: "data",
	}
}

// Load builds a Config by layering MECHAWAY_-prefixed environment variables
// over Default(). A malformed MECHAWAY_PORT is ignored and the default port
// is kept.
func Load() (*Config, error) {
	cfg := Default()

	k := koanf.New(".")
	provider := env.Provider("MECHAWAY_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "MECHAWAY_"))
	})

	if err := k.Load(provider, nil); err != nil {
		return nil, err
	}

	if v := k.String("host"); v != "" {
		cfg.Host = v
	}
	if v := k.String("data_dir"); v != "" {
		cfg.DataDir = v
	}
	if v := k.String("port"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	return cfg, nil
}
