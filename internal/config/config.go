package config

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/kaidobit/mediacache/internal/domain"
)

// Load loads configuration from multiple sources:
// 1. Config file (config.yaml, optional)
// 2. Environment variables (MEDIACACHE_*)
// 3. Flags bound by the CLI
func Load() (*domain.Config, error) {
	cfg := &domain.Config{}

	cfg.StoreDir = viper.GetString("store_dir")
	cfg.Passphrase = viper.GetString("passphrase")
	cfg.LogLevel = viper.GetString("log_level")

	if cfg.StoreDir == "" {
		cfg.StoreDir = "."
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log_level: %s", cfg.LogLevel)
	}

	return cfg, nil
}
