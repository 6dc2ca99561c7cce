// Package config содержит логику чтения конфигурации сервиса.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса управления жилым комплексом.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	DatabaseURI     string `env:"DATABASE_URI"`
	IdentityAddress string `env:"IDENTITY_ADDRESS"`
	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`
	StripeAddress   string `env:"STRIPE_ADDRESS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envIdentityAddress := cfg.IdentityAddress
	envStripeKey := cfg.StripeSecretKey
	envStripeAddress := cfg.StripeAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.IdentityAddress, "i", "", "identity token verifier address")
	flag.StringVar(&cfg.StripeSecretKey, "k", "", "payment provider secret key")
	flag.StringVar(&cfg.StripeAddress, "s", "", "payment provider address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envIdentityAddress != "" {
		cfg.IdentityAddress = envIdentityAddress
	}
	if envStripeKey != "" {
		cfg.StripeSecretKey = envStripeKey
	}
	if envStripeAddress != "" {
		cfg.StripeAddress = envStripeAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
