package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr        string `env:"EMPIRES_API_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	// Store selects the backing store: "postgres" or "memory". Memory
	// is for local play and tests only.
	Store       string `env:"EMPIRES_STORE" envDefault:"postgres"`
	CatalogPath string `env:"EMPIRES_SYNERGY_CATALOG"`

	SweepEvery   time.Duration `env:"EMPIRES_FLOW_SWEEP_EVERY" envDefault:"1m"`
	FlowTimeout  time.Duration `env:"EMPIRES_FLOW_TIMEOUT" envDefault:"10s"`
	FlowWorkers  int           `env:"EMPIRES_FLOW_WORKERS" envDefault:"4"`
	FlowBatch    int           `env:"EMPIRES_FLOW_BATCH_LIMIT" envDefault:"256"`
	TouchEmpires bool          `env:"EMPIRES_FLOW_TOUCH_EMPIRES" envDefault:"false"`
}

type CLIConfig struct {
	APIBaseURL string `env:"EMP_API_BASE_URL" envDefault:"http://localhost:8080"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	// Platform-style PORT wins over the explicit addr.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Addr = port
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	switch cfg.Store {
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required when EMPIRES_STORE=postgres")
		}
	case "memory":
	default:
		return cfg, fmt.Errorf("EMPIRES_STORE must be postgres or memory, got %q", cfg.Store)
	}
	if cfg.SweepEvery <= 0 {
		return cfg, fmt.Errorf("EMPIRES_FLOW_SWEEP_EVERY must be > 0")
	}
	if cfg.FlowWorkers <= 0 {
		return cfg, fmt.Errorf("EMPIRES_FLOW_WORKERS must be > 0")
	}
	return cfg, nil
}

func LoadCLI() (CLIConfig, error) {
	var cfg CLIConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return cfg, nil
}
