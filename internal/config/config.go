package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Core
	DatabaseURL     string `env:"DATABASE_URL,required"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	// Server
	Port int `env:"PORT" envDefault:"8080"`

	// Telegram respondent channel (optional)
	TelegramEnabled bool   `env:"TELEGRAM_ENABLED" envDefault:"false"`
	TelegramToken   string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramSurvey  string `env:"TELEGRAM_SURVEY"`

	// Interview behavior
	MaxFollowupProbes    int           `env:"MAX_FOLLOWUP_PROBES" envDefault:"3"`
	SessionIdleTimeout   time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	AbandonSweepInterval time.Duration `env:"ABANDON_SWEEP_INTERVAL" envDefault:"60s"`

	// Model invoker
	UseMockLLM            bool          `env:"USE_MOCK_LLM" envDefault:"false"`
	LLMRequestTimeout     time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"30s"`
	LLMMaxRetries         int           `env:"LLM_MAX_RETRIES" envDefault:"3"`
	SessionCostCeilingUSD float64       `env:"SESSION_COST_CEILING_USD" envDefault:"0.50"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.TelegramEnabled && cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN required when TELEGRAM_ENABLED=true")
	}
	if !cfg.UseMockLLM && cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY required unless USE_MOCK_LLM=true")
	}
	return cfg, nil
}

// CostCeiling returns the per-session provider spend ceiling as a decimal.
func (c *Config) CostCeiling() decimal.Decimal {
	return decimal.NewFromFloat(c.SessionCostCeilingUSD)
}
