// Package config loads SDK configuration from the environment, with a
// .env file picked up when present.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/tempopay/checkout/types"
	"github.com/tempopay/checkout/utils"
)

// Config holds endpoint and tuning settings. Defaults target the Tempo
// Moderato testnet.
type Config struct {
	RPCURL         string        `envconfig:"RPC_URL" default:"https://rpc.moderato.tempo.xyz" validate:"required,url"`
	ExplorerAPIURL string        `envconfig:"EXPLORER_API_URL" default:"https://explore.tempo.xyz/api" validate:"required,url"`
	DirectoryURL   string        `envconfig:"DIRECTORY_URL" validate:"omitempty,url"`
	FeeSponsorURL  string        `envconfig:"FEE_SPONSOR_URL" default:"https://sponsor.testnet.tempo.xyz" validate:"omitempty,url"`
	ChainID        uint64        `envconfig:"CHAIN_ID" default:"42431" validate:"required"`
	ScanWindow     int           `envconfig:"SCAN_WINDOW" default:"50" validate:"gt=0"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"5s" validate:"gt=0"`
	MaxSlippage    float64       `envconfig:"MAX_SLIPPAGE" default:"0.005" validate:"gt=0,lt=1"`
	Timeout        time.Duration `envconfig:"TIMEOUT" default:"30s" validate:"gt=0"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	EnableMetrics  bool          `envconfig:"ENABLE_METRICS" default:"false"`
}

// Load reads CHECKOUT_-prefixed environment variables, after loading a
// .env file if one exists.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("checkout", &cfg); err != nil {
		return nil, &types.CheckoutError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("load config: %v", err),
		}
	}

	if err := utils.Validate().Struct(&cfg); err != nil {
		return nil, &types.CheckoutError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("validate config: %v", err),
		}
	}

	return &cfg, nil
}
