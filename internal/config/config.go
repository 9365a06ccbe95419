// Package config loads tn-attest settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "TN_"

// Config holds connection and polling settings.
type Config struct {
	Endpoint   string `env:"ENDPOINT" envDefault:"http://localhost:8484"`
	ChainID    string `env:"CHAIN_ID"`
	PrivateKey string `env:"PRIVATE_KEY"`
	Namespace  string `env:"NAMESPACE" envDefault:"main"`

	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	PollMaxAttempts int           `env:"POLL_MAX_ATTEMPTS" envDefault:"15"`
	FinalityTimeout time.Duration `env:"FINALITY_TIMEOUT" envDefault:"30s"`

	// CacheDir enables the on-disk payload cache when set.
	CacheDir string `env:"CACHE_DIR"`

	// Validators are the addresses accepted as attestation signers.
	Validators []string `env:"VALIDATORS" envSeparator:","`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads envFile (when given) and then the process environment. Without
// an explicit file a .env in the working directory is used if present.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	return Parse(nil)
}

// Parse builds a Config from environment. When environment is nil the process
// environment is used.
func Parse(environment map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Prefix: EnvPrefix}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%sENDPOINT cannot be empty", EnvPrefix)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%sPOLL_INTERVAL must be positive, got %s", EnvPrefix, c.PollInterval)
	}
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("%sPOLL_MAX_ATTEMPTS must be positive, got %d", EnvPrefix, c.PollMaxAttempts)
	}
	if c.FinalityTimeout <= 0 {
		return fmt.Errorf("%sFINALITY_TIMEOUT must be positive, got %s", EnvPrefix, c.FinalityTimeout)
	}
	if _, err := c.ValidatorAddresses(); err != nil {
		return err
	}
	return nil
}

// ValidatorAddresses parses Validators.
func (c *Config) ValidatorAddresses() ([]common.Address, error) {
	return ParseAddresses(c.Validators)
}

// ParseAddresses parses hex addresses, skipping blank entries.
func ParseAddresses(values []string) ([]common.Address, error) {
	var addrs []common.Address
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("invalid validator address %q", v)
		}
		addrs = append(addrs, common.HexToAddress(v))
	}
	return addrs, nil
}
