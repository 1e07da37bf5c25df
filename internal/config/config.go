// Package config loads process configuration from environment variables,
// with an optional local .env overlay for development, validated with
// struct tags before the process is allowed to serve traffic.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/teresa-solution/x402-gateway/internal/facilitator"
)

// Config is every environment-derived setting named in §6.5.
type Config struct {
	DatabaseURL         string `validate:"required"`
	EncryptionKeyHex    string `validate:"required,len=64"`
	FacilitatorBaseURL  string `validate:"required,url"`
	AppBaseURL          string `validate:"required,url"`
	WalletConnectProject string
	TestnetForce        bool
	AllowLoopbackUpstream bool
	AllowOtherSchemes   bool
	ListenAddr          string `validate:"required"`
	MetricsAddr         string `validate:"required"`
	MainnetUSDCAddress  string `validate:"required"`
	TestnetUSDCAddress  string `validate:"required"`
	RedisAddr           string
}

// EncryptionKey decodes EncryptionKeyHex into the 32 raw bytes
// internal/crypto.NewSealer expects.
func (c Config) EncryptionKey() ([]byte, error) {
	return hex.DecodeString(c.EncryptionKeyHex)
}

// Assets projects the stablecoin addresses into internal/facilitator's
// AssetConfig shape.
func (c Config) Assets() facilitator.AssetConfig {
	return facilitator.AssetConfig{Mainnet: c.MainnetUSDCAddress, Testnet: c.TestnetUSDCAddress}
}

// Load reads a .env file if present (development convenience; silently
// skipped in environments where one doesn't exist, following the teacher's
// pack-mate PixelFox pattern of a best-effort local overlay over real env
// vars) and then builds Config from the process environment, panicking on
// the first validation failure — this process should never serve traffic
// with a half-valid configuration.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		EncryptionKeyHex:      os.Getenv("ENCRYPTION_KEY"),
		FacilitatorBaseURL:    envOrDefault("FACILITATOR_BASE_URL", "https://x402.org/facilitator"),
		AppBaseURL:            os.Getenv("APP_BASE_URL"),
		WalletConnectProject:  os.Getenv("WALLETCONNECT_PROJECT_ID"),
		TestnetForce:          envBool("TESTNET_FORCE"),
		AllowLoopbackUpstream: envBool("ALLOW_LOOPBACK_UPSTREAM"),
		AllowOtherSchemes:     envBool("ALLOW_OTHER_SCHEMES"),
		ListenAddr:            envOrDefault("LISTEN_ADDR", ":8080"),
		MetricsAddr:           envOrDefault("METRICS_ADDR", ":9090"),
		MainnetUSDCAddress:    envOrDefault("MAINNET_USDC_ADDRESS", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		TestnetUSDCAddress:    envOrDefault("TESTNET_USDC_ADDRESS", "0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		panic(fmt.Errorf("config: invalid configuration: %w", err))
	}
	if _, err := cfg.EncryptionKey(); err != nil {
		panic(fmt.Errorf("config: ENCRYPTION_KEY must be 64 hex characters (32 bytes): %w", err))
	}

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return false
	}
	return v
}
