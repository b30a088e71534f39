// Package config handles configuration management for retail-metrics.
// Configuration is loaded from config files and CLI flags (no environment
// variables). CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/shelfsight/retail-metrics/metrics"
)

// Config holds all configuration for retail-metrics.
type Config struct {
	// DBPath is the SQLite database file path.
	DBPath string `mapstructure:"db_path"`

	// Addr is the HTTP listen address for the serve command.
	Addr string `mapstructure:"addr"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Health holds overrides for the health engine defaults.
	Health HealthConfig `mapstructure:"health"`

	// PriceIndex holds overrides for the price index band thresholds.
	PriceIndex PriceIndexConfig `mapstructure:"price_index"`

	// Seed holds configuration for the seed subcommand.
	Seed SeedConfig `mapstructure:"seed"`
}

// HealthConfig holds the health engine's weights and thresholds.
type HealthConfig struct {
	MissingRRPWeight    float64 `mapstructure:"missing_rrp_weight"`
	ExtremePriceWeight  float64 `mapstructure:"extreme_price_weight"`
	NegativeQtyWeight   float64 `mapstructure:"negative_qty_weight"`
	SupplierDriftWeight float64 `mapstructure:"supplier_drift_weight"`

	ExtremePriceMultiplierLow  float64 `mapstructure:"extreme_price_multiplier_low"`
	ExtremePriceMultiplierHigh float64 `mapstructure:"extreme_price_multiplier_high"`

	DriftTolerancePct float64 `mapstructure:"drift_tolerance_pct"`
}

// PriceIndexConfig holds the price band thresholds.
type PriceIndexConfig struct {
	PremiumAbove    float64 `mapstructure:"premium_above"`
	DiscountedBelow float64 `mapstructure:"discounted_below"`
}

// SeedConfig holds configuration for demo data generation.
type SeedConfig struct {
	// Stores, SKUs, Suppliers and Competitors size the generated universe.
	Stores      int `mapstructure:"stores"`
	SKUs        int `mapstructure:"skus"`
	Suppliers   int `mapstructure:"suppliers"`
	Competitors int `mapstructure:"competitors"`

	// Days is the length of the generated sales history.
	Days int `mapstructure:"days"`

	// PromoRuns is how many promotion runs to embed in the history.
	PromoRuns int `mapstructure:"promo_runs"`

	// RandomSeed pins the generator for reproducible data (0 = random).
	RandomSeed uint64 `mapstructure:"random_seed"`
}

// DefaultConfig returns a Config with default values. Engine defaults come
// from the metrics package so config and code cannot drift apart.
func DefaultConfig() *Config {
	h := metrics.DefaultHealthParams()
	p := metrics.DefaultPriceIndexParams()
	return &Config{
		DBPath:   "./data/metrics.db",
		Addr:     ":8080",
		LogLevel: "info",
		Health: HealthConfig{
			MissingRRPWeight:           h.MissingRRPWeight,
			ExtremePriceWeight:         h.ExtremePriceWeight,
			NegativeQtyWeight:          h.NegativeQtyWeight,
			SupplierDriftWeight:        h.SupplierDriftWeight,
			ExtremePriceMultiplierLow:  h.ExtremePriceMultiplierLow,
			ExtremePriceMultiplierHigh: h.ExtremePriceMultiplierHigh,
			DriftTolerancePct:          h.DriftTolerancePct,
		},
		PriceIndex: PriceIndexConfig{
			PremiumAbove:    p.PremiumAbove,
			DiscountedBelow: p.DiscountedBelow,
		},
		Seed: SeedConfig{
			Stores:      6,
			SKUs:        40,
			Suppliers:   5,
			Competitors: 3,
			Days:        120,
			PromoRuns:   3,
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./retail-metrics.yaml
// 3. ~/.config/retail-metrics/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("retail-metrics")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "retail-metrics"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Health.ExtremePriceMultiplierLow >= c.Health.ExtremePriceMultiplierHigh {
		return fmt.Errorf("extreme_price_multiplier_low must be below extreme_price_multiplier_high")
	}
	if c.PriceIndex.DiscountedBelow > c.PriceIndex.PremiumAbove {
		return fmt.Errorf("discounted_below must not exceed premium_above")
	}
	return nil
}

// ValidateServe checks configuration required for the serve command.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	return nil
}

// ValidateSeed checks configuration required for the seed command.
func (c *Config) ValidateSeed() error {
	if err := c.Validate(); err != nil {
		return err
	}
	s := c.Seed
	if s.Stores < 1 || s.SKUs < 1 || s.Suppliers < 1 {
		return fmt.Errorf("seed requires at least one store, sku and supplier")
	}
	if s.Days < 1 {
		return fmt.Errorf("seed days must be at least 1")
	}
	return nil
}

// HealthParams converts the config section into engine parameters.
func (c *Config) HealthParams(scope metrics.Window) metrics.HealthParams {
	return metrics.HealthParams{
		Scope:                      scope,
		MissingRRPWeight:           c.Health.MissingRRPWeight,
		ExtremePriceWeight:         c.Health.ExtremePriceWeight,
		NegativeQtyWeight:          c.Health.NegativeQtyWeight,
		SupplierDriftWeight:        c.Health.SupplierDriftWeight,
		ExtremePriceMultiplierLow:  c.Health.ExtremePriceMultiplierLow,
		ExtremePriceMultiplierHigh: c.Health.ExtremePriceMultiplierHigh,
		DriftTolerancePct:          c.Health.DriftTolerancePct,
	}
}

// PriceIndexParams converts the config section into engine parameters.
func (c *Config) PriceIndexParams(scope metrics.Window) metrics.PriceIndexParams {
	return metrics.PriceIndexParams{
		Scope:           scope,
		PremiumAbove:    c.PriceIndex.PremiumAbove,
		DiscountedBelow: c.PriceIndex.DiscountedBelow,
	}
}
