// Package appconf resolves the fixture configuration from defaults, an
// optional YAML file, a .env file, the process environment and flags, in
// increasing order of precedence.
package appconf

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"linfer.allora.network/internal/inference"
)

// Default values applied when nothing overrides them.
const (
	DefaultPort      = 8000
	DefaultRateLimit = 100
	DefaultLogLevel  = "info"
	DefaultDotEnv    = ".env"
)

// Environment variables read on top of MAX_DEVIATION.
const (
	EnvPort      = "LINFER_PORT"
	EnvEnv       = "LINFER_ENV"
	EnvAPIKeys   = "LINFER_API_KEYS"
	EnvRateLimit = "LINFER_RATE_LIMIT"
	EnvLogLevel  = "LINFER_LOG_LEVEL"
	EnvFormat    = "LINFER_FORMAT"
	EnvSlope     = "LINFER_SLOPE"
	EnvIntercept = "LINFER_INTERCEPT"
	EnvTimezone  = "LINFER_TIMEZONE"
	EnvSeed      = "LINFER_SEED"
)

// Config holds all the configuration settings for the fixture.
type Config struct {
	Port      int         `yaml:"port"`
	Env       Environment `yaml:"env"`
	ApiKeys   []string    `yaml:"api_keys"`
	RateLimit int         `yaml:"rate_limit"`
	LogLevel  string      `yaml:"log_level"`
	Format    string      `yaml:"format"`
	Model     ModelConfig `yaml:"model"`
}

// ModelConfig holds the linear model parameters.
type ModelConfig struct {
	Slope        float64 `yaml:"slope"`
	Intercept    float64 `yaml:"intercept"`
	MaxDeviation int64   `yaml:"max_deviation"`
	Timezone     string  `yaml:"timezone"`
	// Seed makes the deviation sequence reproducible. Zero draws from the
	// runtime's random source.
	Seed         uint64  `yaml:"seed"`
}

// Default returns the configuration used when no source overrides anything.
func Default() Config {
	params := inference.DefaultParams()
	return Config{
		Port:      DefaultPort,
		Env:       Development,
		RateLimit: DefaultRateLimit,
		LogLevel:  DefaultLogLevel,
		Model: ModelConfig{
			Slope:        params.Slope,
			Intercept:    params.Intercept,
			MaxDeviation: params.MaxDeviation,
			Timezone:     params.Location,
		},
	}
}

// Params converts the model section into inference parameters.
func (c Config) Params() inference.Params {
	return inference.Params{
		Slope:        c.Model.Slope,
		Intercept:    c.Model.Intercept,
		MaxDeviation: c.Model.MaxDeviation,
		Location:     c.Model.Timezone,
	}
}

// Validate reports configuration values the fixture cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit %d must not be negative", c.RateLimit))
	}
	if c.Format != "" {
		if _, err := inference.ParseFormat(c.Format, inference.FormatPyDict); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := c.Params().LoadLocation(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoadFile reads a YAML config file on top of base. Keys absent from the
// file keep the value from base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{DefaultDotEnv}
	}

	existing := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables found through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error

	if _, ok := lookup(inference.MaxDeviationEnv); ok {
		n, err := inference.MaxDeviationFromEnv(lookup)
		if err != nil {
			errs = append(errs, err)
		} else {
			cfg.Model.MaxDeviation = n
		}
	}
	if v, ok := lookup(EnvPort); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvPort, err))
		} else {
			cfg.Port = n
		}
	}
	if v, ok := lookup(EnvRateLimit); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvRateLimit, err))
		} else {
			cfg.RateLimit = n
		}
	}
	if v, ok := lookup(EnvSlope); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvSlope, err))
		} else {
			cfg.Model.Slope = f
		}
	}
	if v, ok := lookup(EnvIntercept); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvIntercept, err))
		} else {
			cfg.Model.Intercept = f
		}
	}
	if v, ok := lookup(EnvSeed); ok {
		if n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvSeed, err))
		} else {
			cfg.Model.Seed = n
		}
	}
	if v, ok := lookup(EnvEnv); ok {
		cfg.Env = EnvFlagToEnvironment(v)
	}
	if v, ok := lookup(EnvAPIKeys); ok {
		cfg.ApiKeys = SplitAPIKeys(v)
	}
	if v, ok := lookup(EnvLogLevel); ok {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvFormat); ok {
		cfg.Format = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTimezone); ok {
		cfg.Model.Timezone = strings.TrimSpace(v)
	}

	return errors.Join(errs...)
}

// SplitAPIKeys parses a comma separated key list, dropping blanks.
func SplitAPIKeys(raw string) []string {
	var keys []string
	for _, key := range strings.Split(raw, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
