package appconf

import (
	"errors"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"linfer.allora.network/internal/inference"
)

// Flag names shared by every subcommand.
const (
	FlagConfig       = "config"
	FlagEnvFile      = "env-file"
	FlagPort         = "port"
	FlagEnv          = "env"
	FlagAPIKeys      = "api-keys"
	FlagRateLimit    = "rate-limit"
	FlagLogLevel     = "log-level"
	FlagFormat       = "format"
	FlagSlope        = "slope"
	FlagIntercept    = "intercept"
	FlagMaxDeviation = "max-deviation"
	FlagTimezone     = "timezone"
	FlagSeed         = "seed"
)

// RegisterFlags defines the configuration flags on fs. Defaults are shown in
// help output only; ApplyFlags copies a flag into the config only when the
// user set it, so lower precedence sources are not clobbered.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()

	fs.String(FlagConfig, "", "Path to a YAML config file")
	fs.StringSlice(FlagEnvFile, []string{DefaultDotEnv}, "Env files to load before reading the environment")
	fs.Int(FlagPort, def.Port, "HTTP server port")
	fs.String(FlagEnv, def.Env.String(), "Environment (development|test|production)")
	fs.String(FlagAPIKeys, "", "Comma separated API keys required on /api routes")
	fs.Int(FlagRateLimit, def.RateLimit, "Requests per second allowed per API key")
	fs.String(FlagLogLevel, def.LogLevel, "Log level (debug|info|warn|error)")
	fs.String(FlagFormat, "", "Output format (pydict|json)")
	fs.Float64(FlagSlope, def.Model.Slope, "Slope a of a*t + b")
	fs.Float64(FlagIntercept, def.Model.Intercept, "Intercept b of a*t + b")
	// A string flag so the value is parsed like MAX_DEVIATION and rejected
	// with the same message.
	fs.String(FlagMaxDeviation, strconv.FormatInt(def.Model.MaxDeviation, 10), "Bound of the uniform deviation (overrides "+inference.MaxDeviationEnv+")")
	fs.String(FlagTimezone, def.Model.Timezone, "Timezone the clock is read in")
	fs.Uint64(FlagSeed, 0, "Seed for the deviation source; 0 picks a random seed")
}

// ApplyFlags overrides cfg with the flags explicitly set on fs.
func ApplyFlags(fs *pflag.FlagSet, cfg *Config) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if fs.Changed(FlagPort) {
		v, err := fs.GetInt(FlagPort)
		collect(err)
		cfg.Port = v
	}
	if fs.Changed(FlagEnv) {
		v, err := fs.GetString(FlagEnv)
		collect(err)
		cfg.Env = EnvFlagToEnvironment(v)
	}
	if fs.Changed(FlagAPIKeys) {
		v, err := fs.GetString(FlagAPIKeys)
		collect(err)
		cfg.ApiKeys = SplitAPIKeys(v)
	}
	if fs.Changed(FlagRateLimit) {
		v, err := fs.GetInt(FlagRateLimit)
		collect(err)
		cfg.RateLimit = v
	}
	if fs.Changed(FlagLogLevel) {
		v, err := fs.GetString(FlagLogLevel)
		collect(err)
		cfg.LogLevel = v
	}
	if fs.Changed(FlagFormat) {
		v, err := fs.GetString(FlagFormat)
		collect(err)
		cfg.Format = v
	}
	if fs.Changed(FlagSlope) {
		v, err := fs.GetFloat64(FlagSlope)
		collect(err)
		cfg.Model.Slope = v
	}
	if fs.Changed(FlagIntercept) {
		v, err := fs.GetFloat64(FlagIntercept)
		collect(err)
		cfg.Model.Intercept = v
	}
	if fs.Changed(FlagMaxDeviation) {
		raw, err := fs.GetString(FlagMaxDeviation)
		collect(err)
		if v, err := inference.ParseMaxDeviation(raw); err != nil {
			collect(err)
		} else {
			cfg.Model.MaxDeviation = v
		}
	}
	if fs.Changed(FlagTimezone) {
		v, err := fs.GetString(FlagTimezone)
		collect(err)
		cfg.Model.Timezone = v
	}
	if fs.Changed(FlagSeed) {
		v, err := fs.GetUint64(FlagSeed)
		collect(err)
		cfg.Model.Seed = v
	}

	return errors.Join(errs...)
}

// Resolve builds the effective configuration from every source, lowest
// precedence first: defaults, config file, env files, process environment,
// flags.
func Resolve(fs *pflag.FlagSet) (Config, error) {
	cfg := Default()

	path, err := fs.GetString(FlagConfig)
	if err != nil {
		return cfg, err
	}
	if path != "" {
		if cfg, err = LoadFile(path, cfg); err != nil {
			return cfg, err
		}
	}

	envFiles, err := fs.GetStringSlice(FlagEnvFile)
	if err != nil {
		return cfg, err
	}
	if err := LoadDotEnv(envFiles...); err != nil {
		return cfg, err
	}

	// Environment and flag errors are reported unwrapped: the CLI prints
	// them as the error line.
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := ApplyFlags(fs, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
