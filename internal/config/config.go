// Package config provides configuration loading and validation for the traffic collector.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrMissingToken     = errors.New("a GitHub token is required (TRAFFIC_TOKEN or GITHUB_TOKEN)")
	ErrMissingOwner     = errors.New("an account owner is required")
	ErrMissingDataset   = errors.New("a dataset destination is required")
	ErrInvalidOffset    = errors.New("offset days must lie inside the 14-day traffic window")
	ErrInvalidBackfill  = errors.New("backfill days and lag must be positive")
	ErrInvalidDelay     = errors.New("request delay must not be negative")
	ErrInvalidTimezone  = errors.New("invalid timezone")
	ErrInvalidLogFormat = errors.New("log format must be text or json")
)

// Mode selects the defaults of a deployment variant.
type Mode int

const (
	// ModeManual is a one-off local run: offset 13 and a 14-day backfill on the first run.
	ModeManual Mode = iota
	// ModeScheduled is the daily automated collector: offset 1, no backfill.
	ModeScheduled
)

// Default configuration values.
const (
	defaultDataset         = "traffic.csv"
	defaultManualOffset    = 13
	defaultScheduledOffset = 1
	defaultBackfillDays    = 14
	defaultBackfillLag     = 2
	defaultRequestDelay    = "100ms"
	defaultSchedule        = "0 1 * * *"
	trafficWindowDays      = 14
)

// Config holds all configuration for a collection run.
type Config struct {
	Token           string        `mapstructure:"token"`
	Owner           string        `mapstructure:"owner"`
	Dataset         string        `mapstructure:"dataset"`
	OffsetDays      int           `mapstructure:"offset_days"`
	Backfill        bool          `mapstructure:"backfill"`
	BackfillDays    int           `mapstructure:"backfill_days"`
	BackfillLagDays int           `mapstructure:"backfill_lag_days"`
	Force           bool          `mapstructure:"force"`
	RequestDelay    time.Duration `mapstructure:"request_delay"`
	// RateLimitMaxSleep bounds how long a secondary rate limit may be waited out.
	// Zero surfaces the limit as a fetch error instead.
	RateLimitMaxSleep time.Duration `mapstructure:"rate_limit_max_sleep"`
	Timezone          string        `mapstructure:"timezone"`
	Schedule          string        `mapstructure:"schedule"`

	APIURL     string `mapstructure:"api_url"`
	GraphQLURL string `mapstructure:"graphql_url"`
	S3Region   string `mapstructure:"s3_region"`
	S3Endpoint string `mapstructure:"s3_endpoint"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// New returns a viper instance with the defaults of mode and environment bindings.
func New(mode Mode) *viper.Viper {
	v := viper.New()
	setDefaults(v, mode)

	v.SetEnvPrefix("TRAFFIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("token", "TRAFFIC_TOKEN", "GITHUB_TOKEN")
	return v
}

func setDefaults(v *viper.Viper, mode Mode) {
	v.SetDefault("token", "")
	v.SetDefault("owner", "")
	v.SetDefault("dataset", defaultDataset)
	v.SetDefault("backfill_days", defaultBackfillDays)
	v.SetDefault("backfill_lag_days", defaultBackfillLag)
	v.SetDefault("force", false)
	v.SetDefault("request_delay", defaultRequestDelay)
	v.SetDefault("rate_limit_max_sleep", "0s")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("schedule", defaultSchedule)
	v.SetDefault("api_url", "")
	v.SetDefault("graphql_url", "")
	v.SetDefault("s3_region", "")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	switch mode {
	case ModeScheduled:
		v.SetDefault("offset_days", defaultScheduledOffset)
		v.SetDefault("backfill", false)
	default:
		v.SetDefault("offset_days", defaultManualOffset)
		v.SetDefault("backfill", true)
	}
}

// Load reads the optional config file at path, then unmarshals and validates everything v knows.
func Load(v *viper.Viper, path string) (*Config, error) {
	cfg, err := Read(v, path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Read is Load without validation, for commands that only touch the stored dataset.
func Read(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that required fields are present and values are valid.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	if c.Owner == "" {
		return ErrMissingOwner
	}
	if c.Dataset == "" {
		return ErrMissingDataset
	}
	if c.OffsetDays < 0 || c.OffsetDays >= trafficWindowDays {
		return fmt.Errorf("%w: %d", ErrInvalidOffset, c.OffsetDays)
	}
	if c.Backfill && (c.BackfillDays <= 0 || c.BackfillLagDays < 0) {
		return fmt.Errorf("%w: %d days, lag %d", ErrInvalidBackfill, c.BackfillDays, c.BackfillLagDays)
	}
	if c.RequestDelay < 0 || c.RateLimitMaxSleep < 0 {
		return ErrInvalidDelay
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidTimezone, c.Timezone, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}
	return nil
}

// Location returns the timezone used to determine "today".
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
