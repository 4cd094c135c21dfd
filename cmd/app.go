package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/naka-gawa/github-traffic/internal/config"
	"github.com/naka-gawa/github-traffic/internal/gateway"
	"github.com/naka-gawa/github-traffic/internal/storage"
	"github.com/naka-gawa/github-traffic/internal/usecase"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"owner":                "owner",
	"dataset":              "dataset",
	"offset-days":          "offset_days",
	"backfill":             "backfill",
	"backfill-days":        "backfill_days",
	"backfill-lag-days":    "backfill_lag_days",
	"force":                "force",
	"request-delay":        "request_delay",
	"rate-limit-max-sleep": "rate_limit_max_sleep",
	"timezone":             "timezone",
	"schedule":             "schedule",
	"api-url":              "api_url",
	"graphql-url":          "graphql_url",
	"s3-region":            "s3_region",
	"s3-endpoint":          "s3_endpoint",
	"log-format":           "log_format",
	"log-level":            "log_level",
}

// bindFlags copies explicitly set flags into v, above the config file and environment.
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			v.Set(key, f.Value.String())
		}
	})
}

// addCollectionFlags registers the flags shared by collect and schedule.
func addCollectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("owner", "o", "", "GitHub account whose repositories are collected (required)")
	cmd.Flags().Int("offset-days", 0, "Collect the day this many days before today")
	cmd.Flags().Bool("backfill", false, "Collect a 14-day backfill when no dataset exists yet")
	cmd.Flags().Int("backfill-days", 0, "Number of days collected by a backfill")
	cmd.Flags().Int("backfill-lag-days", 0, "Age in days of the newest backfilled day")
	cmd.Flags().Bool("force", false, "Re-collect the target day even if it is already stored")
	cmd.Flags().Duration("request-delay", 0, "Pause after each repository")
	cmd.Flags().Duration("rate-limit-max-sleep", 0, "Longest secondary rate limit wait; 0 records the repository as failed")
	cmd.Flags().String("timezone", "", "Timezone that defines today")
	cmd.Flags().String("api-url", "", "GitHub Enterprise REST API URL")
	cmd.Flags().String("graphql-url", "", "GitHub Enterprise GraphQL URL")
}

func loadConfig(cmd *cobra.Command, mode config.Mode, validate bool) (*config.Config, error) {
	v := config.New(mode)
	bindFlags(cmd, v)
	path, _ := cmd.Flags().GetString("config")
	if !validate {
		return config.Read(v, path)
	}
	return config.Load(v, path)
}

// newLogger builds the slog logger described by cfg. verbose forces debug level.
func newLogger(w io.Writer, cfg *config.Config, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.DatasetStore, error) {
	store, err := storage.Open(ctx, cfg.Dataset, storage.Options{
		S3Region:   cfg.S3Region,
		S3Endpoint: cfg.S3Endpoint,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", cfg.Dataset, err)
	}
	return store, nil
}

// app wires one collector from a validated configuration.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     storage.DatasetStore
	collector *usecase.Collector
}

func newApp(cmd *cobra.Command, mode config.Mode) (*app, error) {
	cfg, err := loadConfig(cmd, mode, true)
	if err != nil {
		return nil, err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(cmd.ErrOrStderr(), cfg, verbose)

	githubGateway, err := gateway.NewGitHubGateway(gateway.Options{
		Token:             cfg.Token,
		Owner:             cfg.Owner,
		APIURL:            cfg.APIURL,
		GraphQLURL:        cfg.GraphQLURL,
		MaxRateLimitSleep: cfg.RateLimitMaxSleep,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}

	store, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}

	selector := usecase.DateSelector{
		OffsetDays:      cfg.OffsetDays,
		Backfill:        cfg.Backfill,
		BackfillDays:    cfg.BackfillDays,
		BackfillLagDays: cfg.BackfillLagDays,
		Force:           cfg.Force,
	}
	loc := cfg.Location()
	collector := usecase.NewCollector(githubGateway, store, selector, cfg.RequestDelay, logger,
		usecase.WithClock(func() time.Time { return time.Now().In(loc) }),
	)

	return &app{cfg: cfg, logger: logger, store: store, collector: collector}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
