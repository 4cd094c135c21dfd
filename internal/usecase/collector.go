// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-traffic/internal/domain"
	"github.com/naka-gawa/github-traffic/internal/gateway"
	"github.com/naka-gawa/github-traffic/internal/storage"
)

// DefaultRequestDelay is the pause after each repository's fetches.
const DefaultRequestDelay = 100 * time.Millisecond

// Collector is the use case for collecting daily traffic.
// It orchestrates loading, fetching, merging and saving.
type Collector struct {
	fetcher  gateway.TrafficFetcher
	store    storage.DatasetStore
	selector DateSelector
	delay    time.Duration
	logger   *slog.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// CollectorOption customizes a Collector.
type CollectorOption func(*Collector)

// WithClock replaces the wall clock used to select dates.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) { c.now = now }
}

// WithSleep replaces the function used for the inter-repository delay.
func WithSleep(sleep func(time.Duration)) CollectorOption {
	return func(c *Collector) { c.sleep = sleep }
}

// NewCollector creates a new Collector instance.
func NewCollector(fetcher gateway.TrafficFetcher, store storage.DatasetStore, selector DateSelector, delay time.Duration, logger *slog.Logger, opts ...CollectorOption) *Collector {
	c := &Collector{
		fetcher:  fetcher,
		store:    store,
		selector: selector,
		delay:    delay,
		logger:   logger,
		now:      time.Now,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchFailure records a fetch that was replaced by the zero cell.
type FetchFailure struct {
	Repository string
	Date       domain.Date
	Err        error
}

// Report describes a completed run.
type Report struct {
	Dataset  *domain.Dataset
	Targets  []domain.Date
	FirstRun bool
	Failures []FetchFailure
	Summary  Summary
}

// Collect performs one run. Fetch failures only degrade the affected cells to 0(0);
// an error is returned only when the prior dataset or the repository list cannot be read
// or the new dataset cannot be saved.
func (c *Collector) Collect(ctx context.Context) (*Report, error) {
	c.logger.Info("starting traffic collection")

	var prior *domain.Dataset
	var repos []string

	// The prior dataset and the repository list are independent reads.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		ds, err := c.store.Load(egCtx)
		if errors.Is(err, storage.ErrDatasetNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load prior dataset: %w", err)
		}
		prior = ds
		return nil
	})
	eg.Go(func() error {
		var err error
		repos, err = c.fetcher.ListRepositories(egCtx)
		if err != nil {
			return fmt.Errorf("failed to list repositories: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	report := &Report{FirstRun: prior == nil}
	report.Targets = c.selector.Select(prior, c.now())
	if len(report.Targets) == 0 {
		c.logger.Info("target date already collected, nothing to fetch")
	} else {
		c.logger.Info("selected target dates", "first_run", report.FirstRun, "from", report.Targets[0], "to", report.Targets[len(report.Targets)-1], "repositories", len(repos))
	}

	batch := domain.FetchBatch{}
	if len(report.Targets) > 0 {
		report.Failures = c.fetchAll(ctx, repos, report.Targets, batch)
	}

	report.Dataset = Merge(prior, batch, repos, report.Targets)
	if err := c.store.Save(ctx, report.Dataset); err != nil {
		return nil, fmt.Errorf("failed to save dataset: %w", err)
	}

	report.Summary = Summarize(batch, repos, report.Targets)
	c.logger.Info("traffic collection complete",
		"dates", len(report.Dataset.Dates),
		"repositories", len(report.Dataset.Repositories),
		"failures", len(report.Failures),
		"views_sum", report.Summary.Views.Sum,
		"views_median", report.Summary.Views.Median,
		"views_max", report.Summary.Views.Max,
		"clones_sum", report.Summary.Clones.Sum,
		"clones_median", report.Summary.Clones.Median,
		"clones_max", report.Summary.Clones.Max,
	)
	return report, nil
}

// fetchAll fetches every (repository, date) pair sequentially, pausing after each repository.
func (c *Collector) fetchAll(ctx context.Context, repos []string, targets []domain.Date, batch domain.FetchBatch) []FetchFailure {
	var failures []FetchFailure
	for _, repo := range repos {
		for _, date := range targets {
			cell, err := c.fetcher.FetchDailyCounts(ctx, repo, date)
			if err != nil {
				c.logger.Warn("failed to fetch traffic, recording zero", "repo", repo, "date", date, "error", err)
				failures = append(failures, FetchFailure{Repository: repo, Date: date, Err: err})
				cell = domain.Cell{}
			}
			batch.Put(date, repo, cell)
		}
		if c.delay > 0 {
			c.sleep(c.delay)
		}
	}
	return failures
}
