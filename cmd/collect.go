package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-traffic/internal/config"
	"github.com/naka-gawa/github-traffic/internal/domain"
	"github.com/naka-gawa/github-traffic/internal/usecase"
)

// runResult is the JSON printed after a run.
type runResult struct {
	Dataset  string          `json:"dataset"`
	FirstRun bool            `json:"first_run"`
	Targets  []domain.Date   `json:"targets"`
	Dates    int             `json:"dates"`
	Failures []failureResult `json:"failures"`
	Total    string          `json:"total"`
}

type failureResult struct {
	Repository string      `json:"repository"`
	Date       domain.Date `json:"date"`
	Error      string      `json:"error"`
}

func newRunResult(dataset string, report *usecase.Report) runResult {
	result := runResult{
		Dataset:  dataset,
		FirstRun: report.FirstRun,
		Targets:  report.Targets,
		Dates:    len(report.Dataset.Dates),
		Failures: []failureResult{},
		Total:    report.Dataset.AggregateTotal().String(),
	}
	if result.Targets == nil {
		result.Targets = []domain.Date{}
	}
	for _, f := range report.Failures {
		result.Failures = append(result.Failures, failureResult{Repository: f.Repository, Date: f.Date, Error: f.Err.Error()})
	}
	return result
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collects one day of traffic and merges it into the dataset",
	Long: `Collects the views and clones of every public, non-fork repository of the owner
for the day 13 days ago (or a 14-day backfill on the first run), merges them into
the dataset and prints a JSON summary of the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, config.ModeManual)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.collector.Collect(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to collect traffic: %w", err)
		}

		jsonData, err := json.MarshalIndent(newRunResult(a.cfg.Dataset, report), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results to JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
	addCollectionFlags(collectCmd)
}
