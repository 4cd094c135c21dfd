package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-traffic/internal/config"
	"github.com/naka-gawa/github-traffic/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Runs the collector every day on a cron schedule",
	Long: `Runs as a long-lived process that collects yesterday's traffic on the given cron
schedule (default "0 1 * * *" in the configured timezone) until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cmd, config.ModeScheduled)
		if err != nil {
			return err
		}
		defer a.Close()

		// A run that already started is finished even if a signal arrives meanwhile.
		run := func(ctx context.Context) error {
			_, err := a.collector.Collect(context.WithoutCancel(ctx))
			return err
		}

		s := scheduler.New(a.cfg.Location(), a.logger)
		if err := s.Schedule(ctx, a.cfg.Schedule, run); err != nil {
			return err
		}

		if runNow, _ := cmd.Flags().GetBool("run-now"); runNow {
			if err := run(ctx); err != nil {
				a.logger.Error("initial run failed", "error", err)
			}
		}

		s.Run(ctx)
		a.logger.Info("scheduler stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	addCollectionFlags(scheduleCmd)
	scheduleCmd.Flags().String("schedule", "", "Cron expression (minute hour day month weekday)")
	scheduleCmd.Flags().Bool("run-now", false, "Collect once immediately before waiting for the schedule")
}
