// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "github-traffic",
	Short: "A CLI tool to archive GitHub repository traffic.",
	Long: `github-traffic collects the daily views and clones of an account's public,
non-fork repositories and merges them into a dataset that outlives the 14 days
GitHub keeps traffic for. The dataset is a CSV table stored on disk, in S3 or in SQLite.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Flags available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringP("dataset", "d", "", "Dataset destination: path, file://path, s3://bucket/key or sqlite://path")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("s3-region", "", "AWS region of the dataset bucket")
	rootCmd.PersistentFlags().String("s3-endpoint", "", "Endpoint of an S3-compatible service")
}
