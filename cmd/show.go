package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-traffic/internal/config"
	"github.com/naka-gawa/github-traffic/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the stored dataset as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, config.ModeManual, false)
		if err != nil {
			return err
		}
		if cfg.Dataset == "" {
			return config.ErrMissingDataset
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger := newLogger(cmd.ErrOrStderr(), cfg, verbose)

		store, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		ds, err := store.Load(cmd.Context())
		if errors.Is(err, storage.ErrDatasetNotFound) {
			return fmt.Errorf("no dataset at %s yet", cfg.Dataset)
		}
		if err != nil {
			return err
		}
		return storage.WriteTable(cmd.OutOrStdout(), ds)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
