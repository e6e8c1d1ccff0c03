package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/timschmidt/bugbot9000/internal/config"
	"github.com/timschmidt/bugbot9000/internal/models"
)

func newStatusCommand(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print per-status crate counts from the state store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			counts, err := store.CountByStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to count crates: %w", err)
			}

			var total int64
			for _, status := range []models.SyncStatus{
				models.StatusCloned,
				models.StatusPending,
				models.StatusFailed,
				models.StatusNoRepo,
				models.StatusMetadataError,
			} {
				fmt.Printf("%-15s %d\n", status, counts[status])
				total += counts[status]
			}
			fmt.Printf("%-15s %d\n", "total", total)

			return nil
		},
	}
}
