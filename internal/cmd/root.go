package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/timschmidt/bugbot9000/internal/config"
	"github.com/timschmidt/bugbot9000/internal/db"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "BUGBOT_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute(logger *logrus.Logger) {
	if os.Getenv(verboseLogKey) == "true" {
		logger.SetLevel(logrus.DebugLevel)
	}

	rootCmd := &cobra.Command{
		Use:          "bugbot9000",
		Short:        "Clone the latest source repo of every crate on crates.io",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		newSyncCommand(logger),
		newServeCommand(logger),
		newStatusCommand(logger),
	)

	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Fatal("Command failed")
	}
}

// openStore opens the configured state database and brings its schema up to
// date.
func openStore(cfg *config.Config) (*db.SQLStore, error) {
	store, err := db.NewSQLStore(cfg.DBDriver, cfg.DBConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate state store: %w", err)
	}
	return store, nil
}
