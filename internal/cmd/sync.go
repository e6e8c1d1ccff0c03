package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/timschmidt/bugbot9000/internal/cloner"
	"github.com/timschmidt/bugbot9000/internal/config"
	"github.com/timschmidt/bugbot9000/internal/index"
	"github.com/timschmidt/bugbot9000/internal/metrics"
	"github.com/timschmidt/bugbot9000/internal/registry"
	syncer "github.com/timschmidt/bugbot9000/internal/sync"
)

func newSyncCommand(logger *logrus.Logger) *cobra.Command {
	var outputDir string
	var delayMS int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror every crate's source repository to local disk",
		Long: "Refreshes the registry index, then walks every crate in it: crates already " +
			"mirrored are skipped, everything else is fetched from the registry API and its " +
			"repository cloned. Re-running retries every crate that did not end up cloned.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			if delayMS > 0 {
				cfg.RequestDelay = time.Duration(delayMS) * time.Millisecond
			}

			if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			metrics.Enable("bugbot", prometheus.DefaultRegisterer)

			// An interrupt ends the run between crates; already-recorded
			// outcomes stay durable and the next invocation resumes.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orch := syncer.New(
				index.NewGitSource(cfg.IndexURL, cfg.IndexDir, logger),
				store,
				registry.NewClient(cfg.APIToken, cfg.UserAgent, cfg.RequestDelay, logger,
					registry.WithBaseURL(cfg.APIBaseURL)),
				cloner.NewGitCloner(logger),
				cfg.OutputDir,
				logger,
			)

			_, err = orch.Run(ctx)
			return err
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory where repositories will be cloned")
	cmd.Flags().IntVarP(&delayMS, "delay-ms", "d", 0, "delay between API requests in milliseconds")

	return cmd
}
