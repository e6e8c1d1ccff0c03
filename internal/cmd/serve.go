package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/timschmidt/bugbot9000/internal/api"
	"github.com/timschmidt/bugbot9000/internal/config"
	"github.com/timschmidt/bugbot9000/internal/metrics"
)

func newServeCommand(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the mirror status API over HTTP",
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

			metrics.Enable("bugbot", prometheus.DefaultRegisterer)

			router := api.SetupRouter(api.NewHandler(store, logger))
			server := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			// Start server in goroutine
			go func() {
				logger.Infof("Status API listening on port %s", cfg.Port)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatalf("Server failed: %v", err)
				}
			}()

			// Graceful shutdown
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			logger.Info("Shutting down server...")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			logger.Info("Server exited properly")
			return nil
		},
	}
}
