package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/equidex/internal/transport/chi"
	"github.com/kailas-cloud/equidex/internal/version"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if port > 0 {
				cfg.HTTP.Port = port
			}

			logger.Info("Starting equidex API server",
				zap.String("version", version.Version),
				zap.String("commit", version.Commit),
				zap.Int("http_port", cfg.HTTP.Port),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := Wire(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			server := chiTransport.NewServer(app.Pipeline, app.Health, logger)
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
				Handler:           chiTransport.NewRouter(server, logger),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
				WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
				logger.Info("Received shutdown signal")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during shutdown", zap.Error(err))
				return err
			}
			logger.Info("Server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides http.port)")
	return cmd
}
