package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	app "smart-stay/internal"
	"smart-stay/internal/routes"
	"smart-stay/internal/utils"
)

const shutdownTimeout = 10 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the power control server",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := ServerMain(ctx); err != nil {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	},
}

// ServerMain runs the HTTP server, token refresh and scheduler until ctx is cancelled.
func ServerMain(ctx context.Context) error {
	s := newServices()
	defer s.Close()

	go s.tokens.Start(ctx)
	go s.reconciler.Run(ctx, cfg.Scheduler.Interval)

	handlers := &routes.Handlers{
		Recorder:   s.recorder,
		Intake:     s.intake,
		Controller: s.dispatcher,
		History:    provider,
		Reconciler: s.reconciler,
		Alerter:    s.notifier,
		Tokens:     s.tokens,
		Guard:      routes.NewGuard(cfg.APIKey, cfg.Secret, cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
		StartedAt:  time.Now(),
		Version:    utils.GetVersion(),
	}
	if cfg.APIKey == "" {
		slog.Warn("API key is not set, mutating routes are open")
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           app.HTTPServer(cfg, handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "listen", cfg.Listen, "version", handlers.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
