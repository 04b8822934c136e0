package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(boot Bootstrap) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with scheduled token refresh and sync",
		Long: `Serves the OAuth routes and the JSON API, and runs the background
scheduler that refreshes the token and, when enabled, syncs media on a
fixed cadence. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, boot, serve)
		},
	}
}

func serve(parent context.Context, app *App) error {
	if app.Handler == nil {
		return errors.New("http handler not configured")
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	schedDone := make(chan struct{})
	if app.Scheduler != nil {
		go func() {
			defer close(schedDone)
			app.Scheduler.Start(ctx)
		}()
	} else {
		close(schedDone)
	}

	srv := &http.Server{
		Addr:              app.ListenAddr,
		Handler:           app.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", app.ListenAddr)
		srvErr <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-srvErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
	}

	cancel()
	<-schedDone

	slog.Info("shutdown complete")
	return runErr
}
