package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gymbuddy-notify/internal/app"
	"github.com/gymbuddy-notify/internal/config"
	"github.com/gymbuddy-notify/internal/observability/logging"
	transporthttp "github.com/gymbuddy-notify/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{Bootstrap: true})
	if err != nil {
		return fmt.Errorf("assemble services: %w", err)
	}
	defer a.Close()

	deps := &transporthttp.Deps{
		Notifications: a.Notifications,
		Push:          a.Push,
		Preferences:   a.Preferences,
		Hub:           a.Hub,
	}
	if a.Verifier != nil {
		deps.Verifier = a.Verifier
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.AppPort),
		Handler:     transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout: 15 * time.Second,
		// The stream endpoint lifts this deadline for its own connections.
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Closing the hub ends open event streams so Shutdown can drain.
	srv.RegisterOnShutdown(func() {
		if err := a.Close(); err != nil {
			slog.Warn("close services", "error", err)
		}
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
