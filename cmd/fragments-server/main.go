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

	"github.com/tendant/simple-fragments/pkg/fragments/api"
	"github.com/tendant/simple-fragments/pkg/fragments/config"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration from environment
	serverConfig, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load server configuration: %v\n", err)
		os.Exit(1)
	}

	logger := serverConfig.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, serverConfig, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("server exiting")
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) error {
	svc, cleanup, err := cfg.BuildService(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer cleanup()

	httpServer := newHTTPServer(cfg, api.NewRouter(svc, api.RouterConfig{
		JWTAuth:         cfg.JWTAuth(),
		APIURL:          cfg.APIURL,
		MaxFragmentSize: cfg.MaxFragmentSize,
		Version:         Version,
		Logger:          logger,
	}))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fragments server starting", "port", cfg.Port, "env", cfg.Environment, "version", Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func newHTTPServer(cfg *config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
