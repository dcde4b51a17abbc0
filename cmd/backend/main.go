package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/ko2bn/external/audio"
	configloader "github.com/foxseedlab/ko2bn/external/config"
	"github.com/foxseedlab/ko2bn/external/discord"
	eventsimpl "github.com/foxseedlab/ko2bn/external/events"
	"github.com/foxseedlab/ko2bn/external/gemini"
	repositoryimpl "github.com/foxseedlab/ko2bn/external/repository"
	transcriberimpl "github.com/foxseedlab/ko2bn/external/transcriber"
	webhookimpl "github.com/foxseedlab/ko2bn/external/webhook"
	"github.com/foxseedlab/ko2bn/internal/config"
	"github.com/foxseedlab/ko2bn/internal/events"
	"github.com/foxseedlab/ko2bn/internal/metrics"
	"github.com/foxseedlab/ko2bn/internal/repository"
	"github.com/foxseedlab/ko2bn/internal/server"
	"github.com/foxseedlab/ko2bn/internal/session"
	"github.com/samber/do/v2"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching http server", "addr", cfg.HTTPAddr)
	runServer(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	metrics.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	eventsimpl.RegisterDI(injector)
	gemini.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	session.RegisterDI(injector)
	server.RegisterDI(injector)

	return injector
}

func runServer(cfg *config.Config, injector do.Injector) {
	srv, err := do.Invoke[*server.Server](injector)
	if err != nil {
		slog.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	registry := do.MustInvoke[*session.Registry](injector)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			slog.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by http.Server; the
	// session server closes those itself.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("session server shutdown failed", "error", err)
	}
	registry.Wait()

	closeDependencies(injector)
	slog.Info("shutdown complete")
}

// closeDependencies releases adapters that hold connections. Publishers go
// first so buffered events are flushed before the pool disappears.
func closeDependencies(injector do.Injector) {
	if pub, err := do.Invoke[events.Publisher](injector); err == nil {
		if c, ok := pub.(interface{ Shutdown() error }); ok {
			if err := c.Shutdown(); err != nil {
				slog.Error("event publisher shutdown failed", "error", err)
			}
		}
	}
	if repo, err := do.Invoke[repository.Repository](injector); err == nil {
		if c, ok := repo.(interface{ Shutdown() }); ok {
			c.Shutdown()
		}
	}
}
