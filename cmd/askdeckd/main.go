package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/askdeck-dev/askdeck/internal/analytics"
	"github.com/askdeck-dev/askdeck/internal/api"
	"github.com/askdeck-dev/askdeck/internal/backend"
	"github.com/askdeck-dev/askdeck/internal/config"
	"github.com/askdeck-dev/askdeck/internal/profile"
	"github.com/askdeck-dev/askdeck/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.LogLevel)

	store, err := backend.New(cfg)
	if err != nil {
		slog.Error("failed to initialize backend", "error", err)
		os.Exit(1)
	}

	handler := &api.Handler{
		Profiles:      profile.New(store, cfg),
		Analytics:     analytics.New(store, cfg),
		Sessions:      session.New(store, cfg),
		SessionMaxAge: cfg.Session.TTLSeconds,
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewRouter(handler),
	}

	go func() {
		slog.Info("askdeck daemon listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("server shutdown", "error", err)
	}
	// Close waits for pending embedded-store snapshots.
	if err := store.Close(); err != nil {
		slog.Warn("backend close", "error", err)
	}
	slog.Info("exiting")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
