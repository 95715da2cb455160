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

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/insightchannel/server/internal/auth"
	"github.com/obsidianstack/insightchannel/server/internal/config"
	"github.com/obsidianstack/insightchannel/server/internal/ingest"
	"github.com/obsidianstack/insightchannel/server/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("insight-collector exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("insight-collector", pflag.ContinueOnError)
	configPath := flags.String("config", "config.yaml", "path to config file")
	debug := flags.Bool("debug", false, "log every processed batch")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("insight-collector starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	appID := cfg.Server.AppID
	if appID == "" {
		appID = uuid.NewString()
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"app_id", appID,
		"auth_mode", cfg.Server.Auth.Mode,
		"retention_ttl", cfg.Server.Retention.TTL,
		"fault_steps", len(cfg.Server.Faults),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New(cfg.Server.Retention.TTL, cfg.Server.Retention.MaxPerKey)
	h := ingest.New(st, ingest.Options{
		AppID:        appID,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Faults:       cfg.Server.Faults,
	})
	routes := h.Routes(auth.APIKey(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           routes,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st.Run(gctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("insight-collector shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
