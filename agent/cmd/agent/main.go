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

	"github.com/go-chi/chi/v5"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/insightchannel/agent/internal/config"
	"github.com/obsidianstack/insightchannel/agent/internal/envelope"
	"github.com/obsidianstack/insightchannel/agent/internal/feed"
	"github.com/obsidianstack/insightchannel/agent/internal/health"
	"github.com/obsidianstack/insightchannel/agent/internal/sender"
	"github.com/obsidianstack/insightchannel/pkg/metrics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("insight-agent exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("insight-agent", pflag.ContinueOnError)
	configPath := flags.String("config", "config.yaml", "path to config file (.yaml, .json or .jsonc)")
	input := flags.String("input", "-", "NDJSON telemetry items to send; - reads stdin")
	once := flags.Bool("once", false, "exit after the input is exhausted instead of serving until signalled")
	drainTimeout := flags.Duration("shutdown-timeout", 10*time.Second, "how long teardown waits for in-flight sends")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("insight-agent starting", "config", *configPath, "input", *input)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"endpoint", cfg.Channel.EndpointURL,
		"max_batch_interval", cfg.Channel.MaxBatchInterval,
		"max_batch_size_bytes", cfg.Channel.MaxBatchSizeBytes,
		"durable", cfg.Channel.EnableDurableBuffer,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	builder := envelope.NewBuilder(cfg.Channel.InstrumentationKey, logger)
	snd := sender.New(cfg.Channel, builder, sender.WithLogger(logger))

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/healthz", health.Handler(snd.Stats))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(snd.Collect))
	httpSrv := &http.Server{
		Addr:              cfg.Channel.MetricsAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return config.Watch(gctx, *configPath, func(updated *config.Config) {
			if updated.Channel.InstrumentationKey != cfg.Channel.InstrumentationKey {
				slog.Warn("config: instrumentation_key change needs a restart",
					"running", cfg.Channel.InstrumentationKey)
			}
			snd.UpdateConfig(updated.Channel)
		})
	})

	g.Go(func() error {
		slog.Info("metrics server listening", "addr", cfg.Channel.MetricsAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		rc, err := feed.Open(*input)
		if err != nil {
			return err
		}
		defer rc.Close()

		res, err := feed.Read(gctx, rc, logger, snd.Process)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		slog.Info("input exhausted", "items", res.Items, "malformed", res.Malformed)
		snd.Flush()
		if *once {
			cancel()
		}
		return nil
	})

	err = g.Wait()

	slog.Info("insight-agent shutting down")
	teardownCtx, done := context.WithTimeout(context.Background(), *drainTimeout)
	defer done()
	if terr := snd.Teardown(teardownCtx); terr != nil {
		slog.Warn("teardown did not finish", "err", terr)
	}
	st := snd.Stats()
	slog.Info("final stats",
		"accepted", st.ItemsAccepted,
		"dropped", st.ItemsDropped,
		"queued", st.Queued,
		"in_flight", st.InFlight)
	return err
}
