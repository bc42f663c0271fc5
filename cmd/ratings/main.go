// Package main consumes decision feedback off the bus and tallies outcomes
// for the after-call rating dashboard.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/VoxalyAI/voxaly-mvp/engine/feedback"
	"github.com/VoxalyAI/voxaly-mvp/pkg/metrics"
	"github.com/VoxalyAI/voxaly-mvp/pkg/natsutil"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("ratings consumer exited with error", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(envOr("NATS_URL", nats.DefaultURL), nats.Name("voxaly-ratings"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	reg := metrics.New()

	sub, err := natsutil.Subscribe(nc, feedback.Subject, func(ctx context.Context, rec feedback.Record) {
		name := metrics.WithLabels("voxaly_feedback_total",
			"action", string(rec.Decision.Action), "mode", rec.Mode)
		reg.Counter(name, "Feedback records received, by action and mode.").Inc()

		attrs := []any{
			"request_id", rec.RequestID,
			"intent", rec.Decision.Intent,
			"action", rec.Decision.Action,
			"confidence", rec.Decision.Confidence,
			"mode", rec.Mode,
		}
		if rec.AdvisorRating != nil {
			attrs = append(attrs, "advisor_rating", *rec.AdvisorRating)
		}
		logger.Info("feedback received", attrs...)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", feedback.Subject, err)
	}
	defer sub.Unsubscribe()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", reg.Handler())
	srv := &http.Server{
		Addr:        ":" + envOr("METRICS_PORT", "9090"),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ratings consumer started", "subject", feedback.Subject, "metrics", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
