package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/bus"
	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/metrics"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
	"github.com/ricesearch/rice-eval/internal/pkg/middleware"
	"github.com/ricesearch/rice-eval/internal/pkg/security"
)

const shutdownTimeout = 30 * time.Second

// serverReady is false until the listener starts and again once shutdown begins.
var serverReady atomic.Bool

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP evaluation API",
		Long: `Serve the evaluation API backed by Redis ground truth.

Routes:
  POST /v1/evaluation/evaluate   score a batch of ranked lists
  POST /v1/evaluation/judgments  store the relevance map of a query
  GET  /v1/evaluation/history    mAP of recent batches
  GET  /metrics                  Prometheus metrics
  GET  /healthz, /readyz         liveness and readiness`,
		RunE: runServe,
	}
	cmd.Flags().String("host", "", "listen host (default from config)")
	cmd.Flags().IntP("port", "p", 0, "listen port (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.Host = v
	}
	if v, _ := cmd.Flags().GetInt("port"); v > 0 {
		cfg.Port = v
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openRedisStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eventBus, err := bus.NewBus(cfg.Bus, log)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	var judgments evaluation.JudgmentWriter = store
	if cfg.Metrics.Enabled {
		m = metrics.NewWithConfig(cfg.Metrics.Persistence, cfg.MetricsRedisURL(), log)
		defer func() { _ = m.Close() }()

		eventBus = bus.NewInstrumentedBus(eventBus, m)
		if err := metrics.NewEventSubscriber(m, eventBus).SubscribeToEvents(ctx); err != nil {
			_ = eventBus.Close()
			return fmt.Errorf("subscribing metrics: %w", err)
		}
		judgments = metrics.NewCountingWriter(store, m)
		log.Info("Metrics enabled", "redis_history", m.IsRedisPersisted())
	}
	defer func() { _ = eventBus.Close() }()

	evaluator, err := evaluation.NewEvaluator(evaluation.Config{
		Annotations: store,
		Workers:     cfg.Evaluation.Workers,
		Publisher:   bus.NewPublisher(eventBus, log),
		CutoffK:     cfg.Evaluation.CutoffK,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	evaluation.NewHandler(evaluator, judgments).RegisterRoutes(mux)
	registerOpsRoutes(mux, store, m)

	handler := http.Handler(mux)
	handler = loggingMiddleware(handler, log)
	if cfg.Security.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(cfg.Security.RateLimit),
			Burst:             cfg.Security.RateLimit * 2,
		})
		defer limiter.Stop()
		handler = limiter.Middleware(handler)
	}
	if m != nil {
		handler = metrics.HTTPMiddleware(m, handler)
	}
	handler = recoveryMiddleware(handler, log)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		serverReady.Store(true)
		log.Info("Starting HTTP server", "addr", addr, "bus", cfg.Bus.Type)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errCh:
		serverReady.Store(false)
		return fmt.Errorf("http server: %w", err)
	}

	serverReady.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", "error", err)
	}
	log.Info("Server stopped")
	return nil
}

// pinger reports whether the ground truth backend is reachable.
type pinger interface {
	Ping(ctx context.Context) error
}

func registerOpsRoutes(mux *http.ServeMux, gt pinger, m *metrics.Metrics) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !serverReady.Load() {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "reason": "shutting_down"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := gt.Ping(ctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "reason": "redis_unavailable"})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
		mux.Handle("GET /v1/evaluation/history", m.HistoryHandler())
	}
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// recoveryMiddleware turns a handler panic into a sanitized 500.
func recoveryMiddleware(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("Panic recovered in HTTP handler",
					"error", err,
					"method", r.Method,
					"path", security.SanitizeForLog(r.URL.Path),
				)
				writeStatus(w, http.StatusInternalServerError, map[string]string{
					"error":   "internal server error",
					"code":    "INTERNAL_ERROR",
					"message": "An unexpected error occurred. Please try again.",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.Debug("HTTP request",
			"method", r.Method,
			"path", security.SanitizeForLog(r.URL.Path),
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
