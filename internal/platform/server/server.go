// Package server runs the small ops HTTP endpoint each binary exposes:
// Prometheus metrics, a health check and any component routes.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"radio-relay/internal/platform/logger"
	"radio-relay/internal/platform/metrics"
)

const shutdownTimeout = 10 * time.Second

// NewRouter returns a chi router with request logging, request metrics,
// GET /metrics and GET /healthz. healthy reports whether the polling loop
// is running; updateGauges refreshes gauges before a scrape. Either may be nil.
func NewRouter(log *slog.Logger, m *metrics.Metrics, healthy func() bool, updateGauges func()) *chi.Mux {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(m))

	r.Get("/metrics", m.Handler(updateGauges).ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if healthy != nil && !healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not running\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return r
}

// Run serves h on addr until ctx is cancelled, then drains connections.
func Run(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info("ops server starting", "addr", addr)

	select {
	case err := <-errCh:
		return errors.Wrap(err, "ops server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "ops server shutdown")
	}
	log.Info("ops server stopped")
	return nil
}
