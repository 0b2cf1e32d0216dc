package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/adapters"
	"github.com/architeacher/svc-commerce-saga/internal/adapters/middleware"
	"github.com/architeacher/svc-commerce-saga/internal/domain"
)

const metricsShutdownTimeout = 5 * time.Second

// startMetricsServer exposes the Prometheus scrape endpoint and the
// health probe. It is a no-op when metrics are disabled.
func startMetricsServer(ctx context.Context, deps *Dependencies) {
	if !deps.cfg.Telemetry.Metrics.Enabled {
		return
	}

	checker := adapters.NewHealthChecker(
		deps.Infra.StorageClient,
		deps.Infra.CacheClient,
		deps.Infra.QueueClient,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", deps.Infra.Metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.CheckHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")

		if result.OverallStatus == domain.HealthStatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		if err := json.NewEncoder(w).Encode(result); err != nil {
			deps.logger.Error().Err(err).Msg("failed to encode health result")
		}
	})

	accessLogger := middleware.NewAccessLogger(deps.logger.Logger)

	server := &http.Server{
		Addr:              deps.cfg.Telemetry.Metrics.Addr,
		Handler:           accessLogger.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		deps.logger.Info().Str("addr", server.Addr).Msg("starting metrics server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.logger.Error().Err(err).Msg("failed to shut down metrics server")
		}
	}()
}
