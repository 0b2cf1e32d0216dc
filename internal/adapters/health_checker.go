package adapters

import (
	"context"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/ports"
	"github.com/architeacher/svc-commerce-saga/pkg/queue"
)

const healthProbeTimeout = 2 * time.Second

// HealthChecker probes the dependencies behind the saga workers.
type HealthChecker struct {
	storage   *infrastructure.Storage
	cache     *infrastructure.KeydbClient
	queue     queue.Queue
	startTime time.Time
}

func NewHealthChecker(
	storage *infrastructure.Storage,
	cache *infrastructure.KeydbClient,
	q queue.Queue,
) ports.HealthChecker {
	return &HealthChecker{
		storage:   storage,
		cache:     cache,
		queue:     q,
		startTime: time.Now(),
	}
}

func (h *HealthChecker) CheckHealth(ctx context.Context) *domain.HealthResult {
	storageStatus := h.probe(ctx, h.storage.Ping)
	cacheStatus := h.probeCache(ctx)
	queueStatus := h.probeQueue()

	return &domain.HealthResult{
		OverallStatus: overallStatus(storageStatus, cacheStatus, queueStatus),
		Storage:       storageStatus,
		Cache:         cacheStatus,
		Queue:         queueStatus,
		Uptime:        float32(time.Since(h.startTime).Seconds()),
	}
}

// Storage is critical. The queue and idempotency store each degrade the
// service on their own, and take it down together.
func overallStatus(storage, cache, q domain.DependencyStatus) domain.HealthStatus {
	if storage.Status == domain.DependencyCheckStatusUnhealthy {
		return domain.HealthStatusDown
	}

	unhealthy := 0
	for _, dep := range []domain.DependencyStatus{cache, q} {
		if dep.Status == domain.DependencyCheckStatusUnhealthy {
			unhealthy++
		}
	}

	switch unhealthy {
	case 0:
		return domain.HealthStatusHealthy
	case 1:
		return domain.HealthStatusDegraded
	default:
		return domain.HealthStatusDown
	}
}

func (h *HealthChecker) probe(ctx context.Context, ping func(context.Context) error) domain.DependencyStatus {
	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	start := time.Now()
	err := ping(probeCtx)

	status := domain.DependencyStatus{
		Status:       domain.DependencyCheckStatusHealthy,
		ResponseTime: float32(time.Since(start).Milliseconds()),
		LastChecked:  time.Now(),
	}

	if err != nil {
		status.Status = domain.DependencyCheckStatusUnhealthy
		status.Error = err.Error()
	}

	return status
}

func (h *HealthChecker) probeCache(ctx context.Context) domain.DependencyStatus {
	if h.cache == nil {
		return domain.DependencyStatus{
			Status:      domain.DependencyCheckStatusUnhealthy,
			LastChecked: time.Now(),
			Error:       "idempotency store not configured",
		}
	}

	return h.probe(ctx, h.cache.Ping)
}

// The broker client tracks its own connection state, no round trip
// needed.
func (h *HealthChecker) probeQueue() domain.DependencyStatus {
	status := domain.DependencyStatus{
		Status:      domain.DependencyCheckStatusHealthy,
		LastChecked: time.Now(),
	}

	if h.queue == nil || !h.queue.IsConnected() {
		status.Status = domain.DependencyCheckStatusUnhealthy
		status.Error = "broker connection down"
	}

	return status
}
