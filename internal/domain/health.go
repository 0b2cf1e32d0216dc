package domain

import "time"

type DependencyCheckStatus string

const (
	DependencyCheckStatusHealthy   DependencyCheckStatus = "healthy"
	DependencyCheckStatusUnhealthy DependencyCheckStatus = "unhealthy"
)

type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

// DependencyStatus reports one probed dependency.
type DependencyStatus struct {
	Status       DependencyCheckStatus `json:"status"`
	ResponseTime float32               `json:"response_time_ms"`
	LastChecked  time.Time             `json:"last_checked"`
	Error        string                `json:"error,omitempty"`
}

// HealthResult aggregates the dependency probes. Storage is the
// critical dependency; the queue and the idempotency store degrade the
// service without taking it down.
type HealthResult struct {
	OverallStatus HealthStatus     `json:"status"`
	Storage       DependencyStatus `json:"storage"`
	Cache         DependencyStatus `json:"cache"`
	Queue         DependencyStatus `json:"queue"`
	Uptime        float32          `json:"uptime_seconds"`
}
