package ports

import (
	"context"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
)

type HealthChecker interface {
	CheckHealth(ctx context.Context) *domain.HealthResult
}
