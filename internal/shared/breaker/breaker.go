package breaker

import (
	"errors"
	"fmt"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/sony/gobreaker"
)

// StateChangeFunc is notified on every breaker state transition, which
// the metrics layer records.
type StateChangeFunc func(name, from, to string)

// Breaker guards a synchronous downstream call. While open, calls are
// rejected immediately with domain.ErrCircuitOpen; callers treat that as
// retryable upstream.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New builds a breaker from the configured thresholds. The breaker trips
// when the rolling error percentage crosses the threshold with at least
// volumeThreshold calls observed in the window.
func New(name string, cfg config.BreakerConfig, onStateChange StateChangeFunc) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Interval:    cfg.RollingCountTimeout,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.VolumeThreshold {
				return false
			}

			errorPercentage := float64(counts.TotalFailures) / float64(counts.Requests) * 100

			return errorPercentage >= cfg.ErrorThresholdPercentage
		},
	}

	if onStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			onStateChange(name, from.String(), to.String())
		}
	}

	return &Breaker{
		cb: gobreaker.NewCircuitBreaker(settings),
	}
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w", b.cb.Name(), domain.ErrCircuitOpen)
		}

		return nil, err
	}

	return result, nil
}

// State reports the current breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
