package adapters

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/shared/breaker"
	"github.com/go-resty/resty/v2"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultClientRetries  = 2
)

// ServiceClient makes synchronous calls to a sibling service through a
// circuit breaker. While the breaker is open, calls fail fast with
// domain.ErrCircuitOpen so the caller can fall back to the async path.
type ServiceClient struct {
	client  *resty.Client
	breaker *breaker.Breaker
	logger  infrastructure.Logger
}

func NewServiceClient(name, baseURL string, breakerCfg config.BreakerConfig, logger infrastructure.Logger) *ServiceClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultRequestTimeout).
		SetRetryCount(defaultClientRetries).
		SetHeader("Accept", "application/json")

	// Only retry what redelivery can fix.
	client.AddRetryCondition(func(resp *resty.Response, err error) bool {
		if err != nil {
			return true
		}

		return resp.StatusCode() >= http.StatusInternalServerError
	})

	cb := breaker.New(name, breakerCfg, func(name, from, to string) {
		logger.Info().
			Str("name", name).
			Str("from", from).
			Str("to", to).
			Msg("circuit breaker state changed")
	})

	return &ServiceClient{
		client:  client,
		breaker: cb,
		logger:  logger,
	}
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *ServiceClient) GetJSON(ctx context.Context, path string, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, http.MethodGet, path, nil, out)
	})

	return err
}

// PostJSON issues a POST with a JSON body and decodes the response into out.
func (c *ServiceClient) PostJSON(ctx context.Context, path string, body, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, http.MethodPost, path, body, out)
	})

	return err
}

// BreakerState reports the current breaker state for health reporting.
func (c *ServiceClient) BreakerState() string {
	return c.breaker.State()
}

func (c *ServiceClient) do(ctx context.Context, method, path string, body, out any) error {
	startTime := time.Now()

	request := c.client.R().SetContext(ctx)
	if body != nil {
		request.SetBody(body)
	}

	if out != nil {
		request.SetResult(out)
	}

	resp, err := request.Execute(method, path)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("method", method).
			Str("path", path).
			Msg("service call failed")

		return domain.NewTransientError(fmt.Sprintf("%s %s", method, path), err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status_code", resp.StatusCode()).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Msg("service call completed")

	switch {
	case resp.StatusCode() >= http.StatusInternalServerError:
		return domain.NewTransientError(fmt.Sprintf("%s %s", method, path),
			fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.Status()))
	case resp.StatusCode() >= http.StatusBadRequest:
		return domain.NewPermanentError(
			fmt.Sprintf("%s %s rejected with HTTP %d", method, path, resp.StatusCode()), nil)
	}

	return nil
}
