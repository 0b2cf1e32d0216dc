package infrastructure

import (
	"context"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/redis/go-redis/v9"
)

// KeydbClient wraps the redis client backing the idempotency store.
type KeydbClient struct {
	client *redis.Client
	logger Logger
}

func NewKeyDBClient(cfg config.CacheConfig, logger Logger) *KeydbClient {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &KeydbClient{
		client: client,
		logger: logger.Component("keydb"),
	}
}

func (c *KeydbClient) Client() *redis.Client {
	return c.client
}

func (c *KeydbClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *KeydbClient) Close() error {
	return c.client.Close()
}
