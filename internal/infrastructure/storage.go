package infrastructure

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/jmoiron/sqlx"

	// Postgres driver registration.
	_ "github.com/lib/pq"
)

// Storage owns the postgres connection pool shared by the repositories.
type Storage struct {
	db  *sqlx.DB
	cfg config.StorageConfig
}

func NewStorage(cfg config.StorageConfig) (*Storage, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
		int(cfg.ConnectTimeout/time.Second),
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Storage{db: db, cfg: cfg}, nil
}

// GetDB returns the underlying pool.
func (s *Storage) GetDB() (*sqlx.DB, error) {
	if s.db == nil {
		return nil, fmt.Errorf("storage is not initialized")
	}

	return s.db, nil
}

// Ping verifies connectivity within the configured connect timeout.
func (s *Storage) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}
