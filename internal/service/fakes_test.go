package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/pkg/queue"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

func testLogger() infrastructure.Logger {
	return infrastructure.Logger{Logger: zerolog.Nop()}
}

type settledLeg struct {
	correlationID string
	eventType     domain.EventType
	tx            *sqlx.Tx
}

type fakeOutboxRepo struct {
	mu sync.Mutex

	saved   []*domain.OutboxEvent
	savedTx []*sqlx.Tx
	settled []settledLeg
	pending []*domain.OutboxEvent
	expired []*domain.OutboxEvent

	markedPublished []string
	markedFailed    []string

	markPublishedErr error
	deletedCount     int64
}

func (r *fakeOutboxRepo) SaveInTx(ctx context.Context, tx *sqlx.Tx, event *domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saved = append(r.saved, event)
	r.savedTx = append(r.savedTx, tx)

	return nil
}

func (r *fakeOutboxRepo) SettleInTx(ctx context.Context, tx *sqlx.Tx, correlationID string, eventType domain.EventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settled = append(r.settled, settledLeg{correlationID: correlationID, eventType: eventType, tx: tx})

	return nil
}

func (r *fakeOutboxRepo) ClaimPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	return r.pending, nil
}

func (r *fakeOutboxRepo) MarkPublished(ctx context.Context, eventID string) error {
	if r.markPublishedErr != nil {
		return r.markPublishedErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.markedPublished = append(r.markedPublished, eventID)

	return nil
}

func (r *fakeOutboxRepo) MarkFailed(ctx context.Context, eventID string, errorDetails string, maxAttempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.markedFailed = append(r.markedFailed, eventID)

	return nil
}

func (r *fakeOutboxRepo) ClaimExpired(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	return r.expired, nil
}

func (r *fakeOutboxRepo) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deletedCount, nil
}

type publishedEnvelope struct {
	exchange   string
	routingKey string
	envelope   queue.Envelope
}

type fakeQueue struct {
	mu sync.Mutex

	published  []publishedEnvelope
	publishErr error
}

func (q *fakeQueue) Publish(ctx context.Context, exchange, routingKey string, envelope queue.Envelope, opts ...queue.PublisherOption) error {
	if q.publishErr != nil {
		return q.publishErr
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.published = append(q.published, publishedEnvelope{
		exchange:   exchange,
		routingKey: routingKey,
		envelope:   envelope,
	})

	return nil
}

func (q *fakeQueue) Consume(ctx context.Context, queueName, consumer string, handler queue.MessageHandler, opts ...queue.ConsumerOption) error {
	return nil
}

func (q *fakeQueue) StartConsumer(ctx context.Context, queueName, consumer string, handler queue.MessageHandler, opts ...queue.ConsumerOption) (<-chan error, error) {
	return nil, nil
}

func (q *fakeQueue) DeclareTopology(exchange string, bindings []queue.QueueBinding) error {
	return nil
}

func (q *fakeQueue) Connect() error { return nil }

func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) IsConnected() bool { return true }

// fakeTransactor hands every callback the same sentinel tx so tests can
// prove a mutation and its staged event shared one transaction.
type fakeTransactor struct {
	tx *sqlx.Tx
}

func newFakeTransactor() *fakeTransactor {
	return &fakeTransactor{tx: &sqlx.Tx{}}
}

func (t *fakeTransactor) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if t.tx == nil {
		t.tx = &sqlx.Tx{}
	}

	return fn(t.tx)
}

type fakeOrderRepo struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	updateTx []*sqlx.Tx
}

func newFakeOrderRepo(orders ...*domain.Order) *fakeOrderRepo {
	repo := &fakeOrderRepo{orders: make(map[string]*domain.Order)}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}

	return repo
}

func (r *fakeOrderRepo) CreateInTx(ctx context.Context, tx *sqlx.Tx, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders[order.ID] = order

	return nil
}

func (r *fakeOrderRepo) Find(ctx context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}

	copied := *order

	return &copied, nil
}

func (r *fakeOrderRepo) UpdateStatusInTx(ctx context.Context, tx *sqlx.Tx, orderID string, from, to domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.updateTx = append(r.updateTx, tx)

	order, ok := r.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}

	if !from.CanTransitionTo(to) {
		return &domain.InvalidStateTransitionError{From: string(from), To: string(to)}
	}

	if order.Status != from {
		return domain.ErrConcurrentModification
	}

	order.Status = to

	return nil
}

type fakeInventoryRepo struct {
	mu sync.Mutex

	available    map[string]int
	reserved     map[string]int
	reserveCalls []string
	reserveTx    []*sqlx.Tx
	releaseCalls []string
	consumeCalls []string
}

func newFakeInventoryRepo(stock map[string]int) *fakeInventoryRepo {
	if stock == nil {
		stock = make(map[string]int)
	}

	return &fakeInventoryRepo{
		available: stock,
		reserved:  make(map[string]int),
	}
}

func (r *fakeInventoryRepo) Available(ctx context.Context, productID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.available[productID], nil
}

func (r *fakeInventoryRepo) ReserveInTx(ctx context.Context, tx *sqlx.Tx, orderID, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reserveCalls = append(r.reserveCalls, orderID)
	r.reserveTx = append(r.reserveTx, tx)

	if r.available[productID] < quantity {
		return fmt.Errorf("product %s: %w", productID, domain.ErrInsufficientStock)
	}

	r.available[productID] -= quantity
	r.reserved[orderID] = quantity

	return nil
}

func (r *fakeInventoryRepo) Release(ctx context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.releaseCalls = append(r.releaseCalls, orderID)

	return nil
}

func (r *fakeInventoryRepo) Consume(ctx context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consumeCalls = append(r.consumeCalls, orderID)

	return nil
}

func (r *fakeInventoryRepo) Restock(ctx context.Context, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.available[productID] += quantity

	return nil
}

func (r *fakeInventoryRepo) CreateProduct(ctx context.Context, productID string, stock int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.available[productID] = stock

	return nil
}

func (r *fakeInventoryRepo) DeleteProduct(ctx context.Context, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.available, productID)

	return nil
}
