package saga

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/architeacher/svc-commerce-saga/internal/infrastructure"
	"github.com/architeacher/svc-commerce-saga/internal/service"
	"github.com/architeacher/svc-commerce-saga/pkg/queue"
	"github.com/rs/zerolog"
)

func eventMessage(eventType string, data map[string]any) queue.Message {
	return queue.Message{
		Envelope: queue.Envelope{
			Type: eventType,
			Data: data,
			Metadata: queue.Metadata{
				EventID:       "evt-1",
				CorrelationID: "corr-1",
				Timestamp:     time.Now().UTC(),
			},
		},
	}
}

type fakeIdempotency struct {
	mu       sync.Mutex
	seen     map[string]bool
	released []string
	err      error
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{seen: make(map[string]bool)}
}

func (f *fakeIdempotency) key(consumerName, key string) string {
	return fmt.Sprintf("%s:%s", consumerName, key)
}

func (f *fakeIdempotency) IsProcessed(ctx context.Context, consumerName, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.seen[f.key(consumerName, key)], f.err
}

func (f *fakeIdempotency) MarkProcessed(ctx context.Context, consumerName, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seen[f.key(consumerName, key)] = true

	return f.err
}

func (f *fakeIdempotency) CheckAndMark(ctx context.Context, consumerName, key string, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fullKey := f.key(consumerName, key)
	if f.seen[fullKey] {
		return true, nil
	}

	f.seen[fullKey] = true

	return false, nil
}

func (f *fakeIdempotency) Release(ctx context.Context, consumerName, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fullKey := f.key(consumerName, key)
	delete(f.seen, fullKey)
	f.released = append(f.released, fullKey)

	return nil
}

type fakeOrderService struct {
	created   []service.CreateOrderCommand
	reserved  []string
	confirmed []string
	cancelled map[string]string

	createErr error
	err       error
}

func newFakeOrderService() *fakeOrderService {
	return &fakeOrderService{cancelled: make(map[string]string)}
}

func (f *fakeOrderService) CreateOrder(ctx context.Context, cmd service.CreateOrderCommand) (*domain.Order, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}

	f.created = append(f.created, cmd)

	return &domain.Order{
		ID:            "ord-new",
		CorrelationID: cmd.CorrelationID,
		Status:        domain.OrderStatusCreated,
	}, nil
}

func (f *fakeOrderService) MarkStockReserved(ctx context.Context, orderID string) error {
	f.reserved = append(f.reserved, orderID)

	return f.err
}

func (f *fakeOrderService) ConfirmOrder(ctx context.Context, orderID string) error {
	f.confirmed = append(f.confirmed, orderID)

	return f.err
}

func (f *fakeOrderService) CancelOrder(ctx context.Context, orderID, reason string) error {
	f.cancelled[orderID] = reason

	return f.err
}

type reserveCall struct {
	correlationID string
	orderID       string
	productID     string
	quantity      int
}

type fakeInventoryService struct {
	reserves  []reserveCall
	releases  []string
	consumes  []string
	restocks  map[string]int
	created   map[string]int
	deleted   []string

	err error
}

func newFakeInventoryService() *fakeInventoryService {
	return &fakeInventoryService{
		restocks: make(map[string]int),
		created:  make(map[string]int),
	}
}

func (f *fakeInventoryService) ReserveStock(ctx context.Context, correlationID, orderID, productID string, quantity int) error {
	f.reserves = append(f.reserves, reserveCall{correlationID, orderID, productID, quantity})

	return f.err
}

func (f *fakeInventoryService) ReleaseStock(ctx context.Context, orderID string) error {
	f.releases = append(f.releases, orderID)

	return f.err
}

func (f *fakeInventoryService) ConsumeStock(ctx context.Context, orderID string) error {
	f.consumes = append(f.consumes, orderID)

	return f.err
}

func (f *fakeInventoryService) Restock(ctx context.Context, productID string, quantity int) error {
	f.restocks[productID] += quantity

	return f.err
}

func (f *fakeInventoryService) SyncProductCreated(ctx context.Context, productID string, stock int) error {
	f.created[productID] = stock

	return f.err
}

func (f *fakeInventoryService) SyncProductDeleted(ctx context.Context, productID string) error {
	f.deleted = append(f.deleted, productID)

	return f.err
}

type paymentCall struct {
	correlationID string
	orderID       string
	amount        float64
}

type fakePaymentService struct {
	processed []paymentCall
	cancelled []string

	// errs are consumed one per ProcessPayment call, then err applies.
	errs []error
	err  error
}

func (f *fakePaymentService) ProcessPayment(ctx context.Context, correlationID, orderID string, amount float64) error {
	f.processed = append(f.processed, paymentCall{correlationID, orderID, amount})

	if len(f.errs) > 0 {
		next := f.errs[0]
		f.errs = f.errs[1:]

		return next
	}

	return f.err
}

func (f *fakePaymentService) CancelPayment(ctx context.Context, orderID string) error {
	f.cancelled = append(f.cancelled, orderID)

	return f.err
}

type testDeps struct {
	deps      Deps
	orders    *fakeOrderService
	inventory *fakeInventoryService
	payments  *fakePaymentService
	idem      *fakeIdempotency
}

func newTestDeps() testDeps {
	orders := newFakeOrderService()
	inventory := newFakeInventoryService()
	payments := &fakePaymentService{}
	idem := newFakeIdempotency()

	return testDeps{
		deps: Deps{
			OrderService:     orders,
			InventoryService: inventory,
			PaymentService:   payments,
			Idempotency:      idem,
			IdempotencyTTL:   24 * time.Hour,
			Logger:           infrastructure.Logger{Logger: zerolog.Nop()},
			Metrics:          &infrastructure.NoOpMetrics{},
		},
		orders:    orders,
		inventory: inventory,
		payments:  payments,
		idem:      idem,
	}
}
