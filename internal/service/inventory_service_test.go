package service

import (
	"context"
	"testing"

	"github.com/architeacher/svc-commerce-saga/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInventoryService(repo *fakeInventoryRepo, outbox *fakeOutboxRepo) InventoryService {
	return NewInventoryService(repo, outbox, newFakeTransactor(), testLogger())
}

func TestReserveStockStagesReservedAnswer(t *testing.T) {
	t.Parallel()

	repo := newFakeInventoryRepo(map[string]int{"prod-1": 10})
	outbox := &fakeOutboxRepo{}
	svc := newInventoryService(repo, outbox)

	require.NoError(t, svc.ReserveStock(context.Background(), "corr-1", "ord-1", "prod-1", 3))

	available, _ := repo.Available(context.Background(), "prod-1")
	assert.Equal(t, 7, available)

	require.Len(t, outbox.saved, 1)
	staged := outbox.saved[0]
	assert.Equal(t, domain.EventInventoryReserved, staged.EventType)
	assert.Equal(t, "corr-1", staged.CorrelationID)
	assert.Equal(t, "ord-1", staged.Payload["orderId"])
	assert.Equal(t, 3, staged.Payload["quantity"])
}

func TestReserveStockShortageStagesFailureAnswer(t *testing.T) {
	t.Parallel()

	repo := newFakeInventoryRepo(map[string]int{"prod-1": 1})
	outbox := &fakeOutboxRepo{}
	svc := newInventoryService(repo, outbox)

	// A shortage is a business outcome; the handler acks, so no error
	// may surface here.
	require.NoError(t, svc.ReserveStock(context.Background(), "corr-1", "ord-1", "prod-1", 5))

	available, _ := repo.Available(context.Background(), "prod-1")
	assert.Equal(t, 1, available, "shortage must not touch stock")

	require.Len(t, outbox.saved, 1)
	staged := outbox.saved[0]
	assert.Equal(t, domain.EventInventoryReserveFailed, staged.EventType)
	assert.Contains(t, staged.Payload["reason"], "insufficient stock")
}

func TestReserveStockCommitsAnswerAtomically(t *testing.T) {
	t.Parallel()

	repo := newFakeInventoryRepo(map[string]int{"prod-1": 10})
	outbox := &fakeOutboxRepo{}
	transactor := newFakeTransactor()
	svc := NewInventoryService(repo, outbox, transactor, testLogger())

	require.NoError(t, svc.ReserveStock(context.Background(), "corr-1", "ord-1", "prod-1", 3))

	// The reservation and the staged answer share the single transaction
	// the transactor handed out.
	require.Len(t, repo.reserveTx, 1)
	assert.Same(t, transactor.tx, repo.reserveTx[0])

	require.Len(t, outbox.savedTx, 1)
	assert.Same(t, transactor.tx, outbox.savedTx[0])
}

func TestReleaseAndConsumeDelegate(t *testing.T) {
	t.Parallel()

	repo := newFakeInventoryRepo(nil)
	svc := newInventoryService(repo, &fakeOutboxRepo{})

	require.NoError(t, svc.ReleaseStock(context.Background(), "ord-1"))
	require.NoError(t, svc.ConsumeStock(context.Background(), "ord-2"))

	assert.Equal(t, []string{"ord-1"}, repo.releaseCalls)
	assert.Equal(t, []string{"ord-2"}, repo.consumeCalls)
}

func TestProductSync(t *testing.T) {
	t.Parallel()

	repo := newFakeInventoryRepo(nil)
	svc := newInventoryService(repo, &fakeOutboxRepo{})

	require.NoError(t, svc.SyncProductCreated(context.Background(), "prod-9", 100))

	available, _ := repo.Available(context.Background(), "prod-9")
	assert.Equal(t, 100, available)

	require.NoError(t, svc.Restock(context.Background(), "prod-9", 20))

	available, _ = repo.Available(context.Background(), "prod-9")
	assert.Equal(t, 120, available)

	require.NoError(t, svc.SyncProductDeleted(context.Background(), "prod-9"))

	available, _ = repo.Available(context.Background(), "prod-9")
	assert.Zero(t, available)
}
