package domain

import "time"

type (
	// OrderStatus is the order saga state as persisted by the order
	// service. CANCELLED is reachable from every non-terminal state.
	OrderStatus string

	// ReservationStatus tracks a stock reservation on the inventory side.
	ReservationStatus string
)

const (
	OrderStatusPending          OrderStatus = "PENDING"
	OrderStatusCreated          OrderStatus = "CREATED"
	OrderStatusStockReserved    OrderStatus = "STOCK_RESERVED"
	OrderStatusPaymentSucceeded OrderStatus = "PAYMENT_SUCCEEDED"
	OrderStatusConfirmed        OrderStatus = "CONFIRMED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"

	ReservationStatusReserved ReservationStatus = "RESERVED"
	ReservationStatusConsumed ReservationStatus = "CONSUMED"
	ReservationStatusReleased ReservationStatus = "RELEASED"
)

// orderTransitions is the forward path of the order saga. Cancellation
// cross-cuts and is validated separately.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:          {OrderStatusCreated, OrderStatusCancelled},
	OrderStatusCreated:          {OrderStatusStockReserved, OrderStatusCancelled},
	OrderStatusStockReserved:    {OrderStatusPaymentSucceeded, OrderStatusCancelled},
	OrderStatusPaymentSucceeded: {OrderStatusConfirmed, OrderStatusCancelled},
}

// CanTransitionTo reports whether the order saga allows moving to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// IsTerminal reports whether the saga has reached a final state.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusConfirmed || s == OrderStatusCancelled
}

type (
	// Order is the saga-relevant slice of the order aggregate.
	Order struct {
		ID            string
		CorrelationID string
		UserID        string
		ProductID     string
		Quantity      int
		Amount        float64
		Status        OrderStatus
		Source        string
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// Reservation records stock held for an order until payment settles.
	Reservation struct {
		OrderID   string
		ProductID string
		Quantity  int
		Status    ReservationStatus
	}

	// SeckillWin is the pre-validated intent carried by seckill.order.won.
	SeckillWin struct {
		UserID    string  `json:"userId"`
		ProductID string  `json:"productId"`
		Price     float64 `json:"price"`
		Quantity  int     `json:"quantity"`
		Timestamp int64   `json:"timestamp"`
	}
)

const SourceSeckill = "seckill"
