package domain

import (
	"fmt"
)

// EventType discriminates event payloads on the wire. Consumers depend on
// these exact strings; do not rename.
type EventType string

const (
	EventProductCreated          EventType = "PRODUCT_CREATED"
	EventProductDeleted          EventType = "PRODUCT_DELETED"
	EventOrderCreated            EventType = "ORDER_CREATED"
	EventOrderConfirmed          EventType = "ORDER_CONFIRMED"
	EventOrderCancelled          EventType = "ORDER_CANCELLED"
	EventOrderTimeout            EventType = "ORDER_TIMEOUT"
	EventReserve                 EventType = "RESERVE"
	EventRelease                 EventType = "RELEASE"
	EventRestock                 EventType = "RESTOCK"
	EventInventoryReserved       EventType = "INVENTORY_RESERVED"
	EventInventoryReserveFailed  EventType = "INVENTORY_RESERVE_FAILED"
	EventStockReserved           EventType = "STOCK_RESERVED"
	EventPaymentInitiated        EventType = "PAYMENT_INITIATED"
	EventPaymentSucceeded        EventType = "PAYMENT_SUCCEEDED"
	EventPaymentFailed           EventType = "PAYMENT_FAILED"
	EventPaymentCancel           EventType = "PAYMENT_CANCEL"
	EventSeckillOrderWon         EventType = "seckill.order.won"
)

// Queue topology shared by all services.
const (
	QueueOrderEvents     = "q.order.events"
	QueueInventoryEvents = "q.inventory.events"
	QueuePaymentEvents   = "q.payment.events"
	QueueProducts        = "q.products"
	QueueOrderSeckill    = "q.order-seckill"
)

// compensations maps an event type that can strand a saga to the event
// that reverses its committed effect.
var compensations = map[EventType]EventType{
	EventReserve:          EventRelease,
	EventOrderCreated:     EventOrderTimeout,
	EventPaymentInitiated: EventPaymentCancel,
}

// CompensationFor returns the compensation event type for the given
// original, or false when the step has nothing to reverse.
func CompensationFor(original EventType) (EventType, bool) {
	comp, ok := compensations[original]

	return comp, ok
}

// TimeoutCompensationID derives the deterministic event id for a
// compensation synthesized by the timeout worker, so a rescan after a
// crash produces the same logical event.
func TimeoutCompensationID(originalEventID string) string {
	return fmt.Sprintf("%s-timeout-comp", originalEventID)
}
