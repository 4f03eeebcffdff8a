package shop

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
)

const (
	// KindOrder is the entity kind of Order.
	KindOrder = "Order"

	// KindPriorityOrder is the entity kind of PriorityOrder.
	KindPriorityOrder = "PriorityOrder"
)

// Order statuses.
const (
	StatusOpen     = "open"
	StatusPaid     = "paid"
	StatusShipped  = "shipped"
	StatusCanceled = "canceled"
)

// Order is a customer order. Total is in cents.
type Order struct {
	datamapper.Identity

	ID          int64
	ExternalRef uuid.UUID
	Total       int64
	Status      string
	CreatedAt   time.Time
}

// NewOrder creates an open order with a fresh external reference.
func NewOrder(total int64, createdAt time.Time) *Order {
	return &Order{
		ExternalRef: uuid.New(),
		Total:       total,
		Status:      StatusOpen,
		CreatedAt:   createdAt.UTC().Truncate(time.Microsecond),
	}
}

// EntityKind returns KindOrder.
func (o *Order) EntityKind() string {
	return KindOrder
}

// PriorityOrder is an Order handled ahead of the queue.
type PriorityOrder struct {
	Order

	Priority int64
}

// NewPriorityOrder creates an open priority order.
func NewPriorityOrder(total int64, priority int64, createdAt time.Time) *PriorityOrder {
	return &PriorityOrder{
		Order:    *NewOrder(total, createdAt),
		Priority: priority,
	}
}

// EntityKind returns KindPriorityOrder.
func (o *PriorityOrder) EntityKind() string {
	return KindPriorityOrder
}
