package order

import (
	"context"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
)

// Store is the engine's view of clients, products and orders.
// Lookups return errors wrapping models.ErrClientNotFound, models.ErrProductNotFound
// or models.ErrOrderNotFound.
type Store interface {
	Client(ctx context.Context, id int64) (models.Client, error)
	Product(ctx context.Context, id int64) (models.Product, error)
	Order(ctx context.Context, id int64) (models.Order, error)
	OrdersByClient(ctx context.Context, clientID int64) ([]models.Order, error)
	Orders(ctx context.Context) ([]models.Order, error)

	// WithTx runs fn as one unit. Every write made through tx becomes visible
	// when fn returns nil and none of them does when it returns an error.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx holds exclusive access to every product and order it touches until the
// surrounding WithTx returns.
type Tx interface {
	// ApplyStockDeltas locks all referenced products, then checks the deltas in
	// the given order. It fails without effect when a product is missing or a
	// running stock would drop below zero. The returned products are aligned
	// with deltas and carry the price observed under the lock.
	// It may be called at most once per transaction.
	ApplyStockDeltas(ctx context.Context, deltas []models.StockDelta) ([]models.Product, error)

	// InsertOrder assigns o.ID (and item ids) and stores the order.
	InsertOrder(ctx context.Context, o *models.Order) error

	// OrderForUpdate locks the order. It must be called before ApplyStockDeltas
	// in the same transaction.
	OrderForUpdate(ctx context.Context, id int64) (models.Order, error)

	// SetOrderStatus requires the order to have been locked with OrderForUpdate.
	SetOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error
}

// Notifier delivers order notifications. It always returns a result and never fails the caller.
type Notifier interface {
	SendOrderNotification(ctx context.Context, n models.OrderNotification) models.NotificationResult
}

// EventPublisher emits order lifecycle events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
}
