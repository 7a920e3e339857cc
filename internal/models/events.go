package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	OrderCreated       OrderEventType = "order.created"
	OrderStatusChanged OrderEventType = "order.status_changed"
	OrderCancelled     OrderEventType = "order.cancelled"
)

// OrderEvent is published after an order change has been committed
type OrderEvent struct {
	Type           OrderEventType   `json:"type"`
	OrderID        int64            `json:"order_id"`
	ClientID       int64            `json:"client_id"`
	ClientName     string           `json:"client_name"`
	ClientEmail    string           `json:"client_email"`
	Status         OrderStatus      `json:"status"`
	PreviousStatus OrderStatus      `json:"previous_status,omitempty"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	Items          []OrderItemEvent `json:"items"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

type OrderItemEvent struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"` // negative = reserved, positive = restocked
}
