package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
)

var tracer = otel.Tracer("github.com/prudhivi99/Distributed-Systems/ordersys/internal/order")

// Engine owns the order lifecycle: creation with stock reservation, status
// transitions and cancellation with restock.
type Engine struct {
	store     Store
	notifier  Notifier
	publisher EventPublisher
	now       func() time.Time
}

type Option func(*Engine)

// WithPublisher makes the engine emit an OrderEvent after every committed change.
func WithPublisher(p EventPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateOrder reserves stock for every item, freezes the current prices and
// stores a PENDING order. The notification is sent after commit and its
// outcome never changes the result.
func (e *Engine) CreateOrder(ctx context.Context, clientID int64, shippingAddress string, items []models.CreateOrderItemRequest) (order models.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.CreateOrder", trace.WithAttributes(
		attribute.Int64("client.id", clientID),
		attribute.Int("order.items", len(items)),
	))
	defer func() { endSpan(span, err) }()

	client, err := e.store.Client(ctx, clientID)
	if err != nil {
		return models.Order{}, err
	}

	if len(items) == 0 {
		return models.Order{}, errors.Wrap(models.ErrInvalidOrder, "order must contain at least one item")
	}

	deltas := make([]models.StockDelta, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return models.Order{}, errors.Wrapf(models.ErrInvalidOrder, "item %d: quantity must be positive", i+1)
		}
		deltas[i] = models.StockDelta{ProductID: item.ProductID, Delta: -item.Quantity}
	}

	err = e.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		products, err := tx.ApplyStockDeltas(ctx, deltas)
		if err != nil {
			return err
		}

		o := models.Order{
			ClientID:        client.ID,
			Status:          models.StatusPending,
			ShippingAddress: shippingAddress,
			OrderDate:       e.now(),
			Items:           make([]models.OrderItem, len(items)),
		}
		for i, item := range items {
			o.Items[i] = models.OrderItem{
				ProductID:   products[i].ID,
				ProductName: products[i].Name,
				Quantity:    item.Quantity,
				Price:       products[i].Price,
			}
		}
		o.TotalAmount = o.CalculateTotal()

		if err := tx.InsertOrder(ctx, &o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID))
	log.WithFields(log.Fields{
		"order_id":  order.ID,
		"client_id": order.ClientID,
		"total":     order.TotalAmount.StringFixed(2),
	}).Info("✅ Order created")

	// Committed: follow-up effects outlive the caller's cancellation.
	ctx = context.WithoutCancel(ctx)
	e.notify(ctx, order, client)
	e.publish(ctx, newOrderEvent(models.OrderCreated, order, client, "", e.now()))

	return order, nil
}

// UpdateOrderStatus moves a non-terminal order to any known status.
// It has no stock side effects, including when the target is CANCELLED.
func (e *Engine) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) (order models.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.UpdateOrderStatus", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.status", string(status)),
	))
	defer func() { endSpan(span, err) }()

	target, ok := models.ParseOrderStatus(string(status))
	if !ok {
		return models.Order{}, errors.Wrapf(models.ErrValidation, "unknown order status %q", status)
	}
	status = target

	var previous models.OrderStatus
	err = e.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status.IsTerminal() {
			return errors.Wrapf(models.ErrInvalidTransition, "cannot update status of a %s order", strings.ToLower(string(o.Status)))
		}
		if err := tx.SetOrderStatus(ctx, orderID, status); err != nil {
			return err
		}
		previous = o.Status
		o.Status = status
		order = o
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	log.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     previous,
		"to":       order.Status,
	}).Info("🔄 Order status updated")

	ctx = context.WithoutCancel(ctx)
	e.publish(ctx, newOrderEvent(models.OrderStatusChanged, order, e.clientFor(ctx, order), previous, e.now()))
	return order, nil
}

// CancelOrder restores stock for every item and marks the order CANCELLED as one unit.
func (e *Engine) CancelOrder(ctx context.Context, orderID int64) (order models.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.CancelOrder", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
	))
	defer func() { endSpan(span, err) }()

	var previous models.OrderStatus
	err = e.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		switch o.Status {
		case models.StatusDelivered:
			return errors.Wrap(models.ErrInvalidTransition, "cannot cancel a delivered order")
		case models.StatusCancelled:
			return errors.Wrap(models.ErrInvalidTransition, "order is already cancelled")
		}

		deltas := make([]models.StockDelta, len(o.Items))
		for i, item := range o.Items {
			deltas[i] = models.StockDelta{ProductID: item.ProductID, Delta: item.Quantity}
		}
		if len(deltas) > 0 {
			if _, err := tx.ApplyStockDeltas(ctx, deltas); err != nil {
				return errors.Wrap(err, "restock")
			}
		}
		if err := tx.SetOrderStatus(ctx, orderID, models.StatusCancelled); err != nil {
			return err
		}
		previous = o.Status
		o.Status = models.StatusCancelled
		order = o
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	log.WithFields(log.Fields{
		"order_id": order.ID,
		"items":    len(order.Items),
	}).Info("🗑️ Order cancelled, stock restored")

	ctx = context.WithoutCancel(ctx)
	e.publish(ctx, newOrderEvent(models.OrderCancelled, order, e.clientFor(ctx, order), previous, e.now()))
	return order, nil
}

func (e *Engine) GetOrderByID(ctx context.Context, orderID int64) (models.Order, error) {
	return e.store.Order(ctx, orderID)
}

// GetOrdersByClientID returns an empty slice for a client without orders.
func (e *Engine) GetOrdersByClientID(ctx context.Context, clientID int64) ([]models.Order, error) {
	orders, err := e.store.OrdersByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (e *Engine) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := e.store.Orders(ctx)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// CalculateOrderTotal returns the total frozen at creation.
func (e *Engine) CalculateOrderTotal(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	o, err := e.store.Order(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return o.TotalAmount, nil
}

func (e *Engine) notify(ctx context.Context, o models.Order, client models.Client) {
	if e.notifier == nil {
		return
	}

	ctx, span := tracer.Start(ctx, "order.notify", trace.WithAttributes(
		attribute.Int64("order.id", o.ID),
		attribute.Int64("client.id", client.ID),
	))
	defer span.End()

	result := e.notifier.SendOrderNotification(ctx, models.OrderNotification{
		OrderID:     o.ID,
		ClientID:    client.ID,
		ClientName:  client.Name,
		ClientEmail: client.Email,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		Message:     CreationMessage(o),
	})

	fields := log.Fields{"order_id": o.ID, "client_id": client.ID}
	if !result.Success {
		err := errors.Wrap(models.ErrDispatchFailure, result.Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, result.Message)
		log.WithFields(fields).WithError(err).Warn("⚠️ Notification failed")
		return
	}

	span.SetAttributes(attribute.String("notification.id", result.NotificationID))
	fields["notification_id"] = result.NotificationID
	log.WithFields(fields).Info("📨 " + result.Message)
}

func (e *Engine) publish(ctx context.Context, event models.OrderEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		log.WithFields(log.Fields{
			"order_id": event.OrderID,
			"event":    event.Type,
		}).WithError(err).Warn("⚠️ Failed to publish event")
		return
	}
	log.WithFields(log.Fields{"order_id": event.OrderID, "event": event.Type}).Debug("📤 Published order event")
}

// clientFor enriches events; a failed lookup only leaves name and email blank.
func (e *Engine) clientFor(ctx context.Context, o models.Order) models.Client {
	client, err := e.store.Client(ctx, o.ClientID)
	if err != nil {
		log.WithField("client_id", o.ClientID).WithError(err).Debug("client lookup for event failed")
		return models.Client{ID: o.ClientID}
	}
	return client
}

// CreationMessage is the notification text for a new order.
func CreationMessage(o models.Order) string {
	return fmt.Sprintf("Order #%d has been created with total amount $%s", o.ID, o.TotalAmount.StringFixed(2))
}

func newOrderEvent(typ models.OrderEventType, o models.Order, client models.Client, previous models.OrderStatus, at time.Time) models.OrderEvent {
	event := models.OrderEvent{
		Type:           typ,
		OrderID:        o.ID,
		ClientID:       o.ClientID,
		ClientName:     client.Name,
		ClientEmail:    client.Email,
		Status:         o.Status,
		PreviousStatus: previous,
		TotalAmount:    o.TotalAmount,
		OccurredAt:     at,
	}

	sign := 0
	switch typ {
	case models.OrderCreated:
		sign = -1
	case models.OrderCancelled:
		sign = 1
	}
	if sign != 0 {
		for _, item := range o.Items {
			event.Items = append(event.Items, models.OrderItemEvent{
				ProductID: item.ProductID,
				Quantity:  sign * item.Quantity,
			})
		}
	}
	return event
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
