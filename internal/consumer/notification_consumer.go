package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
)

// Queues lists every order event queue the consumer drains. Created events
// are acked without a notification so the queue never backs up.
var Queues = []models.OrderEventType{
	models.OrderCreated,
	models.OrderStatusChanged,
	models.OrderCancelled,
}

// Sender is satisfied by notification.Dispatcher.
type Sender interface {
	SendOrderNotification(ctx context.Context, n models.OrderNotification) models.NotificationResult
}

// NotificationConsumer turns order status changes and cancellations into client notifications.
type NotificationConsumer struct {
	sender Sender
}

func NewNotificationConsumer(sender Sender) *NotificationConsumer {
	return &NotificationConsumer{sender: sender}
}

// Run handles deliveries until ctx is done or the channel is closed.
func (c *NotificationConsumer) Run(ctx context.Context, messages <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				log.Warn("⚠️ Delivery channel closed")
				return
			}
			c.Handle(ctx, msg)
		}
	}
}

// Handle processes a single delivery. Bad payloads are dropped; a failed
// dispatch is requeued once.
func (c *NotificationConsumer) Handle(ctx context.Context, msg amqp.Delivery) {
	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		log.WithError(err).Error("❌ Failed to parse event")
		nack(msg, false) // Don't requeue bad messages
		return
	}

	fields := log.Fields{"order_id": event.OrderID, "event": event.Type}
	log.WithFields(fields).Info("📥 Received order event")

	message, ok := EventMessage(event)
	if !ok {
		log.WithFields(fields).Debug("event does not notify the client")
		ack(msg)
		return
	}

	result := c.sender.SendOrderNotification(ctx, models.OrderNotification{
		OrderID:     event.OrderID,
		ClientID:    event.ClientID,
		ClientName:  event.ClientName,
		ClientEmail: event.ClientEmail,
		TotalAmount: event.TotalAmount,
		Status:      string(event.Status),
		Message:     message,
	})

	if result.Success {
		ack(msg)
		log.WithFields(fields).WithField("notification_id", result.NotificationID).Info("✅ Event notification sent")
		return
	}

	requeue := !msg.Redelivered
	nack(msg, requeue)
	log.WithFields(fields).WithField("requeued", requeue).Warn("⚠️ " + result.Message)
}

// EventMessage is the client-facing text for an event; created events are notified over RPC instead.
func EventMessage(event models.OrderEvent) (string, bool) {
	switch event.Type {
	case models.OrderStatusChanged:
		return fmt.Sprintf("Order #%d status changed from %s to %s",
			event.OrderID, strings.ToLower(string(event.PreviousStatus)), strings.ToLower(string(event.Status))), true
	case models.OrderCancelled:
		return fmt.Sprintf("Order #%d has been cancelled", event.OrderID), true
	default:
		return "", false
	}
}

func ack(msg amqp.Delivery) {
	if err := msg.Ack(false); err != nil {
		log.WithError(err).Warn("⚠️ Ack failed")
	}
}

func nack(msg amqp.Delivery, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		log.WithError(err).Warn("⚠️ Nack failed")
	}
}
