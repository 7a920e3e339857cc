package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
)

var tracer = otel.Tracer("github.com/prudhivi99/Distributed-Systems/ordersys/internal/notification")

// Dispatcher records order notifications into the history store. It is the
// server side of the notification RPC.
type Dispatcher struct {
	history HistoryStore
	newID   func() string
	now     func() time.Time
}

func NewDispatcher(history HistoryStore) *Dispatcher {
	return &Dispatcher{
		history: history,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// SendOrderNotification never returns an error: failures come back as Success=false.
func (d *Dispatcher) SendOrderNotification(ctx context.Context, n models.OrderNotification) models.NotificationResult {
	ctx, span := tracer.Start(ctx, "notification.Send", trace.WithAttributes(
		attribute.Int64("order.id", n.OrderID),
		attribute.Int64("client.id", n.ClientID),
	))
	defer span.End()

	fields := log.Fields{"order_id": n.OrderID, "client_id": n.ClientID, "client": n.ClientName}
	log.WithFields(fields).Info("📥 Notification request received")

	record := models.NotificationRecord{
		NotificationID: d.newID(),
		OrderID:        n.OrderID,
		Message:        n.Message,
		Timestamp:      d.now(),
		Status:         models.NotificationStatusSent,
	}

	if err := d.append(ctx, n.ClientID, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithFields(fields).WithError(err).Error("❌ Failed to record notification")
		return models.NotificationResult{
			Success: false,
			Message: "Failed to send notification: " + err.Error(),
		}
	}

	span.SetAttributes(attribute.String("notification.id", record.NotificationID))
	fields["notification_id"] = record.NotificationID
	log.WithFields(fields).Info("✅ Notification sent")

	return models.NotificationResult{
		Success:        true,
		Message:        "Notification sent successfully to " + n.ClientEmail,
		NotificationID: record.NotificationID,
	}
}

// append turns a panicking history store into an error.
func (d *Dispatcher) append(ctx context.Context, clientID int64, record models.NotificationRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("history store panic: %v", r)
		}
	}()
	return d.history.Append(ctx, clientID, record)
}

func (d *Dispatcher) NotificationHistory(ctx context.Context, clientID int64, limit int) ([]models.NotificationRecord, error) {
	log.WithFields(log.Fields{"client_id": clientID, "limit": limit}).Debug("Fetching notification history")
	return d.history.History(ctx, clientID, limit)
}
