package notification

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
)

type failingHistory struct{}

func (failingHistory) Append(context.Context, int64, models.NotificationRecord) error {
	return errors.New("disk full")
}

func (failingHistory) History(context.Context, int64, int) ([]models.NotificationRecord, error) {
	return nil, errors.New("disk full")
}

type panickingHistory struct {
	failingHistory
}

func (panickingHistory) Append(context.Context, int64, models.NotificationRecord) error {
	panic("nil map")
}

func TestDispatcherRecoversFromHistoryPanic(t *testing.T) {
	d := NewDispatcher(panickingHistory{})

	var result models.NotificationResult
	require.NotPanics(t, func() {
		result = d.SendOrderNotification(context.Background(), models.OrderNotification{OrderID: 1, ClientID: 1})
	})
	assert.False(t, result.Success)
	assert.Empty(t, result.NotificationID)
	assert.Equal(t, "Failed to send notification: history store panic: nil map", result.Message)
}

func TestDispatcherRecordsNotification(t *testing.T) {
	ctx := context.Background()
	history := NewMemoryHistory()
	d := NewDispatcher(history)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d.newID = func() string { return "fixed-id" }
	d.now = func() time.Time { return at }

	result := d.SendOrderNotification(ctx, models.OrderNotification{
		OrderID:     5,
		ClientID:    9,
		ClientName:  "Alice",
		ClientEmail: "alice@example.com",
		TotalAmount: decimal.NewFromInt(20),
		Status:      "PENDING",
		Message:     "Order #5 has been created with total amount $20.00",
	})

	assert.Equal(t, models.NotificationResult{
		Success:        true,
		Message:        "Notification sent successfully to alice@example.com",
		NotificationID: "fixed-id",
	}, result)

	got, err := d.NotificationHistory(ctx, 9, 0)
	require.NoError(t, err)
	assert.Equal(t, []models.NotificationRecord{{
		NotificationID: "fixed-id",
		OrderID:        5,
		Message:        "Order #5 has been created with total amount $20.00",
		Timestamp:      at,
		Status:         models.NotificationStatusSent,
	}}, got)
}

func TestDispatcherUniqueIDs(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(NewMemoryHistory())

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		result := d.SendOrderNotification(ctx, models.OrderNotification{OrderID: int64(i), ClientID: 1})
		require.True(t, result.Success)
		assert.False(t, seen[result.NotificationID], "duplicate id %s", result.NotificationID)
		seen[result.NotificationID] = true
	}

	got, err := d.NotificationHistory(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(49), got[2].OrderID)
}

func TestDispatcherHistoryFailure(t *testing.T) {
	d := NewDispatcher(failingHistory{})

	result := d.SendOrderNotification(context.Background(), models.OrderNotification{OrderID: 1, ClientID: 1})
	assert.False(t, result.Success)
	assert.Empty(t, result.NotificationID)
	assert.Equal(t, "Failed to send notification: disk full", result.Message)

	_, err := d.NotificationHistory(context.Background(), 1, 0)
	assert.Error(t, err)
}
