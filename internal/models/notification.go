package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const NotificationStatusSent = "SENT"

// NotificationRecord is one entry of a recipient's history log. It is never modified after append.
type NotificationRecord struct {
	NotificationID string    `json:"notification_id"`
	OrderID        int64     `json:"order_id"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
	Status         string    `json:"status"`
}

// OrderNotification is the request sent to the notification dispatcher.
type OrderNotification struct {
	OrderID     int64           `json:"order_id"`
	ClientID    int64           `json:"client_id"`
	ClientName  string          `json:"client_name"`
	ClientEmail string          `json:"client_email"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	Message     string          `json:"message"`
}

// NotificationResult always comes back from a dispatch, successful or not.
// NotificationID is set only when Success is true.
type NotificationResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	NotificationID string `json:"notification_id,omitempty"`
}

type NotificationHistoryRequest struct {
	ClientID int64 `json:"client_id"`
	Limit    int   `json:"limit"`
}

type NotificationHistoryResponse struct {
	Notifications []NotificationRecord `json:"notifications"`
}
