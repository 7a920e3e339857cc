package client

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/rpc"
)

const DefaultTimeout = 3 * time.Second

// NotificationClient calls the notification service. Every call is bounded by
// the client timeout and made exactly once.
type NotificationClient struct {
	conn    *grpc.ClientConn
	rpc     rpc.NotificationServiceClient
	timeout time.Duration
}

func NewNotificationClient(target string, timeout time.Duration, opts ...grpc.DialOption) (*NotificationClient, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create notification client for %s", target)
	}

	log.WithFields(log.Fields{"target": target, "timeout": timeout.String()}).Info("✅ Notification client ready")
	return &NotificationClient{
		conn:    conn,
		rpc:     rpc.NewNotificationServiceClient(conn),
		timeout: timeout,
	}, nil
}

// SendOrderNotification turns unreachable servers, timeouts and malformed
// replies into a failed result instead of an error.
func (c *NotificationClient) SendOrderNotification(ctx context.Context, n models.OrderNotification) models.NotificationResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log.WithField("order_id", n.OrderID).Debug("📞 Sending notification via gRPC")
	resp, err := c.rpc.SendOrderNotification(ctx, &n)
	if err != nil {
		return failed(err)
	}
	if resp.Success && resp.NotificationID == "" {
		return failed(errors.New("malformed response: missing notification id"))
	}
	return *resp
}

// NotificationHistory returns the client's most recent notifications; limit <= 0 means all.
func (c *NotificationClient) NotificationHistory(ctx context.Context, clientID int64, limit int) ([]models.NotificationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.rpc.GetNotificationHistory(ctx, &models.NotificationHistoryRequest{
		ClientID: clientID,
		Limit:    limit,
	})
	if err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return nil, errors.Wrap(models.ErrValidation, status.Convert(err).Message())
		}
		return nil, errors.Wrap(models.ErrDispatchFailure, err.Error())
	}
	if resp.Notifications == nil {
		return []models.NotificationRecord{}, nil
	}
	return resp.Notifications, nil
}

func (c *NotificationClient) Close() error {
	return c.conn.Close()
}

func failed(err error) models.NotificationResult {
	return models.NotificationResult{
		Success: false,
		Message: "Failed to send notification: " + err.Error(),
	}
}
