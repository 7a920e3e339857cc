package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
)

// RedisHistory keeps one Redis list per recipient. RPUSH is atomic per key,
// so concurrent appends for a recipient land in arrival order.
type RedisHistory struct {
	client *redis.Client
	prefix string
}

var _ HistoryStore = (*RedisHistory)(nil)

func NewRedisClient(ctx context.Context, host string, port int, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	log.WithField("addr", client.Options().Addr).Info("✅ Connected to Redis")
	return client, nil
}

func NewRedisHistory(client *redis.Client, prefix string) *RedisHistory {
	if prefix == "" {
		prefix = "notifications"
	}
	return &RedisHistory{client: client, prefix: prefix}
}

func (h *RedisHistory) key(recipientID int64) string {
	return fmt.Sprintf("%s:client:%d", h.prefix, recipientID)
}

// Append stores record at the end of the recipient's list
func (h *RedisHistory) Append(ctx context.Context, recipientID int64, record models.NotificationRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification record")
	}
	if err := h.client.RPush(ctx, h.key(recipientID), data).Err(); err != nil {
		return errors.Wrap(err, "failed to append notification record")
	}
	return nil
}

// History reads the tail of the list without trimming it
func (h *RedisHistory) History(ctx context.Context, recipientID int64, limit int) ([]models.NotificationRecord, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	values, err := h.client.LRange(ctx, h.key(recipientID), start, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read notification history")
	}

	records := make([]models.NotificationRecord, 0, len(values))
	for _, v := range values {
		var rec models.NotificationRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, errors.Wrap(err, "failed to decode notification record")
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close closes the Redis connection
func (h *RedisHistory) Close() error {
	return h.client.Close()
}
