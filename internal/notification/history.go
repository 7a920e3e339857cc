package notification

import (
	"context"
	"sync"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
)

// HistoryStore is an append-only notification log per recipient.
type HistoryStore interface {
	Append(ctx context.Context, recipientID int64, record models.NotificationRecord) error

	// History returns the most recent limit records in arrival order.
	// limit <= 0 means the whole log.
	History(ctx context.Context, recipientID int64, limit int) ([]models.NotificationRecord, error)
}

type recipientLog struct {
	mu      sync.RWMutex
	records []models.NotificationRecord
}

// MemoryHistory lives for the process lifetime. Appends for one recipient are
// serialized; different recipients only share the brief map lookup.
type MemoryHistory struct {
	mu   sync.RWMutex
	logs map[int64]*recipientLog
}

var _ HistoryStore = (*MemoryHistory)(nil)

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{logs: make(map[int64]*recipientLog)}
}

func (h *MemoryHistory) Append(_ context.Context, recipientID int64, record models.NotificationRecord) error {
	l := h.log(recipientID, true)
	l.mu.Lock()
	l.records = append(l.records, record)
	l.mu.Unlock()
	return nil
}

func (h *MemoryHistory) History(_ context.Context, recipientID int64, limit int) ([]models.NotificationRecord, error) {
	l := h.log(recipientID, false)
	if l == nil {
		return []models.NotificationRecord{}, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	tail := Tail(l.records, limit)
	out := make([]models.NotificationRecord, len(tail))
	copy(out, tail)
	return out, nil
}

func (h *MemoryHistory) log(recipientID int64, create bool) *recipientLog {
	h.mu.RLock()
	l, ok := h.logs[recipientID]
	h.mu.RUnlock()
	if ok || !create {
		return l
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok = h.logs[recipientID]; !ok {
		l = &recipientLog{}
		h.logs[recipientID] = l
	}
	return l
}

// Tail is a view of the last limit records; limit <= 0 or past the length returns all of them.
func Tail(records []models.NotificationRecord, limit int) []models.NotificationRecord {
	if limit <= 0 || limit >= len(records) {
		return records
	}
	return records[len(records)-limit:]
}
