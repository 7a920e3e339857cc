package store

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/order"
)

type productSlot struct {
	mu sync.Mutex
	p  models.Product
}

type orderSlot struct {
	mu sync.Mutex
	o  models.Order
}

// Memory keeps clients, products and orders in process memory. The maps are
// guarded by mu; each product and order has its own lock so unrelated
// entities never contend.
type Memory struct {
	mu       sync.RWMutex
	clients  map[int64]models.Client
	products map[int64]*productSlot
	orders   map[int64]*orderSlot
	byClient map[int64][]int64
	ids      []int64

	orderSeq atomic.Int64
	itemSeq  atomic.Int64
}

var _ order.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		clients:  make(map[int64]models.Client),
		products: make(map[int64]*productSlot),
		orders:   make(map[int64]*orderSlot),
		byClient: make(map[int64][]int64),
	}
}

// PutClient adds or replaces a client.
func (m *Memory) PutClient(c models.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
}

// PutProduct adds or replaces a product.
func (m *Memory) PutProduct(p models.Product) {
	m.mu.Lock()
	slot, ok := m.products[p.ID]
	if !ok {
		m.products[p.ID] = &productSlot{p: p}
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	slot.mu.Lock()
	slot.p = p
	slot.mu.Unlock()
}

func (m *Memory) Client(_ context.Context, id int64) (models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return models.Client{}, errors.Wrapf(models.ErrClientNotFound, "client %d", id)
	}
	return c, nil
}

func (m *Memory) Product(_ context.Context, id int64) (models.Product, error) {
	slot := m.productSlot(id)
	if slot == nil {
		return models.Product{}, errors.Wrapf(models.ErrProductNotFound, "product %d", id)
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.p, nil
}

func (m *Memory) Order(_ context.Context, id int64) (models.Order, error) {
	slot := m.orderSlot(id)
	if slot == nil {
		return models.Order{}, errors.Wrapf(models.ErrOrderNotFound, "order %d", id)
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.o.Clone(), nil
}

func (m *Memory) OrdersByClient(_ context.Context, clientID int64) ([]models.Order, error) {
	m.mu.RLock()
	ids := slices.Clone(m.byClient[clientID])
	m.mu.RUnlock()
	return m.snapshot(ids), nil
}

func (m *Memory) Orders(_ context.Context) ([]models.Order, error) {
	m.mu.RLock()
	ids := slices.Clone(m.ids)
	m.mu.RUnlock()
	return m.snapshot(ids), nil
}

// WithTx never holds mu while waiting for an entity lock, and entity locks are
// taken orders first, then products in ascending id order.
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	tx := &memTx{m: m, stock: make(map[int64]int)}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) snapshot(ids []int64) []models.Order {
	orders := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		slot := m.orderSlot(id)
		if slot == nil {
			continue
		}
		slot.mu.Lock()
		orders = append(orders, slot.o.Clone())
		slot.mu.Unlock()
	}
	return orders
}

func (m *Memory) productSlot(id int64) *productSlot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.products[id]
}

func (m *Memory) orderSlot(id int64) *orderSlot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[id]
}

// memTx buffers writes and applies them on commit while every touched entity is still locked.
type memTx struct {
	m *Memory

	reserved bool
	products []*productSlot
	stock    map[int64]int

	locked    *orderSlot
	status    models.OrderStatus
	statusSet bool

	inserted *models.Order
}

func (tx *memTx) ApplyStockDeltas(_ context.Context, deltas []models.StockDelta) ([]models.Product, error) {
	if tx.reserved {
		return nil, errors.New("stock already applied in this transaction")
	}

	ids := make([]int64, 0, len(deltas))
	for _, d := range deltas {
		ids = append(ids, d.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	slots := make(map[int64]*productSlot, len(ids))
	for _, id := range ids {
		slot := tx.m.productSlot(id)
		if slot == nil {
			continue
		}
		slot.mu.Lock()
		tx.products = append(tx.products, slot)
		slots[id] = slot
	}

	running := make(map[int64]int, len(slots))
	for id, slot := range slots {
		running[id] = slot.p.StockQuantity
	}

	for _, d := range deltas {
		if _, ok := slots[d.ProductID]; !ok {
			return nil, errors.Wrapf(models.ErrProductNotFound, "product %d", d.ProductID)
		}
		next := running[d.ProductID] + d.Delta
		if next < 0 {
			return nil, errors.Wrapf(models.ErrInsufficientStock, "product %d has %d, requested %d",
				d.ProductID, running[d.ProductID], -d.Delta)
		}
		running[d.ProductID] = next
	}

	tx.reserved = true
	tx.stock = running

	result := make([]models.Product, len(deltas))
	for i, d := range deltas {
		p := slots[d.ProductID].p
		p.StockQuantity = running[d.ProductID]
		result[i] = p
	}
	return result, nil
}

func (tx *memTx) InsertOrder(_ context.Context, o *models.Order) error {
	if tx.inserted != nil {
		return errors.New("order already inserted in this transaction")
	}
	o.ID = tx.m.orderSeq.Add(1)
	for i := range o.Items {
		o.Items[i].ID = tx.m.itemSeq.Add(1)
		o.Items[i].OrderID = o.ID
	}
	inserted := o.Clone()
	tx.inserted = &inserted
	return nil
}

func (tx *memTx) OrderForUpdate(_ context.Context, id int64) (models.Order, error) {
	if tx.reserved {
		return models.Order{}, errors.New("orders must be locked before stock")
	}
	if tx.locked != nil {
		if tx.locked.o.ID == id {
			return tx.locked.o.Clone(), nil
		}
		return models.Order{}, errors.New("another order is already locked in this transaction")
	}

	slot := tx.m.orderSlot(id)
	if slot == nil {
		return models.Order{}, errors.Wrapf(models.ErrOrderNotFound, "order %d", id)
	}
	slot.mu.Lock()
	tx.locked = slot
	return slot.o.Clone(), nil
}

func (tx *memTx) SetOrderStatus(_ context.Context, id int64, status models.OrderStatus) error {
	if tx.locked == nil || tx.locked.o.ID != id {
		return errors.Errorf("order %d is not locked in this transaction", id)
	}
	tx.status = status
	tx.statusSet = true
	return nil
}

func (tx *memTx) commit() {
	for _, slot := range tx.products {
		slot.p.StockQuantity = tx.stock[slot.p.ID]
	}
	if tx.statusSet {
		tx.locked.o.Status = tx.status
	}
	if tx.inserted != nil {
		o := *tx.inserted
		tx.m.mu.Lock()
		tx.m.orders[o.ID] = &orderSlot{o: o}
		tx.m.byClient[o.ClientID] = append(tx.m.byClient[o.ClientID], o.ID)
		tx.m.ids = append(tx.m.ids, o.ID)
		tx.m.mu.Unlock()
	}
}

func (tx *memTx) release() {
	for i := len(tx.products) - 1; i >= 0; i-- {
		tx.products[i].mu.Unlock()
	}
	tx.products = nil
	if tx.locked != nil {
		tx.locked.mu.Unlock()
		tx.locked = nil
	}
}
