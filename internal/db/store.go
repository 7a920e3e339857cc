package db

import (
	"context"
	"slices"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/order"
)

// Store serves the order engine from PostgreSQL. Per-entity exclusivity comes
// from row locks taken inside WithTx.
type Store struct {
	db       *sqlx.DB
	clients  *ClientRepository
	products *ProductRepository
	orders   *OrderRepository
}

var _ order.Store = (*Store)(nil)

func NewStore(database *PostgresDB) *Store {
	return &Store{
		db:       database.Conn,
		clients:  NewClientRepository(database.Conn),
		products: NewProductRepository(database.Conn),
		orders:   NewOrderRepository(database.Conn),
	}
}

func (s *Store) Client(ctx context.Context, id int64) (models.Client, error) {
	return s.clients.GetByID(ctx, id)
}

func (s *Store) Product(ctx context.Context, id int64) (models.Product, error) {
	return s.products.GetByID(ctx, id)
}

func (s *Store) Order(ctx context.Context, id int64) (models.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *Store) OrdersByClient(ctx context.Context, clientID int64) ([]models.Order, error) {
	return s.orders.GetByClient(ctx, clientID)
}

func (s *Store) Orders(ctx context.Context) ([]models.Order, error) {
	return s.orders.GetAll(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := sqlTx.Rollback(); err != nil {
			log.WithError(err).Debug("rollback")
		}
	}()

	tx := &pgTx{
		products: NewProductRepository(sqlTx),
		orders:   NewOrderRepository(sqlTx),
		locked:   make(map[int64]bool),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	committed = true
	return nil
}

type pgTx struct {
	products *ProductRepository
	orders   *OrderRepository
	reserved bool
	locked   map[int64]bool
}

func (tx *pgTx) ApplyStockDeltas(ctx context.Context, deltas []models.StockDelta) ([]models.Product, error) {
	if tx.reserved {
		return nil, errors.New("stock already applied in this transaction")
	}

	ids := make([]int64, 0, len(deltas))
	for _, d := range deltas {
		ids = append(ids, d.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	locked, err := tx.products.LockByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	running := make(map[int64]int, len(locked))
	for id, p := range locked {
		running[id] = p.StockQuantity
	}
	for _, d := range deltas {
		if _, ok := locked[d.ProductID]; !ok {
			return nil, errors.Wrapf(models.ErrProductNotFound, "product %d", d.ProductID)
		}
		next := running[d.ProductID] + d.Delta
		if next < 0 {
			return nil, errors.Wrapf(models.ErrInsufficientStock, "product %d has %d, requested %d",
				d.ProductID, running[d.ProductID], -d.Delta)
		}
		running[d.ProductID] = next
	}

	for _, id := range ids {
		if err := tx.products.SetStock(ctx, id, running[id]); err != nil {
			return nil, err
		}
	}
	tx.reserved = true

	result := make([]models.Product, len(deltas))
	for i, d := range deltas {
		p := locked[d.ProductID]
		p.StockQuantity = running[d.ProductID]
		result[i] = p
	}
	return result, nil
}

func (tx *pgTx) InsertOrder(ctx context.Context, o *models.Order) error {
	return tx.orders.Create(ctx, o)
}

func (tx *pgTx) OrderForUpdate(ctx context.Context, id int64) (models.Order, error) {
	o, err := tx.orders.GetByIDForUpdate(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	tx.locked[id] = true
	return o, nil
}

func (tx *pgTx) SetOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	if !tx.locked[id] {
		return errors.Errorf("order %d is not locked in this transaction", id)
	}
	return tx.orders.UpdateStatus(ctx, id, status)
}
