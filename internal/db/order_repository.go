package db

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
)

const orderColumns = "id, client_id, status, shipping_address, total_amount, order_date"

type OrderRepository struct {
	q sqlx.ExtContext
}

func NewOrderRepository(q sqlx.ExtContext) *OrderRepository {
	return &OrderRepository{q: q}
}

// Create inserts a new order with items. The caller owns the transaction.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	orderQuery := `
		INSERT INTO orders (client_id, status, shipping_address, total_amount, order_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.q.QueryRowxContext(ctx, orderQuery,
		order.ClientID,
		order.Status,
		order.ShippingAddress,
		order.TotalAmount,
		order.OrderDate,
	).Scan(&order.ID)
	if err != nil {
		return errors.Wrap(err, "failed to insert order")
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		err = r.q.QueryRowxContext(ctx, itemQuery,
			order.ID,
			order.Items[i].ProductID,
			order.Items[i].ProductName,
			order.Items[i].Quantity,
			order.Items[i].Price,
		).Scan(&order.Items[i].ID)
		if err != nil {
			return errors.Wrap(err, "failed to insert order item")
		}
	}

	return nil
}

// GetAll returns all orders, oldest first
func (r *OrderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := sqlx.SelectContext(ctx, r.q, &orders, "SELECT "+orderColumns+" FROM orders ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "failed to query orders")
	}
	return orders, r.loadItems(ctx, orders)
}

func (r *OrderRepository) GetByClient(ctx context.Context, clientID int64) ([]models.Order, error) {
	var orders []models.Order
	query := "SELECT " + orderColumns + " FROM orders WHERE client_id = $1 ORDER BY id"
	if err := sqlx.SelectContext(ctx, r.q, &orders, query, clientID); err != nil {
		return nil, errors.Wrap(err, "failed to query client orders")
	}
	return orders, r.loadItems(ctx, orders)
}

// GetByID returns a single order with items
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (models.Order, error) {
	return r.get(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
}

// GetByIDForUpdate is GetByID holding the order row lock until the transaction ends
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id int64) (models.Order, error) {
	return r.get(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
}

// UpdateStatus updates order status
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	result, err := r.q.ExecContext(ctx, "UPDATE orders SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return errors.Wrap(err, "failed to update order")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.Wrapf(models.ErrOrderNotFound, "order %d", id)
	}
	return nil
}

func (r *OrderRepository) get(ctx context.Context, query string, id int64) (models.Order, error) {
	var order models.Order
	if err := sqlx.GetContext(ctx, r.q, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Order{}, errors.Wrapf(models.ErrOrderNotFound, "order %d", id)
		}
		return models.Order{}, errors.Wrap(err, "failed to get order")
	}

	orders := []models.Order{order}
	if err := r.loadItems(ctx, orders); err != nil {
		return models.Order{}, err
	}
	return orders[0], nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Items = []models.OrderItem{}
	}

	var items []models.OrderItem
	query := `SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`
	if err := sqlx.SelectContext(ctx, r.q, &items, query, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "failed to query order items")
	}

	for _, item := range items {
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return nil
}
