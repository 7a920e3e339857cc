package db

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
)

const productColumns = "id, name, category, price, stock_quantity"

type ProductRepository struct {
	q sqlx.ExtContext
}

// NewProductRepository binds the repository to a pool or to an open transaction.
func NewProductRepository(q sqlx.ExtContext) *ProductRepository {
	return &ProductRepository{q: q}
}

// GetByID returns a single product
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (models.Product, error) {
	var p models.Product
	err := sqlx.GetContext(ctx, r.q, &p, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Product{}, errors.Wrapf(models.ErrProductNotFound, "product %d", id)
		}
		return models.Product{}, errors.Wrap(err, "failed to get product")
	}
	return p, nil
}

// LockByIDs row-locks the products in ascending id order. Missing ids are simply absent from the result.
func (r *ProductRepository) LockByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	var products []models.Product
	query := "SELECT " + productColumns + " FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE"
	if err := sqlx.SelectContext(ctx, r.q, &products, query, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "failed to lock products")
	}

	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// SetStock overwrites the stock of a product locked by LockByIDs
func (r *ProductRepository) SetStock(ctx context.Context, id int64, quantity int) error {
	result, err := r.q.ExecContext(ctx, "UPDATE products SET stock_quantity = $1 WHERE id = $2", quantity, id)
	if err != nil {
		return errors.Wrap(err, "failed to update stock")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.Wrapf(models.ErrProductNotFound, "product %d", id)
	}
	return nil
}
