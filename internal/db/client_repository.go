package db

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
)

type ClientRepository struct {
	q sqlx.ExtContext
}

func NewClientRepository(q sqlx.ExtContext) *ClientRepository {
	return &ClientRepository{q: q}
}

func (r *ClientRepository) GetByID(ctx context.Context, id int64) (models.Client, error) {
	var c models.Client
	err := sqlx.GetContext(ctx, r.q, &c, "SELECT id, name, email, phone, address FROM clients WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Client{}, errors.Wrapf(models.ErrClientNotFound, "client %d", id)
		}
		return models.Client{}, errors.Wrap(err, "failed to get client")
	}
	return c, nil
}
