package models

import "github.com/shopspring/decimal"

type Product struct {
	ID            int64           `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Category      string          `json:"category" db:"category"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stock_quantity" db:"stock_quantity"`
}

// StockDelta is a signed change to a product's stock. Negative reserves, positive restocks.
type StockDelta struct {
	ProductID int64
	Delta     int
}
