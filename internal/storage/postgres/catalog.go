package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rizalap/digishop/internal/orders"
)

// Catalog implements orders.Catalog on the products table.
type Catalog struct {
	db *sql.DB
}

// NewCatalog returns a Postgres-backed catalog lookup.
func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// GetProduct fetches a product by id. Returns orders.ErrNotFound when
// absent.
func (c *Catalog) GetProduct(ctx context.Context, id string) (*orders.Product, error) {
	var p orders.Product
	err := c.db.QueryRowContext(ctx, `
        SELECT id, name, duration, unit_price, is_active
        FROM products
        WHERE id = $1`, id).Scan(&p.ID, &p.Name, &p.Duration, &p.UnitPrice, &p.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orders.ErrNotFound
		}
		return nil, fmt.Errorf("could not retrieve product: %w", err)
	}
	return &p, nil
}
