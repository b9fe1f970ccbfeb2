package postgres

import (
	"context"
	"fmt"
)

// schema creates the price history table and the indexes backing the query
// surface's access patterns (name substring, cost range, per-product trend).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	shop TEXT NOT NULL,
	product_name TEXT NOT NULL,
	cost BIGINT NOT NULL,
	update_date DATE NOT NULL,
	UNIQUE (shop, product_name, update_date)
)`,
	`CREATE INDEX IF NOT EXISTS products_name_idx ON products (product_name)`,
	`CREATE INDEX IF NOT EXISTS products_cost_idx ON products (cost)`,
	`CREATE INDEX IF NOT EXISTS products_trend_idx ON products (product_name, shop, update_date)`,
}

// EnsureSchema applies the schema idempotently.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
