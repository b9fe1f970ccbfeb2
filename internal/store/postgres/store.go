// Package postgres provides the Postgres-backed price history store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enerkotik/pricecrawler/internal/pricewatch"
)

// pageSize is the page size exposed to the read-only query surface.
const pageSize = 5

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store persists daily price snapshots, one row per (shop, product, day).
type Store struct {
	pool pool
}

// New connects a Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: p}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing with pgxmock).
func NewWithPool(p pool) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Upsert inserts the day's snapshot for the product or overwrites its cost.
// The unique index on (shop, product_name, update_date) makes the operation
// atomic; concurrent runs cannot create a duplicate row.
func (s *Store) Upsert(ctx context.Context, shop, name string, cost int64, day time.Time) error {
	query := `
INSERT INTO products (shop, product_name, cost, update_date)
VALUES ($1, $2, $3, $4)
ON CONFLICT (shop, product_name, update_date)
DO UPDATE SET cost = EXCLUDED.cost`

	if _, err := s.pool.Exec(ctx, query, shop, name, cost, day); err != nil {
		return fmt.Errorf("upsert price for %q: %w", name, err)
	}
	return nil
}

// CountForDay reports how many products were recorded for the shop on the
// given day. This is the run's authoritative element count.
func (s *Store) CountForDay(ctx context.Context, shop string, day time.Time) (int, error) {
	query := `SELECT count(*) FROM products WHERE shop = $1 AND update_date = $2`

	var count int
	if err := s.pool.QueryRow(ctx, query, shop, day).Scan(&count); err != nil {
		return 0, fmt.Errorf("count products for %q: %w", shop, err)
	}
	return count, nil
}

// SearchByName returns the page of products whose name contains the query
// substring on the given day, plus a has-next flag. Page numbering starts
// at 0 and one extra row is fetched to detect the next page.
func (s *Store) SearchByName(ctx context.Context, q string, day time.Time, page int) ([]pricewatch.PriceRecord, bool, error) {
	query := `
SELECT shop, product_name, cost, update_date
FROM products
WHERE product_name ILIKE '%' || $1 || '%' AND update_date = $2
ORDER BY product_name
LIMIT $3 OFFSET $4`

	rows, err := s.pool.Query(ctx, query, q, day, pageSize+1, page*pageSize)
	if err != nil {
		return nil, false, fmt.Errorf("search by name %q: %w", q, err)
	}
	return paginate(rows)
}

// SearchByCost returns the page of products costing within 10 minor units
// of cost on the given day, plus a has-next flag.
func (s *Store) SearchByCost(ctx context.Context, cost int64, day time.Time, page int) ([]pricewatch.PriceRecord, bool, error) {
	query := `
SELECT shop, product_name, cost, update_date
FROM products
WHERE cost BETWEEN $1 AND $2 AND update_date = $3
ORDER BY cost, product_name
LIMIT $4 OFFSET $5`

	rows, err := s.pool.Query(ctx, query, cost-10, cost+10, day, pageSize+1, page*pageSize)
	if err != nil {
		return nil, false, fmt.Errorf("search by cost %d: %w", cost, err)
	}
	return paginate(rows)
}

// PriceTrend returns the cost-by-day series for a product in one shop,
// ordered by date ascending.
func (s *Store) PriceTrend(ctx context.Context, name, shop string) ([]pricewatch.PricePoint, error) {
	query := `
SELECT update_date, cost
FROM products
WHERE product_name ILIKE '%' || $1 || '%' AND shop = $2
ORDER BY update_date ASC`

	rows, err := s.pool.Query(ctx, query, name, shop)
	if err != nil {
		return nil, fmt.Errorf("price trend for %q: %w", name, err)
	}
	defer rows.Close()

	var points []pricewatch.PricePoint
	for rows.Next() {
		var p pricewatch.PricePoint
		if err := rows.Scan(&p.Day, &p.Cost); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read price trend: %w", err)
	}
	return points, nil
}

func paginate(rows pgx.Rows) ([]pricewatch.PriceRecord, bool, error) {
	defer rows.Close()

	var records []pricewatch.PriceRecord
	for rows.Next() {
		var r pricewatch.PriceRecord
		if err := rows.Scan(&r.Shop, &r.Name, &r.Cost, &r.Day); err != nil {
			return nil, false, fmt.Errorf("scan price record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("read price records: %w", err)
	}
	if len(records) > pageSize {
		return records[:pageSize], true, nil
	}
	return records, false, nil
}
