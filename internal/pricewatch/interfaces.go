package pricewatch

import (
	"context"
	"time"
)

// Fetcher retrieves the raw markup of one category page. Both the static
// HTTP strategy and the headless-browser strategy satisfy it. A Fetcher is
// scoped to one run; Close must be safe to call more than once.
type Fetcher interface {
	FetchPage(ctx context.Context, page int) (PageResult, error)
	Close(ctx context.Context) error
}

// PriceStore is the ingestion engine's only durable dependency.
type PriceStore interface {
	// Upsert inserts or overwrites the record keyed by (shop, name, day).
	// The uniqueness invariant is enforced at the store level so concurrent
	// runs cannot race a lookup against an insert.
	Upsert(ctx context.Context, shop, name string, cost int64, day time.Time) error

	// CountForDay reports how many distinct products were observed for the
	// shop on the given day.
	CountForDay(ctx context.Context, shop string, day time.Time) (int, error)
}

// EventSink receives a price event after each successful upsert. Publish
// failures are recorded in the run report, never fatal.
type EventSink interface {
	Publish(ctx context.Context, event PriceEvent) error
}

// Clock returns the current time (useful for testing day-keyed upserts).
type Clock interface {
	Now() time.Time
}
