package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/enerkotik/pricecrawler/internal/pricewatch"
)

var day = time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

func newMockedStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestUpsertUsesOnConflict(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	mock.ExpectExec("INSERT INTO products").
		WithArgs("Магнит", "Energy Drink", int64(149), day).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.Upsert(context.Background(), "Магнит", "Energy Drink", 149, day)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPropagatesStoreError(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	mock.ExpectExec("INSERT INTO products").
		WithArgs("Магнит", "Energy Drink", int64(149), day).
		WillReturnError(errors.New("connection lost"))

	err := store.Upsert(context.Background(), "Магнит", "Energy Drink", 149, day)
	require.ErrorContains(t, err, "connection lost")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountForDay(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	mock.ExpectQuery("SELECT count").
		WithArgs("Магнит", day).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	count, err := store.CountForDay(context.Background(), "Магнит", day)
	require.NoError(t, err)
	require.Equal(t, 42, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchByNamePagination(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	rows := pgxmock.NewRows([]string{"shop", "product_name", "cost", "update_date"})
	for i := 0; i < 6; i++ {
		rows.AddRow("Магнит", "Energy Drink", int64(100+i), day)
	}
	mock.ExpectQuery("SELECT shop, product_name, cost, update_date").
		WithArgs("energ", day, 6, 0).
		WillReturnRows(rows)

	records, hasNext, err := store.SearchByName(context.Background(), "energ", day, 0)
	require.NoError(t, err)
	require.Len(t, records, 5)
	require.True(t, hasNext)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchByNameLastPage(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	rows := pgxmock.NewRows([]string{"shop", "product_name", "cost", "update_date"}).
		AddRow("Магнит", "Energy Drink", int64(100), day)
	mock.ExpectQuery("SELECT shop, product_name, cost, update_date").
		WithArgs("energ", day, 6, 5).
		WillReturnRows(rows)

	records, hasNext, err := store.SearchByName(context.Background(), "energ", day, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.False(t, hasNext)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchByCostRange(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	rows := pgxmock.NewRows([]string{"shop", "product_name", "cost", "update_date"}).
		AddRow("Магнит", "Cheap Drink", int64(95), day).
		AddRow("Пятерочка", "Other Drink", int64(105), day)
	mock.ExpectQuery("SELECT shop, product_name, cost, update_date").
		WithArgs(int64(90), int64(110), day, 6, 0).
		WillReturnRows(rows)

	records, hasNext, err := store.SearchByCost(context.Background(), 100, day, 0)
	require.NoError(t, err)
	require.False(t, hasNext)
	require.Equal(t, []pricewatch.PriceRecord{
		{Shop: "Магнит", Name: "Cheap Drink", Cost: 95, Day: day},
		{Shop: "Пятерочка", Name: "Other Drink", Cost: 105, Day: day},
	}, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceTrendOrderedByDay(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	earlier := day.AddDate(0, 0, -1)
	rows := pgxmock.NewRows([]string{"update_date", "cost"}).
		AddRow(earlier, int64(140)).
		AddRow(day, int64(149))
	mock.ExpectQuery("SELECT update_date, cost").
		WithArgs("Energy Drink", "Магнит").
		WillReturnRows(rows)

	points, err := store.PriceTrend(context.Background(), "Energy Drink", "Магнит")
	require.NoError(t, err)
	require.Equal(t, []pricewatch.PricePoint{
		{Day: earlier, Cost: 140},
		{Day: day, Cost: 149},
	}, points)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS products_name_idx").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS products_cost_idx").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS products_trend_idx").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil)
	require.Error(t, err)
}
