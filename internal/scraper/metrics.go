package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pagesFetched counts category pages retrieved successfully, per shop.
	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_pages_fetched_total",
		Help: "The total number of category pages fetched successfully.",
	}, []string{"shop"})
	// fetchErrors counts failed page retrievals, per shop.
	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_fetch_errors_total",
		Help: "The total number of failed page retrievals.",
	}, []string{"shop"})
	// itemsUpserted counts price records written to the history store.
	itemsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_items_upserted_total",
		Help: "The total number of price records upserted.",
	}, []string{"shop"})
	// itemsSkipped counts items dropped by the price fallback policy.
	itemsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_items_skipped_total",
		Help: "The total number of items dropped by the price fallback policy.",
	}, []string{"shop"})
	// runsAborted counts runs that ended in the aborted state.
	runsAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_runs_aborted_total",
		Help: "The total number of runs that aborted on a fatal error.",
	}, []string{"shop"})
)
