// Package scraper drives one crawl run per site profile: fetch pages,
// extract name/price pairs, normalize prices and upsert the day's snapshot
// into the price history store.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/enerkotik/pricecrawler/internal/extract"
	"github.com/enerkotik/pricecrawler/internal/pricewatch"
)

// Defaults for the pagination bound when the profile does not override it.
const (
	DefaultStaticMaxPages  = 5
	DefaultDynamicMaxPages = 2
)

// FetcherFactory builds the fetch strategy for a profile. The orchestrator
// owns the returned Fetcher for the duration of one run and closes it when
// the run ends, aborted or not.
type FetcherFactory func(profile pricewatch.SiteProfile) (pricewatch.Fetcher, error)

// Config controls orchestrator behavior.
type Config struct {
	StaticMaxPages  int
	DynamicMaxPages int
}

// Runner executes the crawl-and-ingest pipeline for site profiles.
type Runner struct {
	newFetcher FetcherFactory
	store      pricewatch.PriceStore
	clock      pricewatch.Clock
	sink       pricewatch.EventSink
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Runner. sink may be nil when no event fan-out is
// configured.
func New(
	newFetcher FetcherFactory,
	store pricewatch.PriceStore,
	clock pricewatch.Clock,
	sink pricewatch.EventSink,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if cfg.StaticMaxPages <= 0 {
		cfg.StaticMaxPages = DefaultStaticMaxPages
	}
	if cfg.DynamicMaxPages <= 0 {
		cfg.DynamicMaxPages = DefaultDynamicMaxPages
	}
	return &Runner{
		newFetcher: newFetcher,
		store:      store,
		clock:      clock,
		sink:       sink,
		cfg:        cfg,
		logger:     logger,
	}
}

// Scrape runs the full pipeline for one profile and returns its report.
// Page-level and element-level errors are recorded and swallowed; store
// errors abort the run and are returned alongside the finalized report.
func (r *Runner) Scrape(ctx context.Context, profile pricewatch.SiteProfile) (pricewatch.RunReport, error) {
	report := pricewatch.RunReport{
		RunID:   uuid.NewString(),
		Shop:    profile.Shop,
		Started: r.clock.Now(),
	}
	day := calendarDay(report.Started)
	logger := r.logger.With(
		zap.String("run_id", report.RunID),
		zap.String("shop", profile.Shop),
	)

	fetcher, err := r.newFetcher(profile)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("init fetcher: %v", err))
		report.Aborted = true
		runsAborted.WithLabelValues(profile.Shop).Inc()
		r.finalize(ctx, profile, day, &report, logger)
		return report, fmt.Errorf("init fetcher: %w", err)
	}
	// Release the browser/transport even when the run is aborted or the
	// caller's context is already canceled.
	defer func() {
		if cerr := fetcher.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("close fetcher", zap.Error(cerr))
		}
	}()

	abortErr := r.crawlPages(ctx, fetcher, profile, day, &report, logger)
	if abortErr != nil {
		report.Aborted = true
		runsAborted.WithLabelValues(profile.Shop).Inc()
	}

	r.finalize(ctx, profile, day, &report, logger)
	return report, abortErr
}

// crawlPages walks page indices 1..maxPages. The returned error, if any, is
// fatal for the run; recoverable failures land in the report instead.
func (r *Runner) crawlPages(
	ctx context.Context,
	fetcher pricewatch.Fetcher,
	profile pricewatch.SiteProfile,
	day time.Time,
	report *pricewatch.RunReport,
	logger *zap.Logger,
) error {
	maxPages := r.maxPages(profile)
	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("run canceled: %v", ctx.Err()))
			return nil
		}

		result, err := fetcher.FetchPage(ctx, page)
		if result.StatusCode != 0 {
			report.StatusCodes = append(report.StatusCodes, result.StatusCode)
		}
		if err != nil {
			fetchErrors.WithLabelValues(profile.Shop).Inc()
			report.Errors = append(report.Errors, fmt.Sprintf("page %d: %v", page, err))
			if errors.Is(err, pricewatch.ErrCredentialsExpired) {
				logger.Warn("credentials likely expired", zap.Int("page", page))
			} else {
				logger.Warn("page fetch failed", zap.Int("page", page), zap.Error(err))
			}
			if profile.Mode == pricewatch.FetchModeDynamic {
				// The shared tab's state is suspect after a failed
				// navigation; abandon the remaining pages.
				return nil
			}
			continue
		}
		pagesFetched.WithLabelValues(profile.Shop).Inc()

		items, err := extract.Items(result.Markup, profile.Selectors)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("page %d: %v", page, err))
			continue
		}

		if err := r.ingestItems(ctx, profile, day, page, items, report, logger); err != nil {
			return err
		}
	}
	return nil
}

// ingestItems upserts one page's items in document order so that later
// items overwrite earlier ones sharing a name. A store failure is fatal.
func (r *Runner) ingestItems(
	ctx context.Context,
	profile pricewatch.SiteProfile,
	day time.Time,
	page int,
	items []pricewatch.ExtractedItem,
	report *pricewatch.RunReport,
	logger *zap.Logger,
) error {
	for i, item := range items {
		cost, ok := pricewatch.NormalizePriceStrict(item.RawPrice)
		if !ok {
			switch profile.Fallback() {
			case pricewatch.FallbackSkip:
				itemsSkipped.WithLabelValues(profile.Shop).Inc()
				report.Errors = append(report.Errors,
					fmt.Sprintf("page %d item %d %q: unparsable price %q, skipped", page, i+1, item.Name, item.RawPrice))
				continue
			case pricewatch.FallbackReport:
				report.Errors = append(report.Errors,
					fmt.Sprintf("page %d item %d %q: unparsable price %q, stored as 0", page, i+1, item.Name, item.RawPrice))
			}
		}

		if err := r.store.Upsert(ctx, profile.Shop, item.Name, cost, day); err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("page %d item %d %q: %v", page, i+1, item.Name, err))
			return fmt.Errorf("upsert %q: %w", item.Name, err)
		}
		report.ProcessedElements++
		itemsUpserted.WithLabelValues(profile.Shop).Inc()

		r.publish(ctx, profile, item.Name, cost, day, report, logger)
	}
	return nil
}

func (r *Runner) publish(
	ctx context.Context,
	profile pricewatch.SiteProfile,
	name string,
	cost int64,
	day time.Time,
	report *pricewatch.RunReport,
	logger *zap.Logger,
) {
	if r.sink == nil {
		return
	}
	event := pricewatch.PriceEvent{
		Shop: profile.Shop,
		Name: name,
		Cost: cost,
		Date: day.Format(time.DateOnly),
	}
	if err := r.sink.Publish(ctx, event); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("publish %q: %v", name, err))
		logger.Warn("price event publish failed", zap.String("name", name), zap.Error(err))
	}
}

// finalize attaches the authoritative count of the shop's rows for today.
func (r *Runner) finalize(
	ctx context.Context,
	profile pricewatch.SiteProfile,
	day time.Time,
	report *pricewatch.RunReport,
	logger *zap.Logger,
) {
	count, err := r.store.CountForDay(context.WithoutCancel(ctx), profile.Shop, day)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("finalize: %v", err))
		logger.Warn("element count query failed", zap.Error(err))
	} else {
		report.ElementCount = count
	}
	report.Finished = r.clock.Now()
	logger.Info("run finished",
		zap.Int("processed", report.ProcessedElements),
		zap.Int("element_count", report.ElementCount),
		zap.Int("errors", len(report.Errors)),
		zap.Bool("aborted", report.Aborted))
}

func (r *Runner) maxPages(profile pricewatch.SiteProfile) int {
	if profile.MaxPages > 0 {
		return profile.MaxPages
	}
	if profile.Mode == pricewatch.FetchModeDynamic {
		return r.cfg.DynamicMaxPages
	}
	return r.cfg.StaticMaxPages
}

// calendarDay truncates a timestamp to its UTC calendar date, the key every
// snapshot row carries.
func calendarDay(t time.Time) time.Time {
	year, month, dayOfMonth := t.UTC().Date()
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}
