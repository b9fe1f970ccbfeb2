package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/enerkotik/pricecrawler/internal/clock/system"
	"github.com/enerkotik/pricecrawler/internal/fetcher/headless"
	"github.com/enerkotik/pricecrawler/internal/fetcher/static"
	"github.com/enerkotik/pricecrawler/internal/pricewatch"
	"github.com/enerkotik/pricecrawler/internal/publish"
	"github.com/enerkotik/pricecrawler/internal/scraper"
	"github.com/enerkotik/pricecrawler/internal/store/postgres"
)

func newScrapeCmd() *cobra.Command {
	var shop string

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Crawl the configured site profiles once",
		Long: `Runs the crawl-and-ingest pipeline once for every configured site
profile (or a single one via --shop). Profiles run concurrently as
independent units; pages within one run are processed sequentially.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd.Context(), shop)
		},
	}

	cmd.Flags().StringVar(&shop, "shop", "", "crawl only the profile with this shop name")
	return cmd
}

func runScrape(parent context.Context, shop string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profiles, err := selectProfiles(shop)
	if err != nil {
		return err
	}

	store, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetime(),
	})
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	sink := buildSink(ctx)
	if closer, ok := sink.(*publish.RedisSink); ok {
		defer func() { _ = closer.Close() }()
	}

	if cfg.Metrics.Enabled {
		stopMetrics := startMetricsServer(cfg.Metrics.Addr)
		defer stopMetrics()
	}

	runner := scraper.New(
		fetcherFactory(),
		store,
		system.New(),
		sink,
		scraper.Config{
			StaticMaxPages:  cfg.Scrape.StaticMaxPages,
			DynamicMaxPages: cfg.Scrape.DynamicMaxPages,
		},
		logger,
	)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		runErrs []error
	)
	for _, profile := range profiles {
		wg.Add(1)
		go func(p pricewatch.SiteProfile) {
			defer wg.Done()
			report, err := runner.Scrape(ctx, p)
			logReport(report)
			if err != nil {
				mu.Lock()
				runErrs = append(runErrs, fmt.Errorf("%s: %w", p.Shop, err))
				mu.Unlock()
			}
		}(profile)
	}
	wg.Wait()

	return errors.Join(runErrs...)
}

func selectProfiles(shop string) ([]pricewatch.SiteProfile, error) {
	profiles, err := cfg.SiteProfiles()
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, errors.New("no site profiles configured")
	}
	if shop == "" {
		return profiles, nil
	}
	for _, p := range profiles {
		if p.Shop == shop {
			return []pricewatch.SiteProfile{p}, nil
		}
	}
	return nil, fmt.Errorf("no profile for shop %q", shop)
}

// fetcherFactory picks the retrieval strategy per profile. Each run gets a
// fresh fetcher so the browser session lives exactly as long as the run.
func fetcherFactory() scraper.FetcherFactory {
	return func(profile pricewatch.SiteProfile) (pricewatch.Fetcher, error) {
		switch profile.Mode {
		case pricewatch.FetchModeDynamic:
			return headless.New(profile, headless.Config{
				UserAgent:  cfg.Fetch.UserAgent,
				NavTimeout: cfg.NavTimeout(),
				RenderWait: cfg.RenderWait(),
			}, logger)
		default:
			return static.New(profile, static.Config{
				UserAgent: cfg.Fetch.UserAgent,
				Timeout:   cfg.FetchTimeout(),
				PageDelay: cfg.PageDelay(),
			}, logger), nil
		}
	}
}

func buildSink(ctx context.Context) pricewatch.EventSink {
	if !cfg.Redis.Enabled {
		return nil
	}
	sink := publish.NewRedis(publish.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Channel:  cfg.Redis.Channel,
	})
	if err := sink.Ping(ctx); err != nil {
		// Event fan-out is best effort; failed publishes land in the report.
		logger.Warn("redis unreachable, events may be lost", zap.Error(err))
	}
	return sink
}

func startMetricsServer(addr string) func() {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func logReport(report pricewatch.RunReport) {
	logger.Info("scrape report",
		zap.String("run_id", report.RunID),
		zap.String("shop", report.Shop),
		zap.Ints("status_codes", report.StatusCodes),
		zap.Strings("errors", report.Errors),
		zap.Int("processed_elements", report.ProcessedElements),
		zap.Int("element_count", report.ElementCount),
		zap.Duration("took", report.Finished.Sub(report.Started)),
		zap.Bool("aborted", report.Aborted))
}
