// Package headless implements pricewatch.Fetcher with a headless browser,
// for profiles whose catalog pages are rendered client-side.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/enerkotik/pricecrawler/internal/extract"
	"github.com/enerkotik/pricecrawler/internal/pricewatch"
)

// Config controls browser navigation behavior.
type Config struct {
	UserAgent  string
	NavTimeout time.Duration
	// RenderWait bounds the wait for the profile's container selector to
	// appear after navigation. It is a budget, not a completion signal:
	// when it elapses the page is read as-is.
	RenderWait time.Duration
}

// Fetcher drives one browser session for the whole run and navigates a tab
// per page index.
type Fetcher struct {
	profile          pricewatch.SiteProfile
	cfg              Config
	allocCancel      context.CancelFunc
	browserCtx       context.Context
	browserCtxCancel context.CancelFunc
	closeOnce        sync.Once
	logger           *zap.Logger
}

// New launches the browser session for the given profile. The returned
// Fetcher must be closed when the run ends, including on error.
func New(profile pricewatch.SiteProfile, cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}
	if cfg.RenderWait <= 0 {
		cfg.RenderWait = 8 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Fetcher{
		profile:          profile,
		cfg:              cfg,
		allocCancel:      allocCancel,
		browserCtx:       browserCtx,
		browserCtxCancel: browserCancel,
		logger:           logger,
	}, nil
}

// FetchPage navigates to the templated URL, waits for client-side rendering
// within the configured budget and returns the rendered markup.
func (f *Fetcher) FetchPage(ctx context.Context, page int) (pricewatch.PageResult, error) {
	pageURL := f.profile.PageURL(page)

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, f.cfg.NavTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	var markup string
	actions := []chromedp.Action{
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		f.settleAction(),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		status := meta.status()
		return pricewatch.PageResult{StatusCode: status},
			pricewatch.NewFetchError(pageURL, status, fmt.Errorf("chromedp run: %w", err))
	}

	status := meta.status()
	if status == 0 {
		status = http.StatusOK
	}
	if status >= 400 {
		return pricewatch.PageResult{Markup: markup, StatusCode: status},
			pricewatch.NewFetchError(pageURL, status, errors.New(http.StatusText(status)))
	}
	f.logger.Debug("page rendered",
		zap.String("shop", f.profile.Shop),
		zap.Int("page", page),
		zap.Int("status", status))
	return pricewatch.PageResult{Markup: markup, StatusCode: status}, nil
}

// Close tears down the browser session and its allocator. Idempotent.
func (f *Fetcher) Close(context.Context) error {
	f.closeOnce.Do(func() {
		f.browserCtxCancel()
		f.allocCancel()
	})
	return nil
}

// settleAction polls for the profile's container selector instead of
// sleeping a fixed settle duration. Budget exhaustion is not an error: the
// page is read in whatever state it reached.
func (f *Fetcher) settleAction() chromedp.Action {
	sel := extract.Selector(f.profile.Selectors.ContainerTag, f.profile.Selectors.ContainerClass)
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if sel == "" {
			return nil
		}
		expr := fmt.Sprintf("document.querySelector(%q) !== null", sel)
		var ready bool
		err := chromedp.Poll(expr, &ready, chromedp.WithPollingTimeout(f.cfg.RenderWait)).Do(ctx)
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			f.logger.Debug("render wait budget elapsed",
				zap.String("shop", f.profile.Shop),
				zap.String("selector", sel))
			return nil
		}
		return err
	})
}

// forwardCancel propagates cancellation of the caller's context into the
// chromedp task context.
func forwardCancel(ctx context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
