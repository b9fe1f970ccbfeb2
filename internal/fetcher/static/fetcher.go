// Package static implements pricewatch.Fetcher with plain HTTP requests
// that replay a site profile's recorded headers, cookies and query params.
package static

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/enerkotik/pricecrawler/internal/pricewatch"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// PageDelay is the minimum interval between page fetches of one run.
	PageDelay time.Duration
}

// Fetcher fetches templated category pages for one static-mode profile.
type Fetcher struct {
	profile       pricewatch.SiteProfile
	cfg           Config
	transport     *http.Transport
	baseCollector *colly.Collector
	limiter       *rate.Limiter
	logger        *zap.Logger
}

// New builds a Fetcher for the given profile.
func New(profile pricewatch.SiteProfile, cfg Config, logger *zap.Logger) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	// Profiles replay interactive browser sessions against catalog pages;
	// robots probing would only add a second, unauthenticated request.
	c.IgnoreRobotsTxt = true

	transport := newHTTPTransport()
	c.WithTransport(transport)

	var limiter *rate.Limiter
	if cfg.PageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.PageDelay), 1)
	}

	return &Fetcher{
		profile:       profile,
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		limiter:       limiter,
		logger:        logger,
	}
}

// FetchPage issues one GET for the templated page index and returns the
// body plus status code. Non-2xx responses and transport failures come back
// as *pricewatch.FetchError.
func (f *Fetcher) FetchPage(ctx context.Context, page int) (pricewatch.PageResult, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return pricewatch.PageResult{}, fmt.Errorf("politeness wait: %w", err)
		}
	}

	pageURL, err := f.pageURL(page)
	if err != nil {
		return pricewatch.PageResult{}, err
	}

	var (
		result   pricewatch.PageResult
		fetchErr error
	)
	collector := f.buildCollector(&result, &fetchErr)

	if err := f.runCollector(ctx, collector, pageURL, &fetchErr); err != nil {
		return result, pricewatch.NewFetchError(pageURL, result.StatusCode, err)
	}
	f.logger.Debug("page fetched",
		zap.String("shop", f.profile.Shop),
		zap.Int("page", page),
		zap.Int("status", result.StatusCode))
	return result, nil
}

// Close releases idle transport connections. Safe to call more than once.
func (f *Fetcher) Close(context.Context) error {
	f.transport.CloseIdleConnections()
	return nil
}

func (f *Fetcher) buildCollector(result *pricewatch.PageResult, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)

	collector.OnRequest(func(r *colly.Request) {
		for key, value := range f.profile.Credentials.Headers {
			r.Headers.Set(key, value)
		}
		if cookie := cookieHeader(f.profile.Credentials.Cookies); cookie != "" {
			r.Headers.Set("Cookie", cookie)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		*result = pricewatch.PageResult{
			Markup:     string(r.Body),
			StatusCode: r.StatusCode,
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		*fetchErr = err
	})

	return collector
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, pageURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return err
		}
		return *fetchErr
	}
}

// pageURL renders the template for the page index and merges the profile's
// query params into it.
func (f *Fetcher) pageURL(page int) (string, error) {
	raw := f.profile.PageURL(page)
	if len(f.profile.Credentials.Params) == 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse page url %q: %w", raw, err)
	}
	q := u.Query()
	for key, value := range f.profile.Credentials.Params {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func cookieHeader(cookies map[string]string) string {
	if len(cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+cookies[name])
	}
	return strings.Join(pairs, "; ")
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
