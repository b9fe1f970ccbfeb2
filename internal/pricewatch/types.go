// Package pricewatch defines core types shared across the crawl-and-ingest
// pipeline: site profiles, extracted items, price records and the per-run
// report returned to callers.
package pricewatch

import (
	"strconv"
	"strings"
	"time"
)

// FetchMode selects the retrieval strategy for a site profile.
type FetchMode string

// Fetch modes supported by site profiles.
const (
	FetchModeStatic  FetchMode = "static"
	FetchModeDynamic FetchMode = "dynamic"
)

// PagePlaceholder is the token in a URL template replaced by the page index.
const PagePlaceholder = "{page}"

// Selectors identifies the product card and its name/price children by
// (tag, class) pairs. Purely declarative.
type Selectors struct {
	ContainerTag   string
	ContainerClass string
	NameTag        string
	NameClass      string
	PriceTag       string
	PriceClass     string
}

// ConnectionParams is credential material replayed verbatim on static
// requests. The core never interprets the values; they are injected at load
// time and may be rotated without code changes.
type ConnectionParams struct {
	Headers map[string]string
	Cookies map[string]string
	Params  map[string]string
}

// PriceFallback controls what happens to an item whose price text does not
// parse as an integer.
type PriceFallback string

// Fallback policies for unparsable price text.
const (
	// FallbackZero stores cost 0 silently. Callers cannot distinguish a
	// genuine zero from an unparsable price under this policy.
	FallbackZero PriceFallback = "zero"
	// FallbackSkip drops the item and appends a report entry.
	FallbackSkip PriceFallback = "skip"
	// FallbackReport stores cost 0 and appends a report entry.
	FallbackReport PriceFallback = "report"
)

// SiteProfile is the static per-retailer configuration. Loaded once at
// process start and read-only thereafter; Shop is the natural key joining
// crawl output to the price history store.
type SiteProfile struct {
	Shop          string
	URLTemplate   string
	Mode          FetchMode
	Credentials   ConnectionParams
	Selectors     Selectors
	MaxPages      int
	PriceFallback PriceFallback
}

// PageURL substitutes the page index into the profile's URL template.
func (p SiteProfile) PageURL(page int) string {
	return strings.ReplaceAll(p.URLTemplate, PagePlaceholder, strconv.Itoa(page))
}

// Fallback returns the profile's price fallback policy, defaulting to zero.
func (p SiteProfile) Fallback() PriceFallback {
	if p.PriceFallback == "" {
		return FallbackZero
	}
	return p.PriceFallback
}

// ExtractedItem is one (name, raw price text) pair found on a page.
// Transient; never persisted.
type ExtractedItem struct {
	Name     string
	RawPrice string
}

// PageResult is the common output of both fetch strategies.
type PageResult struct {
	Markup     string
	StatusCode int
}

// PriceRecord is one persisted daily price snapshot.
type PriceRecord struct {
	Shop string
	Name string
	Cost int64
	Day  time.Time
}

// PricePoint is one step of a product's price trend.
type PricePoint struct {
	Day  time.Time
	Cost int64
}

// PriceEvent is published to the downstream bot surface after an upsert.
type PriceEvent struct {
	Shop string `json:"shop"`
	Name string `json:"name"`
	Cost int64  `json:"cost"`
	Date string `json:"date"`
}

// RunReport is the telemetry record built during one Scrape call. It has no
// existence beyond the run that produced it.
type RunReport struct {
	RunID             string
	Shop              string
	StatusCodes       []int
	Errors            []string
	ProcessedElements int
	ElementCount      int
	Started           time.Time
	Finished          time.Time
	Aborted           bool
}

// LastStatusCode returns the status of the last page attempted, or 0 when no
// page produced a status.
func (r RunReport) LastStatusCode() int {
	if len(r.StatusCodes) == 0 {
		return 0
	}
	return r.StatusCodes[len(r.StatusCodes)-1]
}
