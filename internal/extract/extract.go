// Package extract turns raw category-page markup into name/price pairs
// using a site profile's structural selectors.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/enerkotik/pricecrawler/internal/pricewatch"
)

// Selector builds a goquery selector from a (tag, class) pair. Class values
// holding several space-separated classes match elements carrying all of
// them, mirroring how the profiles are authored from browser devtools.
func Selector(tag, class string) string {
	var b strings.Builder
	b.WriteString(tag)
	for _, c := range strings.Fields(class) {
		b.WriteByte('.')
		b.WriteString(c)
	}
	return b.String()
}

// Items parses markup and returns the extracted items in document order.
// A container without a matching name element is not a product card and is
// dropped silently. A missing price element yields an empty RawPrice, which
// the normalizer reduces to cost 0.
func Items(markup string, sel pricewatch.Selectors) ([]pricewatch.ExtractedItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	var items []pricewatch.ExtractedItem
	doc.Find(Selector(sel.ContainerTag, sel.ContainerClass)).Each(func(_ int, card *goquery.Selection) {
		name := card.Find(Selector(sel.NameTag, sel.NameClass)).First()
		if name.Length() == 0 {
			return
		}
		rawPrice := ""
		if price := card.Find(Selector(sel.PriceTag, sel.PriceClass)).First(); price.Length() > 0 {
			rawPrice = strings.TrimSpace(price.Text())
		}
		items = append(items, pricewatch.ExtractedItem{
			Name:     strings.TrimSpace(name.Text()),
			RawPrice: rawPrice,
		})
	})
	return items, nil
}
