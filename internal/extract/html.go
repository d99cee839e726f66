package extract

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

// tileSelectors are tried in order; the first one matching at least one
// element wins. Covers common storefront theme markup.
var tileSelectors = []string{
	".product-card",
	".product-item",
	".grid-product",
	"li.grid__item",
	"[data-product-id]",
	".product",
}

var priceTokenRe = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)

// HTMLStrategy scrapes product tiles straight out of page markup. It is
// the last resort: purely best-effort, with malformed tiles skipped
// individually.
type HTMLStrategy struct{}

// NewHTMLStrategy builds an HTMLStrategy.
func NewHTMLStrategy() *HTMLStrategy {
	return &HTMLStrategy{}
}

// Name implements Strategy.
func (s *HTMLStrategy) Name() string { return string(catalog.SourceHTML) }

// Extract applies the tile selector candidates against the page body.
func (s *HTMLStrategy) Extract(_ context.Context, page catalog.Page) ([]catalog.RawProduct, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var tiles *goquery.Selection
	for _, selector := range tileSelectors {
		if found := doc.Find(selector); found.Length() > 0 {
			tiles = found
			break
		}
	}
	if tiles == nil {
		return nil, nil
	}

	var records []catalog.RawProduct
	tiles.Each(func(_ int, tile *goquery.Selection) {
		if scraped := scrapeTile(tile, page.URL); scraped != nil {
			records = append(records, catalog.RawProduct{Source: catalog.SourceHTML, Scraped: scraped})
		}
	})
	return records, nil
}

// scrapeTile pulls the best-effort fields out of one tile, returning nil
// when the tile has neither a title nor a link worth keeping.
func scrapeTile(tile *goquery.Selection, pageURL string) *catalog.ScrapedProduct {
	link := productLink(tile, pageURL)
	title := tileTitle(tile)
	if title == "" && link == "" {
		return nil
	}

	scraped := &catalog.ScrapedProduct{
		Title:     title,
		URL:       link,
		Handle:    catalog.ProductHandle(link),
		Price:     tilePrice(tile),
		Image:     tileImage(tile, pageURL),
		Available: tileAvailable(tile),
	}
	if scraped.Title == "" {
		scraped.Title = scraped.Handle
	}
	return scraped
}

// productLink prefers anchors pointing into /products/; any anchor is the
// fallback.
func productLink(tile *goquery.Selection, pageURL string) string {
	var href string
	tile.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if h == "" {
			return true
		}
		if href == "" {
			href = h
		}
		if strings.Contains(h, "/products/") {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		return ""
	}
	return catalog.ResolveReference(pageURL, href)
}

func tileTitle(tile *goquery.Selection) string {
	for _, selector := range []string{".product-title", ".product-card__title", ".card__heading", "h2", "h3", "a"} {
		if text := strings.TrimSpace(tile.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// tilePrice takes the first numeric token inside a price-labeled element,
// commas stripped.
func tilePrice(tile *goquery.Selection) *float64 {
	var text string
	tile.Find("[class*=price]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if t := strings.TrimSpace(el.Text()); t != "" {
			text = t
			return false
		}
		return true
	})
	if text == "" {
		return nil
	}
	token := priceTokenRe.FindString(text)
	if token == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &value
}

func tileImage(tile *goquery.Selection, pageURL string) string {
	img := tile.Find("img").First()
	src, ok := img.Attr("src")
	if !ok || src == "" {
		src, _ = img.Attr("data-src")
	}
	if src == "" {
		return ""
	}
	return catalog.ResolveReference(pageURL, src)
}

// tileAvailable reports false only when the tile carries sold-out wording.
func tileAvailable(tile *goquery.Selection) bool {
	text := strings.ToLower(tile.Text())
	return !strings.Contains(text, "sold out") && !strings.Contains(text, "unavailable")
}
