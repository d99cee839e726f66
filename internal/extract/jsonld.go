package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

// JSONLDStrategy parses embedded structured-data blocks and extracts the
// first object typed "Product". Yields a single flattened offer; variant
// detail is not available on this surface.
type JSONLDStrategy struct{}

// NewJSONLDStrategy builds a JSONLDStrategy.
func NewJSONLDStrategy() *JSONLDStrategy {
	return &JSONLDStrategy{}
}

// Name implements Strategy.
func (s *JSONLDStrategy) Name() string { return string(catalog.SourceStructured) }

// Extract scans script[type="application/ld+json"] blocks. Malformed JSON
// inside a block is skipped, not fatal.
func (s *JSONLDStrategy) Extract(_ context.Context, page catalog.Page) ([]catalog.RawProduct, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var product *catalog.StructuredProduct
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(sel.Text()), &payload); err != nil {
			return true
		}
		if found := findProductNode(payload); found != nil {
			product = parseProductNode(found, page.URL)
			return false
		}
		return true
	})

	if product == nil {
		return nil, nil
	}
	return []catalog.RawProduct{{Source: catalog.SourceStructured, Structured: product}}, nil
}

// findProductNode walks a decoded JSON-LD payload (object, array, or
// @graph container) looking for the first node typed "Product".
func findProductNode(payload any) map[string]any {
	switch node := payload.(type) {
	case map[string]any:
		if nodeType, _ := node["@type"].(string); strings.EqualFold(nodeType, "Product") {
			return node
		}
		if graph, ok := node["@graph"].([]any); ok {
			return findProductNode(graph)
		}
	case []any:
		for _, item := range node {
			if found := findProductNode(item); found != nil {
				return found
			}
		}
	}
	return nil
}

func parseProductNode(node map[string]any, pageURL string) *catalog.StructuredProduct {
	product := &catalog.StructuredProduct{
		ProductID:   stringField(node, "productID"),
		Name:        stringField(node, "name"),
		Description: stringField(node, "description"),
		Category:    stringField(node, "category"),
		URL:         stringField(node, "url"),
	}
	if product.URL == "" {
		product.URL = pageURL
	} else {
		product.URL = catalog.ResolveReference(pageURL, product.URL)
	}

	switch brand := node["brand"].(type) {
	case string:
		product.Brand = brand
	case map[string]any:
		product.Brand = stringField(brand, "name")
	}

	switch image := node["image"].(type) {
	case string:
		product.Image = image
	case []any:
		if len(image) > 0 {
			product.Image, _ = image[0].(string)
		}
	}

	if offer := firstOffer(node); offer != nil {
		product.Price = offerPrice(offer)
		product.Currency = stringField(offer, "priceCurrency")
		availability := stringField(offer, "availability")
		product.Available = strings.Contains(availability, "InStock")
	}
	return product
}

func firstOffer(node map[string]any) map[string]any {
	switch offers := node["offers"].(type) {
	case map[string]any:
		return offers
	case []any:
		for _, o := range offers {
			if m, ok := o.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// offerPrice tolerates both string and numeric encodings of "price".
func offerPrice(offer map[string]any) string {
	switch price := offer["price"].(type) {
	case string:
		return price
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", price), "0"), ".")
	}
	return ""
}

func stringField(node map[string]any, key string) string {
	v, _ := node[key].(string)
	return strings.TrimSpace(v)
}
