package catalog

import (
	"encoding/json"
	"strings"
	"time"
)

// Source identifies which extraction strategy produced a raw record.
type Source string

// Raw record sources, in strategy priority order.
const (
	SourceAPI        Source = "api"
	SourceStructured Source = "jsonld"
	SourceHTML       Source = "html"
)

// SeedURL is a starting point for a crawl chain. Page numbering starts at 1.
type SeedURL struct {
	URL  string
	Page int
}

// Task is one unit of frontier work. Attempt counts page-level retries.
type Task struct {
	URL     string
	Page    int
	Attempt int
}

// Page is a fetched page handed to the extraction strategies.
type Page struct {
	URL        string
	Kind       PageKind
	PageNumber int
	StatusCode int
	Body       []byte
}

// RawProduct is a tagged union over the three source shapes. Exactly one of
// API, Structured, or Scraped is non-nil, matching Source.
type RawProduct struct {
	Source     Source
	API        *APIProduct
	Structured *StructuredProduct
	Scraped    *ScrapedProduct
}

// Tags accepts both JSON encodings Shopify uses for product tags: an array
// of strings on listing endpoints and a single comma-separated string on
// product detail endpoints.
type Tags []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tags) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	if joined == "" {
		*t = nil
		return nil
	}
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*t = out
	return nil
}

// APIProduct mirrors the Shopify products.json shape.
type APIProduct struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Handle      string       `json:"handle"`
	BodyHTML    string       `json:"body_html"`
	Vendor      string       `json:"vendor"`
	ProductType string       `json:"product_type"`
	Tags        Tags         `json:"tags"`
	CreatedAt   string       `json:"created_at"`
	UpdatedAt   string       `json:"updated_at"`
	PublishedAt string       `json:"published_at"`
	Options     []APIOption  `json:"options"`
	Variants    []APIVariant `json:"variants"`
	Images      []APIImage   `json:"images"`

	// URL is filled in by the API strategy from the shop root and handle;
	// the endpoint payload does not carry it.
	URL string `json:"-"`
}

// APIOption is a declared axis of variation ("Size", "Color").
type APIOption struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// APIVariant is one purchasable configuration of an APIProduct.
type APIVariant struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Option1           *string   `json:"option1"`
	Option2           *string   `json:"option2"`
	Option3           *string   `json:"option3"`
	SKU               string    `json:"sku"`
	Barcode           string    `json:"barcode"`
	Price             string    `json:"price"`
	CompareAtPrice    *string   `json:"compare_at_price"`
	Available         bool      `json:"available"`
	InventoryQuantity *int64    `json:"inventory_quantity"`
	InventoryPolicy   string    `json:"inventory_policy"`
	Grams             int64     `json:"grams"`
	Weight            float64   `json:"weight"`
	WeightUnit        string    `json:"weight_unit"`
	RequiresShipping  bool      `json:"requires_shipping"`
	FeaturedImage     *APIImage `json:"featured_image"`
	CreatedAt         string    `json:"created_at"`
	UpdatedAt         string    `json:"updated_at"`
}

// OptionValue returns the variant value at option position 1-3, or nil.
func (v APIVariant) OptionValue(position int) *string {
	switch position {
	case 1:
		return v.Option1
	case 2:
		return v.Option2
	case 3:
		return v.Option3
	default:
		return nil
	}
}

// APIImage is a product image, optionally bound to specific variants.
type APIImage struct {
	ID         int64   `json:"id"`
	Src        string  `json:"src"`
	Position   int     `json:"position"`
	VariantIDs []int64 `json:"variant_ids"`
}

// StructuredProduct is a single flattened offer extracted from JSON-LD.
// ProductID may carry a namespaced global id ("gid://...") to be
// normalized downstream.
type StructuredProduct struct {
	ProductID   string
	Name        string
	Description string
	Brand       string
	Category    string
	Price       string
	Currency    string
	Available   bool
	URL         string
	Image       string
}

// ScrapedProduct carries the best-effort fields the HTML strategy can
// recover from a product tile.
type ScrapedProduct struct {
	Title     string
	Handle    string
	URL       string
	Price     *float64
	Available bool
	Image     string
}

// Product is the canonical output schema. One record per (product, variant)
// pair when variant expansion is on, one per product otherwise.
type Product struct {
	ID        *int64 `json:"id"`
	VariantID *int64 `json:"variant_id"`
	Handle    string `json:"handle"`
	URL       string `json:"url"`

	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Vendor      string   `json:"vendor,omitempty"`
	ProductType string   `json:"product_type,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	VariantTitle string            `json:"variant_title,omitempty"`
	VariantName  string            `json:"variant_name,omitempty"`
	SKU          string            `json:"sku,omitempty"`
	Barcode      string            `json:"barcode,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`

	Price             *float64 `json:"price"`
	CompareAtPrice    *float64 `json:"compare_at_price,omitempty"`
	Currency          string   `json:"currency,omitempty"`
	Available         bool     `json:"available"`
	InventoryQuantity *int64   `json:"inventory_quantity,omitempty"`
	InventoryPolicy   string   `json:"inventory_policy,omitempty"`

	Weight           *float64 `json:"weight,omitempty"`
	WeightUnit       string   `json:"weight_unit,omitempty"`
	RequiresShipping bool     `json:"requires_shipping,omitempty"`

	Images        []string `json:"images,omitempty"`
	FeaturedImage string   `json:"featured_image,omitempty"`

	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ScrapedAt   time.Time  `json:"scraped_at"`
}

// FailureRecord captures a page whose retry budget was exhausted.
type FailureRecord struct {
	URL      string    `json:"url"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

// RunSummary is written once at the end of a run. UniqueURLs counts
// distinct accepted product identities (URL plus variant), not pages.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Accepted   int       `json:"accepted"`
	UniqueURLs int       `json:"unique_urls"`
	Failures   int       `json:"failures"`
	FinishedAt time.Time `json:"finished_at"`
}
