// Package normalize maps raw extraction records into the canonical
// product schema, expanding variants when configured.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

// Normalizer converts one RawProduct into one-or-many canonical Products.
// Each source shape has a dedicated mapping; no shape sniffing happens at
// normalization time.
type Normalizer struct {
	includeVariants bool
	clock           catalog.Clock
}

// New builds a Normalizer.
func New(includeVariants bool, clock catalog.Clock) *Normalizer {
	return &Normalizer{
		includeVariants: includeVariants,
		clock:           clock,
	}
}

// Normalize maps a raw record. The result has one element per processed
// variant; sources without variant data always yield exactly one.
func (n *Normalizer) Normalize(raw catalog.RawProduct) []catalog.Product {
	switch raw.Source {
	case catalog.SourceAPI:
		if raw.API == nil {
			return nil
		}
		return n.fromAPI(*raw.API)
	case catalog.SourceStructured:
		if raw.Structured == nil {
			return nil
		}
		return []catalog.Product{n.fromStructured(*raw.Structured)}
	case catalog.SourceHTML:
		if raw.Scraped == nil {
			return nil
		}
		return []catalog.Product{n.fromScraped(*raw.Scraped)}
	default:
		return nil
	}
}

func (n *Normalizer) fromAPI(p catalog.APIProduct) []catalog.Product {
	base := catalog.Product{
		Handle:      p.Handle,
		URL:         p.URL,
		Title:       p.Title,
		Description: p.BodyHTML,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Tags:        p.Tags,
		CreatedAt:   parseTime(p.CreatedAt),
		UpdatedAt:   parseTime(p.UpdatedAt),
		PublishedAt: parseTime(p.PublishedAt),
		ScrapedAt:   n.clock.Now(),
	}
	if p.ID != 0 {
		id := p.ID
		base.ID = &id
	}

	if len(p.Variants) == 0 {
		out := base
		out.VariantName = "Default"
		out.Available = true
		out.Images = imageList(p, nil)
		if len(out.Images) > 0 {
			out.FeaturedImage = out.Images[0]
		}
		return []catalog.Product{out}
	}

	variants := p.Variants
	if !n.includeVariants {
		variants = variants[:1]
	}

	out := make([]catalog.Product, 0, len(variants))
	for i := range variants {
		v := variants[i]
		record := base
		record.VariantTitle = v.Title
		record.SKU = v.SKU
		record.Barcode = v.Barcode
		record.Price = parsePrice(v.Price)
		record.CompareAtPrice = parsePricePtr(v.CompareAtPrice)
		record.Available = v.Available
		record.InventoryQuantity = v.InventoryQuantity
		record.InventoryPolicy = v.InventoryPolicy
		record.RequiresShipping = v.RequiresShipping
		if v.ID != 0 {
			id := v.ID
			record.VariantID = &id
		}
		record.Weight, record.WeightUnit = variantWeight(v)
		record.VariantName, record.Properties = flattenOptions(p.Options, v)
		record.Images = imageList(p, &v)
		if len(record.Images) > 0 {
			record.FeaturedImage = record.Images[0]
		}
		out = append(out, record)
	}
	return out
}

func (n *Normalizer) fromStructured(p catalog.StructuredProduct) catalog.Product {
	record := catalog.Product{
		ID:          ParseGID(p.ProductID),
		Handle:      catalog.ProductHandle(p.URL),
		URL:         p.URL,
		Title:       p.Name,
		Description: p.Description,
		Vendor:      p.Brand,
		ProductType: p.Category,
		VariantName: "Default",
		Price:       parsePrice(p.Price),
		Currency:    p.Currency,
		Available:   p.Available,
		ScrapedAt:   n.clock.Now(),
	}
	if p.Image != "" {
		image := catalog.StripQuery(p.Image)
		record.Images = []string{image}
		record.FeaturedImage = image
	}
	return record
}

func (n *Normalizer) fromScraped(p catalog.ScrapedProduct) catalog.Product {
	record := catalog.Product{
		Handle:      p.Handle,
		URL:         p.URL,
		Title:       p.Title,
		VariantName: "Default",
		Price:       p.Price,
		Available:   p.Available,
		ScrapedAt:   n.clock.Now(),
	}
	if p.Image != "" {
		image := catalog.StripQuery(p.Image)
		record.Images = []string{image}
		record.FeaturedImage = image
	}
	return record
}

// flattenOptions maps a variant's positional option values onto property
// keys and a human-readable variant name. Products without real options
// collapse to the "Default" variant.
func flattenOptions(options []catalog.APIOption, v catalog.APIVariant) (string, map[string]string) {
	if isDefaultOnly(options, v) {
		return "Default", nil
	}

	properties := make(map[string]string, len(options))
	parts := make([]string, 0, len(options))
	for i, opt := range options {
		position := opt.Position
		if position == 0 {
			position = i + 1
		}
		value := v.OptionValue(position)
		if value == nil || *value == "" {
			continue
		}
		properties[propertyKey(opt.Name)] = *value
		parts = append(parts, opt.Name+": "+*value)
	}
	if len(parts) == 0 {
		return "Default", nil
	}
	return strings.Join(parts, " / "), properties
}

func isDefaultOnly(options []catalog.APIOption, v catalog.APIVariant) bool {
	if len(options) == 0 {
		return true
	}
	if len(options) > 1 {
		return false
	}
	name := strings.ToLower(strings.TrimSpace(options[0].Name))
	if name == "title" || name == "default" {
		return true
	}
	if v.Option1 != nil && strings.EqualFold(*v.Option1, "Default Title") {
		return true
	}
	return false
}

// propertyKey lowercases an option display name into an underscore key
// ("Shoe Size" -> "shoe_size").
func propertyKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(key), "_")
}

// imageList builds the ordered, deduplicated, query-stripped image union
// for one variant: its bound image first, then the general images, then
// the product's primary image.
func imageList(p catalog.APIProduct, v *catalog.APIVariant) []string {
	var candidates []string

	if v != nil {
		if v.FeaturedImage != nil && v.FeaturedImage.Src != "" {
			candidates = append(candidates, v.FeaturedImage.Src)
		} else {
			for _, img := range p.Images {
				if containsID(img.VariantIDs, v.ID) {
					candidates = append(candidates, img.Src)
					break
				}
			}
		}
	}

	for _, img := range p.Images {
		if len(img.VariantIDs) == 0 {
			candidates = append(candidates, img.Src)
		}
	}

	if len(p.Images) > 0 {
		candidates = append(candidates, p.Images[0].Src)
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, src := range candidates {
		if src == "" {
			continue
		}
		stripped := catalog.StripQuery(src)
		if _, dup := seen[stripped]; dup {
			continue
		}
		seen[stripped] = struct{}{}
		out = append(out, stripped)
	}
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func variantWeight(v catalog.APIVariant) (*float64, string) {
	if v.Weight > 0 {
		w := v.Weight
		return &w, v.WeightUnit
	}
	if v.Grams > 0 {
		w := float64(v.Grams)
		return &w, "g"
	}
	return nil, ""
}

func parsePrice(value string) *float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &price
}

func parsePricePtr(value *string) *float64 {
	if value == nil {
		return nil
	}
	return parsePrice(*value)
}

func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}
