package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

// APIStrategy reads the Shopify-style JSON product endpoints. It is the
// highest-priority strategy because the payloads carry full variant and
// image data.
type APIStrategy struct {
	fetcher catalog.Fetcher
}

// NewAPIStrategy builds an APIStrategy over the shared fetcher.
func NewAPIStrategy(fetcher catalog.Fetcher) *APIStrategy {
	return &APIStrategy{fetcher: fetcher}
}

// Name implements Strategy.
func (s *APIStrategy) Name() string { return string(catalog.SourceAPI) }

// Extract fetches the JSON endpoint matching the page kind. A non-200
// status or an empty payload is an empty result, never an error.
func (s *APIStrategy) Extract(ctx context.Context, page catalog.Page) ([]catalog.RawProduct, error) {
	endpoint, err := s.endpointFor(page)
	if err != nil {
		return nil, err
	}

	resp, err := s.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	root, err := catalog.ShopRoot(page.URL)
	if err != nil {
		return nil, err
	}

	if page.Kind == catalog.PageProductDetail {
		var payload struct {
			Product *catalog.APIProduct `json:"product"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, fmt.Errorf("decode product payload: %w", err)
		}
		if payload.Product == nil {
			return nil, nil
		}
		p := *payload.Product
		p.URL = productURL(root, p.Handle)
		return []catalog.RawProduct{{Source: catalog.SourceAPI, API: &p}}, nil
	}

	var payload struct {
		Products []catalog.APIProduct `json:"products"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("decode products payload: %w", err)
	}
	records := make([]catalog.RawProduct, 0, len(payload.Products))
	for i := range payload.Products {
		p := payload.Products[i]
		p.URL = productURL(root, p.Handle)
		records = append(records, catalog.RawProduct{Source: catalog.SourceAPI, API: &p})
	}
	return records, nil
}

// endpointFor maps a classified page onto its JSON endpoint.
func (s *APIStrategy) endpointFor(page catalog.Page) (string, error) {
	u, err := url.Parse(page.URL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	root := u.Scheme + "://" + u.Host

	switch page.Kind {
	case catalog.PageProductDetail:
		path := strings.TrimSuffix(u.Path, "/")
		return fmt.Sprintf("%s%s.json", root, path), nil
	case catalog.PageCollection:
		base := collectionBase(u.Path)
		if base == "" {
			return fmt.Sprintf("%s/products.json?limit=250&page=%d", root, pageNumber(page)), nil
		}
		return fmt.Sprintf("%s%s/products.json?limit=250&page=%d", root, base, pageNumber(page)), nil
	default:
		return fmt.Sprintf("%s/products.json?limit=250&page=%d", root, pageNumber(page)), nil
	}
}

// collectionBase reduces a path to "/collections/<handle>".
func collectionBase(path string) string {
	const marker = "/collections/"
	i := strings.Index(path, marker)
	if i < 0 {
		return ""
	}
	rest := path[i+len(marker):]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	if rest == "" {
		return ""
	}
	return path[:i] + marker[:len(marker)-1] + "/" + rest
}

func pageNumber(page catalog.Page) int {
	if page.PageNumber > 0 {
		return page.PageNumber
	}
	return 1
}

func productURL(root, handle string) string {
	if handle == "" {
		return ""
	}
	return root + "/products/" + handle
}
