package catalog

import (
	"net/url"
	"strings"
)

// PageKind classifies a URL so the API strategy can pick the right JSON
// endpoint. Classification lives here so it cannot leak into components.
type PageKind int

// Page kinds, from most to least specific.
const (
	PageGeneric PageKind = iota
	PageProductDetail
	PageCollection
)

// String implements fmt.Stringer.
func (k PageKind) String() string {
	switch k {
	case PageProductDetail:
		return "product_detail"
	case PageCollection:
		return "collection"
	default:
		return "generic"
	}
}

// ClassifyURL maps a page URL onto a PageKind by path inspection.
func ClassifyURL(rawURL string) PageKind {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PageGeneric
	}
	path := u.Path
	switch {
	case strings.Contains(path, "/products/"):
		return PageProductDetail
	case strings.Contains(path, "/collections/"):
		return PageCollection
	default:
		return PageGeneric
	}
}
