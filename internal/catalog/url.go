package catalog

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL so it can serve as a dedup key.
// It lowercases the scheme and host, removes default ports and fragments,
// and sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// ResolveReference resolves href against base, handling relative paths and
// protocol-relative URLs.
func ResolveReference(base, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		scheme := "https"
		if b, err := url.Parse(base); err == nil && b.Scheme != "" {
			scheme = b.Scheme
		}
		return scheme + ":" + href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}

// StripQuery drops the query string and fragment from an image or page URL.
func StripQuery(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// ProductHandle extracts the URL-safe slug after "/products/", or "".
func ProductHandle(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	const marker = "/products/"
	i := strings.Index(u.Path, marker)
	if i < 0 {
		return ""
	}
	handle := u.Path[i+len(marker):]
	if j := strings.IndexByte(handle, '/'); j >= 0 {
		handle = handle[:j]
	}
	return handle
}

// ShopRoot reduces a URL to its scheme://host origin.
func ShopRoot(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
