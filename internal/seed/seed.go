// Package seed turns shop configuration into the initial crawl frontier.
package seed

import (
	"errors"
	"net/url"
	"strings"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

// ErrNoSeeds means neither explicit URLs nor a shop root were configured.
var ErrNoSeeds = errors.New("seed: no start urls configured")

// Options selects how the initial frontier is built. Explicit URLs pass
// through verbatim; a configured shop root contributes exactly one derived
// listing URL on top, preferring a named collection, then a search query,
// then the catalog-wide collection.
type Options struct {
	Root        string
	URLs        []string
	Collection  string
	SearchQuery string
}

// Resolve produces the seed list: every explicit URL in order, then the
// single root-derived listing URL when a root is configured. All seeds
// start at page 1.
func Resolve(opts Options) ([]catalog.SeedURL, error) {
	seeds := make([]catalog.SeedURL, 0, len(opts.URLs)+1)
	for _, u := range opts.URLs {
		if strings.TrimSpace(u) == "" {
			continue
		}
		seeds = append(seeds, catalog.SeedURL{URL: u, Page: 1})
	}

	root := strings.TrimRight(strings.TrimSpace(opts.Root), "/")
	if root != "" {
		seeds = append(seeds, catalog.SeedURL{URL: derivedURL(root, opts), Page: 1})
	}

	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}
	return seeds, nil
}

func derivedURL(root string, opts Options) string {
	switch {
	case opts.Collection != "":
		return root + "/collections/" + opts.Collection
	case opts.SearchQuery != "":
		return root + "/search?type=product&q=" + url.QueryEscape(opts.SearchQuery)
	default:
		return root + "/collections/all"
	}
}
