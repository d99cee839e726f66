package seed

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

// sitemapIndex and urlSet cover the two sitemap document shapes; a shop
// root sitemap is usually an index pointing at per-type child maps.
type sitemapIndex struct {
	Sitemaps []sitemapRef `xml:"sitemap"`
}

type sitemapRef struct {
	Loc string `xml:"loc"`
}

type urlSet struct {
	URLs []string `xml:"url>loc"`
}

// DiscoverSitemapSeeds reads robots.txt for sitemap declarations and
// collects collection and product URLs out of them, capped at limit. A
// shop with no robots.txt or no sitemaps yields an empty slice, never an
// error.
func DiscoverSitemapSeeds(ctx context.Context, fetcher catalog.Fetcher, logger *zap.Logger, root string, limit int) ([]catalog.SeedURL, error) {
	if limit <= 0 {
		limit = 25
	}
	root = strings.TrimRight(root, "/")

	resp, err := fetcher.Fetch(ctx, root+"/robots.txt")
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, nil
	}
	robots, err := robotstxt.FromBytes(resp.Body)
	if err != nil {
		logger.Warn("unparseable robots.txt", zap.String("root", root), zap.Error(err))
		return nil, nil
	}
	if len(robots.Sitemaps) == 0 {
		return nil, nil
	}

	var seeds []catalog.SeedURL
	for _, sitemapURL := range robots.Sitemaps {
		if len(seeds) >= limit {
			break
		}
		found, err := catalogURLs(ctx, fetcher, sitemapURL, limit-len(seeds))
		if err != nil {
			logger.Warn("sitemap read failed", zap.String("sitemap", sitemapURL), zap.Error(err))
			continue
		}
		for _, u := range found {
			seeds = append(seeds, catalog.SeedURL{URL: u, Page: 1})
		}
	}
	logger.Info("sitemap discovery complete",
		zap.String("root", root),
		zap.Int("seeds", len(seeds)),
	)
	return seeds, nil
}

// catalogURLs resolves one sitemap document. Index documents recurse one
// level into children that look collection or product related.
func catalogURLs(ctx context.Context, fetcher catalog.Fetcher, sitemapURL string, limit int) ([]string, error) {
	resp, err := fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("sitemap status %d", resp.StatusCode)
	}

	var index sitemapIndex
	if err := xml.Unmarshal(resp.Body, &index); err == nil && len(index.Sitemaps) > 0 {
		var out []string
		for _, child := range index.Sitemaps {
			if len(out) >= limit {
				break
			}
			if !strings.Contains(child.Loc, "collection") && !strings.Contains(child.Loc, "product") {
				continue
			}
			urls, err := catalogURLs(ctx, fetcher, strings.TrimSpace(child.Loc), limit-len(out))
			if err != nil {
				continue
			}
			out = append(out, urls...)
		}
		return out, nil
	}

	var set urlSet
	if err := xml.Unmarshal(resp.Body, &set); err != nil {
		return nil, fmt.Errorf("decode sitemap: %w", err)
	}
	var out []string
	for _, entry := range set.URLs {
		if len(out) >= limit {
			break
		}
		loc := strings.TrimSpace(entry)
		if catalog.ClassifyURL(loc) != catalog.PageGeneric {
			out = append(out, loc)
		}
	}
	return out, nil
}
