package seed

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
		want []string
		err  error
	}{
		{
			name: "explicit urls pass through without a root",
			opts: Options{
				URLs: []string{"https://shop.example/collections/sale", "https://shop.example/products/mug"},
			},
			want: []string{"https://shop.example/collections/sale", "https://shop.example/products/mug"},
		},
		{
			name: "root appends one derived url after explicit urls",
			opts: Options{
				Root:       "https://shop.example",
				URLs:       []string{"https://shop.example/products/mug"},
				Collection: "new-arrivals",
			},
			want: []string{
				"https://shop.example/products/mug",
				"https://shop.example/collections/new-arrivals",
			},
		},
		{
			name: "collection wins over search",
			opts: Options{Root: "https://shop.example/", Collection: "new-arrivals", SearchQuery: "mug"},
			want: []string{"https://shop.example/collections/new-arrivals"},
		},
		{
			name: "search query escaped",
			opts: Options{Root: "https://shop.example", SearchQuery: "coffee mug"},
			want: []string{"https://shop.example/search?type=product&q=coffee+mug"},
		},
		{
			name: "default catalog collection",
			opts: Options{Root: "https://shop.example"},
			want: []string{"https://shop.example/collections/all"},
		},
		{
			name: "nothing configured",
			opts: Options{},
			err:  ErrNoSeeds,
		},
		{
			name: "only blank urls",
			opts: Options{URLs: []string{"", "  "}},
			err:  ErrNoSeeds,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			seeds, err := Resolve(tc.opts)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			got := make([]string, 0, len(seeds))
			for _, s := range seeds {
				require.Equal(t, 1, s.Page)
				got = append(got, s.URL)
			}
			require.Equal(t, tc.want, got)
		})
	}
}

type mapFetcher struct {
	pages map[string]string
}

func (f mapFetcher) Fetch(_ context.Context, url string) (catalog.FetchResponse, error) {
	body, ok := f.pages[url]
	if !ok {
		return catalog.FetchResponse{}, fmt.Errorf("no page for %s", url)
	}
	return catalog.FetchResponse{URL: url, StatusCode: 200, Body: []byte(body)}, nil
}

func TestDiscoverSitemapSeeds(t *testing.T) {
	t.Parallel()

	fetcher := mapFetcher{pages: map[string]string{
		"https://shop.example/robots.txt": "User-agent: *\nAllow: /\nSitemap: https://shop.example/sitemap.xml\n",
		"https://shop.example/sitemap.xml": `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://shop.example/sitemap_products_1.xml</loc></sitemap>
  <sitemap><loc>https://shop.example/sitemap_collections_1.xml</loc></sitemap>
</sitemapindex>`,
		"https://shop.example/sitemap_collections_1.xml": `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://shop.example/collections/sale</loc></url>
  <url><loc>https://shop.example/collections/new-arrivals</loc></url>
  <url><loc>https://shop.example/pages/about</loc></url>
</urlset>`,
	}}

	seeds, err := DiscoverSitemapSeeds(context.Background(), fetcher, zap.NewNop(), "https://shop.example", 10)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	require.Equal(t, "https://shop.example/collections/sale", seeds[0].URL)
	require.Equal(t, "https://shop.example/collections/new-arrivals", seeds[1].URL)
}

func TestDiscoverSitemapSeedsCap(t *testing.T) {
	t.Parallel()

	fetcher := mapFetcher{pages: map[string]string{
		"https://shop.example/robots.txt": "Sitemap: https://shop.example/sitemap_collections_1.xml\n",
		"https://shop.example/sitemap_collections_1.xml": `<?xml version="1.0"?>
<urlset>
  <url><loc>https://shop.example/collections/a</loc></url>
  <url><loc>https://shop.example/collections/b</loc></url>
  <url><loc>https://shop.example/collections/c</loc></url>
</urlset>`,
	}}

	seeds, err := DiscoverSitemapSeeds(context.Background(), fetcher, zap.NewNop(), "https://shop.example", 2)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
}

func TestDiscoverSitemapSeedsNoRobots(t *testing.T) {
	t.Parallel()

	fetcher := mapFetcher{pages: map[string]string{}}
	_, err := DiscoverSitemapSeeds(context.Background(), fetcher, zap.NewNop(), "https://shop.example", 10)
	require.Error(t, err)
}
