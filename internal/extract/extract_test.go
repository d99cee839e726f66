package extract

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

type fakeFetcher struct {
	pages map[string]catalog.FetchResponse
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (catalog.FetchResponse, error) {
	f.calls = append(f.calls, url)
	resp, ok := f.pages[url]
	if !ok {
		return catalog.FetchResponse{}, fmt.Errorf("no fixture for %s", url)
	}
	return resp, nil
}

const productsJSON = `{
  "products": [
    {
      "id": 632910392,
      "title": "Trail Runner",
      "handle": "trail-runner",
      "vendor": "Ridgeline",
      "product_type": "Shoes",
      "tags": ["outdoor", "running"],
      "variants": [
        {"id": 101, "title": "8", "option1": "8", "price": "89.00", "available": true}
      ],
      "images": [{"id": 1, "src": "https://cdn.example/main.jpg", "position": 1}]
    }
  ]
}`

const productDetailJSON = `{
  "product": {
    "id": 77,
    "title": "Gift Card",
    "handle": "gift-card",
    "tags": "gift, card",
    "variants": [{"id": 11, "title": "Default Title", "price": "25.00", "available": true}]
  }
}`

func TestAPIStrategyCollection(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]catalog.FetchResponse{
		"https://shop.example/collections/sale/products.json?limit=250&page=2": {
			StatusCode: 200, Body: []byte(productsJSON),
		},
	}}

	s := NewAPIStrategy(fetcher)
	records, err := s.Extract(context.Background(), catalog.Page{
		URL:        "https://shop.example/collections/sale?page=2",
		Kind:       catalog.PageCollection,
		PageNumber: 2,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, catalog.SourceAPI, records[0].Source)
	require.NotNil(t, records[0].API)
	require.Equal(t, "trail-runner", records[0].API.Handle)
	require.Equal(t, "https://shop.example/products/trail-runner", records[0].API.URL)
	require.Equal(t, []string{"outdoor", "running"}, []string(records[0].API.Tags))
}

func TestAPIStrategyProductDetail(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]catalog.FetchResponse{
		"https://shop.example/products/gift-card.json": {
			StatusCode: 200, Body: []byte(productDetailJSON),
		},
	}}

	s := NewAPIStrategy(fetcher)
	records, err := s.Extract(context.Background(), catalog.Page{
		URL:  "https://shop.example/products/gift-card",
		Kind: catalog.PageProductDetail,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, []string{"gift", "card"}, []string(records[0].API.Tags))
}

func TestAPIStrategyNon200IsEmpty(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]catalog.FetchResponse{
		"https://shop.example/products.json?limit=250&page=1": {
			StatusCode: 404, Body: []byte("not found"),
		},
	}}

	s := NewAPIStrategy(fetcher)
	records, err := s.Extract(context.Background(), catalog.Page{
		URL:        "https://shop.example/",
		Kind:       catalog.PageGeneric,
		PageNumber: 1,
	})
	require.NoError(t, err)
	require.Empty(t, records)
}

const jsonLDPage = `<html><head>
<script type="application/ld+json">{"oops": </script>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@graph": [
    {"@type": "BreadcrumbList"},
    {
      "@type": "Product",
      "productID": "gid://shopify/Product/1234567890",
      "name": "Canvas Tote",
      "brand": {"@type": "Brand", "name": "Harborline"},
      "url": "/products/canvas-tote",
      "image": ["https://cdn.example/tote.jpg"],
      "offers": {"@type": "Offer", "price": 34.5, "priceCurrency": "USD", "availability": "https://schema.org/InStock"}
    }
  ]
}
</script>
</head><body></body></html>`

func TestJSONLDStrategy(t *testing.T) {
	t.Parallel()

	s := NewJSONLDStrategy()
	records, err := s.Extract(context.Background(), catalog.Page{
		URL:  "https://shop.example/products/canvas-tote",
		Kind: catalog.PageProductDetail,
		Body: []byte(jsonLDPage),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)

	p := records[0].Structured
	require.NotNil(t, p)
	require.Equal(t, "gid://shopify/Product/1234567890", p.ProductID)
	require.Equal(t, "Canvas Tote", p.Name)
	require.Equal(t, "Harborline", p.Brand)
	require.Equal(t, "https://shop.example/products/canvas-tote", p.URL)
	require.Equal(t, "https://cdn.example/tote.jpg", p.Image)
	require.Equal(t, "34.5", p.Price)
	require.Equal(t, "USD", p.Currency)
	require.True(t, p.Available)
}

func TestJSONLDStrategyNoProduct(t *testing.T) {
	t.Parallel()

	s := NewJSONLDStrategy()
	records, err := s.Extract(context.Background(), catalog.Page{
		URL:  "https://shop.example/pages/about",
		Body: []byte(`<html><head><script type="application/ld+json">{"@type":"Organization"}</script></head></html>`),
	})
	require.NoError(t, err)
	require.Empty(t, records)
}

const tilePage = `<html><body>
<ul>
<li class="grid__item">
  <a href="/products/enamel-pin"><h3 class="card__heading">Enamel Pin</h3></a>
  <span class="price">$19.99</span>
  <img src="//cdn.example/pin.jpg">
</li>
<li class="grid__item">
  <a href="/products/sticker-pack">Sticker Pack</a>
  <span class="price">$4.50</span>
  <span class="badge">Sold out</span>
</li>
<li class="grid__item"><div class="placeholder"></div></li>
</ul>
</body></html>`

func TestHTMLStrategy(t *testing.T) {
	t.Parallel()

	s := NewHTMLStrategy()
	records, err := s.Extract(context.Background(), catalog.Page{
		URL:  "https://shop.example/collections/all",
		Kind: catalog.PageCollection,
		Body: []byte(tilePage),
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	pin := records[0].Scraped
	require.NotNil(t, pin)
	require.Equal(t, "Enamel Pin", pin.Title)
	require.Equal(t, "https://shop.example/products/enamel-pin", pin.URL)
	require.Equal(t, "enamel-pin", pin.Handle)
	require.NotNil(t, pin.Price)
	require.InDelta(t, 19.99, *pin.Price, 1e-9)
	require.Equal(t, "https://cdn.example/pin.jpg", pin.Image)
	require.True(t, pin.Available)

	sticker := records[1].Scraped
	require.False(t, sticker.Available)
}

type cannedStrategy struct {
	name    string
	records []catalog.RawProduct
	err     error
}

func (s cannedStrategy) Name() string { return s.name }

func (s cannedStrategy) Extract(context.Context, catalog.Page) ([]catalog.RawProduct, error) {
	return s.records, s.err
}

func TestChainFallsThroughToNextStrategy(t *testing.T) {
	t.Parallel()

	want := []catalog.RawProduct{{Source: catalog.SourceHTML, Scraped: &catalog.ScrapedProduct{Title: "x"}}}
	chain := NewChain(zap.NewNop(),
		cannedStrategy{name: "api", err: fmt.Errorf("endpoint disabled")},
		cannedStrategy{name: "jsonld"},
		cannedStrategy{name: "html", records: want},
	)

	records, winner := chain.Run(context.Background(), catalog.Page{URL: "https://shop.example/"})
	require.Equal(t, want, records)
	require.Equal(t, "html", winner)
}

func TestChainExhaustedIsEmpty(t *testing.T) {
	t.Parallel()

	chain := NewChain(zap.NewNop(),
		cannedStrategy{name: "api"},
		cannedStrategy{name: "jsonld"},
	)

	records, winner := chain.Run(context.Background(), catalog.Page{URL: "https://shop.example/"})
	require.Empty(t, records)
	require.Empty(t, winner)
}
