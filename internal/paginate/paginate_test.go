package paginate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		pageURL string
		want    string
		found   bool
	}{
		{
			name:    "rel next anchor",
			body:    `<html><body><a rel="next" href="/collections/all?page=2">Next</a></body></html>`,
			pageURL: "https://shop.example/collections/all",
			want:    "https://shop.example/collections/all?page=2",
			found:   true,
		},
		{
			name:    "rel next link element",
			body:    `<html><head><link rel="next" href="https://shop.example/collections/all?page=5"></head></html>`,
			pageURL: "https://shop.example/collections/all?page=4",
			want:    "https://shop.example/collections/all?page=5",
			found:   true,
		},
		{
			name:    "pagination container with arrow label",
			body:    `<div class="pagination"><a href="?page=1">1</a><a href="/collections/all?page=3">Next ›</a></div>`,
			pageURL: "https://shop.example/collections/all?page=2",
			want:    "https://shop.example/collections/all?page=3",
			found:   true,
		},
		{
			name:    "aria label",
			body:    `<nav><a aria-label="Next page" href="/collections/sale?page=2">&raquo;</a></nav>`,
			pageURL: "https://shop.example/collections/sale",
			want:    "https://shop.example/collections/sale?page=2",
			found:   true,
		},
		{
			name:    "last page has no next",
			body:    `<div class="pagination"><a href="?page=1">‹ Previous</a><span class="current">2</span></div>`,
			pageURL: "https://shop.example/collections/all?page=2",
			found:   false,
		},
		{
			name:    "no pagination at all",
			body:    `<html><body><p>hello</p></body></html>`,
			pageURL: "https://shop.example/",
			found:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, found := Next([]byte(tc.body), tc.pageURL)
			require.Equal(t, tc.found, found)
			require.Equal(t, tc.want, got)
		})
	}
}
