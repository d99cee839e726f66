// Package paginate discovers the next listing page from crawled markup.
package paginate

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

// nextLabels are the anchor texts treated as a forward pagination control.
var nextLabels = []string{"next", "›", "»", "→"}

// Next inspects a listing page body for a forward pagination link and
// returns it resolved against pageURL. The second return is false when no
// next link is present, which ends the pagination chain.
func Next(body []byte, pageURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}

	if href := relNext(doc); href != "" {
		return catalog.ResolveReference(pageURL, href), true
	}
	if href := paginationNext(doc); href != "" {
		return catalog.ResolveReference(pageURL, href), true
	}
	return "", false
}

// relNext handles the explicit rel="next" form, on both <a> and <link>.
func relNext(doc *goquery.Document) string {
	var href string
	doc.Find(`a[rel="next"], link[rel="next"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if h, ok := sel.Attr("href"); ok && h != "" {
			href = h
			return false
		}
		return true
	})
	return href
}

// paginationNext scans anchors inside pagination containers for a
// next-looking label.
func paginationNext(doc *goquery.Document) string {
	var href string
	doc.Find(`[class*=pagination] a[href], nav a[href]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if h == "" || h == "#" {
			return true
		}
		if isNextLabel(a) {
			href = h
			return false
		}
		return true
	})
	return href
}

func isNextLabel(a *goquery.Selection) bool {
	text := strings.ToLower(strings.TrimSpace(a.Text()))
	for _, label := range nextLabels {
		if strings.Contains(text, label) {
			return true
		}
	}
	if aria, ok := a.Attr("aria-label"); ok && strings.Contains(strings.ToLower(aria), "next") {
		return true
	}
	if class, ok := a.Attr("class"); ok && strings.Contains(strings.ToLower(class), "next") {
		return true
	}
	return false
}
