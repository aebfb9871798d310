package promote

import (
	"bytes"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
)

const defaultBodyThreshold = 2048

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// Heuristic flags pages whose links are probably injected by JavaScript.
// A page that already exposes anchors is never promoted.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a Heuristic. A threshold of zero uses 2 KiB.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = defaultBodyThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

// ShouldPromote reports whether page should be re-fetched with a browser.
func (h *Heuristic) ShouldPromote(page crawler.Page) bool {
	if page.StatusCode != http.StatusOK {
		return false
	}
	if len(page.Body) == 0 {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return false
	}
	if doc.Find("a[href]").Length() > 0 {
		return false
	}
	if len(page.Body) < h.BodyLengthThreshold && scriptHeavy(doc, len(page.Body)) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(page.Body, marker) {
			return true
		}
	}
	return false
}

// scriptHeavy reports whether inline scripts make up a quarter or more of
// the document.
func scriptHeavy(doc *goquery.Document, total int) bool {
	scriptBytes := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		scriptBytes += len(s.Text())
		if _, ok := s.Attr("src"); ok {
			// External bundles count as heavy regardless of size.
			scriptBytes += total
		}
	})
	return scriptBytes > 0 && scriptBytes*4 >= total
}
