// Package links extracts hyperlinks from HTML and resolves them to absolute URLs.
package links

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
)

const defaultSelector = "a[href]"

// Extractor pulls href values out of an HTML document.
type Extractor struct {
	selector string
}

var _ crawler.LinkExtractor = (*Extractor)(nil)

// NewExtractor returns an extractor for anchor tags.
func NewExtractor() *Extractor {
	return &Extractor{selector: defaultSelector}
}

// Extract returns every non-empty href in document order. Duplicates are kept;
// deduplication is the visited set's job.
func (e *Extractor) Extract(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var refs []string
	doc.Find(e.selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		refs = append(refs, href)
	})
	return refs, nil
}
