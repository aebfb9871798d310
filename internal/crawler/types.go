package crawler

import (
	"net/http"
	"time"
)

// Page is the result returned by a Fetcher implementation.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// BaseURL is the URL relative links on the page resolve against: the final
// URL after redirects when known, the requested URL otherwise.
func (p Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// ContentLength returns the body size in bytes.
func (p Page) ContentLength() int {
	return len(p.Body)
}

// Stats counts what a worker (or a whole crawl) did.
type Stats struct {
	Claimed         int64 `json:"claimed"`
	Skipped         int64 `json:"skipped"`
	Fetched         int64 `json:"fetched"`
	FetchFailures   int64 `json:"fetch_failures"`
	ParseFailures   int64 `json:"parse_failures"`
	ResolveFailures int64 `json:"resolve_failures"`
	LinksSubmitted  int64 `json:"links_submitted"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Claimed += other.Claimed
	s.Skipped += other.Skipped
	s.Fetched += other.Fetched
	s.FetchFailures += other.FetchFailures
	s.ParseFailures += other.ParseFailures
	s.ResolveFailures += other.ResolveFailures
	s.LinksSubmitted += other.LinksSubmitted
}
