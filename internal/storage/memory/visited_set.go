// Package memory provides in-process storage implementations.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
)

// VisitedSet records claimed URLs in a map for the lifetime of one crawl.
type VisitedSet struct {
	mu   sync.RWMutex
	urls map[string]struct{}
}

var _ crawler.VisitedSet = (*VisitedSet)(nil)

// NewVisitedSet constructs an empty VisitedSet.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// Claim inserts url and reports whether this call was the one that added it.
func (s *VisitedSet) Claim(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[url]; ok {
		return false, nil
	}
	s.urls[url] = struct{}{}
	return true, nil
}

// Len returns the number of claimed URLs.
func (s *VisitedSet) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.urls), nil
}

// Members returns the claimed URLs in lexical order.
func (s *VisitedSet) Members(_ context.Context) ([]string, error) {
	s.mu.RLock()
	out := make([]string, 0, len(s.urls))
	for url := range s.urls {
		out = append(out, url)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

// Close is a no-op.
func (s *VisitedSet) Close() error {
	return nil
}
