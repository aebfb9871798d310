package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Fetcher fetches a URL and returns the page body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// LinkExtractor returns the raw hyperlink references found in a document,
// in document order.
type LinkExtractor interface {
	Extract(body []byte) ([]string, error)
}

// Resolver turns a possibly-relative reference into an absolute URL.
type Resolver interface {
	Resolve(base, ref string) (string, error)
}

// VisitedSet records every URL claimed during one crawl.
//
// Claim atomically tests and inserts: it reports true to exactly one caller
// per URL for the lifetime of the set, no matter how many callers race.
type VisitedSet interface {
	Claim(ctx context.Context, url string) (bool, error)
	Len(ctx context.Context) (int, error)
	Members(ctx context.Context) ([]string, error)
	Close() error
}

// Frontier distributes pending URLs to workers.
type Frontier interface {
	// Submit enqueues a URL. It fails with ErrFrontierClosed once the
	// frontier is closed and may block while a bounded frontier is full.
	Submit(ctx context.Context, url string) error
	// Next blocks until a URL is available or the frontier is closed and
	// drained, in which case it returns ErrFrontierExhausted.
	Next(ctx context.Context) (Lease, error)
	// Close stops accepting submissions. Buffered URLs still drain.
	Close()
}

// Lease is a dequeued URL owned by a single worker until Done is called.
// Links discovered while processing the URL are submitted through the lease
// so the frontier knows more work may still arrive.
type Lease interface {
	URL() string
	Submit(ctx context.Context, url string) error
	Done()
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// IDGenerator produces crawl IDs.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}
