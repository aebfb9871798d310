package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"host named http", "httpbin.org/get", "httpbin.org"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if claimsTotal == nil || frontierSubmitsTotal == nil || linksTotal == nil ||
		pagesTotal == nil || promotionsTotal == nil || activeWorkers == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveHelpers(t *testing.T) {
	Init()

	before := testutil.ToFloat64(claimsTotal.WithLabelValues(ClaimDuplicate))
	ObserveClaim(ClaimDuplicate)
	if got := testutil.ToFloat64(claimsTotal.WithLabelValues(ClaimDuplicate)); got != before+1 {
		t.Errorf("expected duplicate claims to grow by 1, got %f -> %f", before, got)
	}

	before = testutil.ToFloat64(pagesTotal.WithLabelValues("metrics.test", "fetched"))
	ObservePage("https://Metrics.Test/a", "fetched")
	if got := testutil.ToFloat64(pagesTotal.WithLabelValues("metrics.test", "fetched")); got != before+1 {
		t.Errorf("expected pages to grow by 1, got %f -> %f", before, got)
	}

	before = testutil.ToFloat64(promotionsTotal.WithLabelValues(PromotionRendered))
	ObservePromotion(PromotionRendered)
	if got := testutil.ToFloat64(promotionsTotal.WithLabelValues(PromotionRendered)); got != before+1 {
		t.Errorf("expected promotions to grow by 1, got %f -> %f", before, got)
	}

	before = testutil.ToFloat64(activeWorkers)
	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()
	if got := testutil.ToFloat64(activeWorkers); got != before+1 {
		t.Errorf("expected active workers %f, got %f", before+1, got)
	}
	DecActiveWorkers()
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
