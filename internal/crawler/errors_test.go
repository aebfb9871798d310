package crawler

import (
	"errors"
	"testing"
)

func TestErrorTaxonomyUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"fetch", &FetchError{URL: "https://a.test", Err: cause}, "fetch https://a.test: boom"},
		{"parse", &ParseError{URL: "https://a.test", Err: cause}, "parse https://a.test: boom"},
		{"resolve", &ResolveError{Base: "https://a.test", Ref: "::", Err: cause}, `resolve "::" against https://a.test: boom`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, cause) {
				t.Fatalf("expected %v to wrap the cause", tt.err)
			}
		})
	}

	var fetchErr *FetchError
	if !errors.As(error(&FetchError{URL: "x", Err: cause}), &fetchErr) || fetchErr.URL != "x" {
		t.Fatal("expected errors.As to recover FetchError")
	}
}

func TestPageBaseURL(t *testing.T) {
	t.Parallel()

	if got := (Page{URL: "https://a.test/x"}).BaseURL(); got != "https://a.test/x" {
		t.Fatalf("BaseURL() = %q", got)
	}
	page := Page{URL: "https://a.test/x", FinalURL: "https://a.test/y/"}
	if got := page.BaseURL(); got != "https://a.test/y/" {
		t.Fatalf("BaseURL() = %q, want final URL", got)
	}
}

func TestStatsAdd(t *testing.T) {
	t.Parallel()

	total := Stats{Claimed: 1, Fetched: 1}
	total.Add(Stats{Claimed: 2, Skipped: 3, FetchFailures: 1, LinksSubmitted: 4})
	want := Stats{Claimed: 3, Skipped: 3, Fetched: 1, FetchFailures: 1, LinksSubmitted: 4}
	if total != want {
		t.Fatalf("Add() = %+v, want %+v", total, want)
	}
}
