package promote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
)

func TestFetcherKeepsProbeWhenNotPromoted(t *testing.T) {
	t.Parallel()

	probe := &stubFetcher{page: crawler.Page{StatusCode: 200, Body: []byte("probe")}}
	render := &stubFetcher{page: crawler.Page{StatusCode: 200, Body: []byte("rendered")}}
	f := New(probe, render, stubDetector(false), zap.NewNop())

	page, err := f.Fetch(context.Background(), "https://example.com/")
	require.NoError(t, err)
	require.Equal(t, "probe", string(page.Body))
	require.Zero(t, render.calls)
}

func TestFetcherRendersPromotedPages(t *testing.T) {
	t.Parallel()

	probe := &stubFetcher{page: crawler.Page{StatusCode: 200, Duration: time.Second}}
	render := &stubFetcher{page: crawler.Page{StatusCode: 200, Body: []byte("rendered"), Duration: 2 * time.Second}}
	f := New(probe, render, stubDetector(true), zap.NewNop())

	page, err := f.Fetch(context.Background(), "https://example.com/")
	require.NoError(t, err)
	require.Equal(t, "rendered", string(page.Body))
	require.Equal(t, 3*time.Second, page.Duration)
}

func TestFetcherFallsBackWhenRenderFails(t *testing.T) {
	t.Parallel()

	probe := &stubFetcher{page: crawler.Page{StatusCode: 200, Body: []byte("probe")}}
	render := &stubFetcher{err: errors.New("chrome crashed")}
	f := New(probe, render, stubDetector(true), zap.NewNop())

	page, err := f.Fetch(context.Background(), "https://example.com/")
	require.NoError(t, err)
	require.Equal(t, "probe", string(page.Body))
}

func TestFetcherPropagatesProbeErrors(t *testing.T) {
	t.Parallel()

	probe := &stubFetcher{err: errors.New("dns failure")}
	render := &stubFetcher{}
	f := New(probe, render, stubDetector(true), nil)

	_, err := f.Fetch(context.Background(), "https://example.com/")
	require.ErrorContains(t, err, "dns failure")
	require.Zero(t, render.calls)
}

type stubFetcher struct {
	page  crawler.Page
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, string) (crawler.Page, error) {
	s.calls++
	return s.page, s.err
}

type stubDetector bool

func (d stubDetector) ShouldPromote(crawler.Page) bool { return bool(d) }
