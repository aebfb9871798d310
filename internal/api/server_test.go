package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
	"github.com/JakeFAU/linkcrawler/internal/dispatcher"
)

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := serve(NewServer(nil, zap.NewNop()), http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	rec := serve(NewServer(nil, zap.NewNop()), http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(NewServer(&fakeStatus{}, zap.NewNop()), http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestServer_CrawlStatus(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	provider := &fakeStatus{status: dispatcher.Status{
		State:         dispatcher.StateRunning,
		CrawlID:       "0190a8a0-0000-7000-8000-000000000001",
		StartedAt:     &started,
		Visited:       12,
		Queued:        3,
		Pending:       5,
		ActiveWorkers: 2,
		Stats:         crawler.Stats{Fetched: 10},
	}}
	rec := serve(NewServer(provider, zap.NewNop()), http.MethodGet, "/v1/crawl/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got dispatcher.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, dispatcher.StateRunning, got.State)
	require.Equal(t, 12, got.Visited)
	require.Equal(t, 5, got.Pending)
	require.Equal(t, int64(10), got.Stats.Fetched)
	require.True(t, started.Equal(*got.StartedAt))
	require.True(t, provider.sawDeadline, "status lookups should be bounded")
}

func TestServer_CrawlStatusErrors(t *testing.T) {
	t.Parallel()

	rec := serve(NewServer(nil, zap.NewNop()), http.MethodGet, "/v1/crawl/status", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	provider := &fakeStatus{err: errors.New("redis down")}
	rec = serve(NewServer(provider, zap.NewNop()), http.MethodGet, "/v1/crawl/status", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"failed to load crawl status"}`, rec.Body.String())
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	rec := serve(NewServer(nil, zap.NewNop()), http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "linkcrawler_")
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, zap.NewNop())

	rec := serve(s, http.MethodGet, "/healthz", nil)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(s, http.MethodGet, "/healthz", map[string]string{"X-Request-ID": "abc-123"})
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, zap.NewNop())
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func serve(s *Server, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

type fakeStatus struct {
	status      dispatcher.Status
	err         error
	sawDeadline bool
}

func (f *fakeStatus) Status(ctx context.Context) (dispatcher.Status, error) {
	_, f.sawDeadline = ctx.Deadline()
	return f.status, f.err
}
