// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Claim results.
const (
	ClaimClaimed   = "claimed"
	ClaimDuplicate = "duplicate"
	ClaimError     = "error"
)

// Frontier submit results.
const (
	SubmitAccepted = "accepted"
	SubmitClosed   = "closed"
	SubmitCanceled = "canceled"
)

// Link outcomes.
const (
	LinkResolved   = "resolved"
	LinkUnresolved = "unresolved"
)

// Headless promotion outcomes.
const (
	PromotionRendered = "rendered"
	PromotionFailed   = "failed"
)

var (
	promotionsTotal            *prometheus.CounterVec
	claimsTotal                *prometheus.CounterVec
	frontierSubmitsTotal       *prometheus.CounterVec
	linksTotal                 *prometheus.CounterVec
	pagesTotal                 *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		claimsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkcrawler_visited_claims_total",
				Help: "Visited set claim attempts, labeled by result.",
			},
			[]string{"result"},
		)

		frontierSubmitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkcrawler_frontier_submits_total",
				Help: "URLs submitted to the frontier, labeled by result.",
			},
			[]string{"result"},
		)

		linksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkcrawler_links_total",
				Help: "Extracted hrefs, labeled by resolution outcome.",
			},
			[]string{"outcome"},
		)

		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkcrawler_pages_total",
				Help: "Pages processed, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		promotionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkcrawler_headless_promotions_total",
				Help: "Pages re-fetched with headless Chrome, labeled by result.",
			},
			[]string{"result"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "linkcrawler_active_workers",
				Help: "Number of worker goroutines currently running.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveClaim counts a visited set claim attempt.
func ObserveClaim(result string) {
	Init()
	claimsTotal.WithLabelValues(result).Inc()
}

// ObserveSubmit counts a frontier submission.
func ObserveSubmit(result string) {
	Init()
	frontierSubmitsTotal.WithLabelValues(result).Inc()
}

// ObserveLink counts an extracted href by resolution outcome.
func ObserveLink(outcome string) {
	Init()
	linksTotal.WithLabelValues(outcome).Inc()
}

// ObservePage counts a processed page for the given URL's site.
func ObservePage(rawURL, outcome string) {
	Init()
	pagesTotal.WithLabelValues(SanitizeSite(rawURL), outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObservePromotion counts a headless re-fetch.
func ObservePromotion(result string) {
	Init()
	promotionsTotal.WithLabelValues(result).Inc()
}
