package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/linkcrawler/internal/progress"
)

const statusClassError = "error"

// PrometheusSink exports crawl progress as Prometheus collectors.
type PrometheusSink struct {
	crawlsStarted   prometheus.Counter
	crawlsCompleted *prometheus.CounterVec
	crawlsRunning   prometheus.Gauge
	crawlRuntime    *prometheus.HistogramVec
	visitedURLs     prometheus.Histogram

	fetches         *prometheus.CounterVec
	fetchBytes      *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	linksDiscovered *prometheus.CounterVec

	running *crawlTracker
}

var _ progress.Sink = (*PrometheusSink)(nil)

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		crawlsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkcrawler_crawls_started_total",
			Help: "Crawls that have started.",
		}),
		crawlsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkcrawler_crawls_completed_total",
			Help: "Crawls completed, partitioned by result.",
		}, []string{"result"}),
		crawlsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linkcrawler_crawls_running",
			Help: "Crawls currently running.",
		}),
		crawlRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkcrawler_crawl_runtime_seconds",
			Help:    "Wall time per completed crawl.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"result"}),
		visitedURLs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkcrawler_crawl_visited_urls",
			Help:    "Visited set size at the end of each crawl.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkcrawler_fetches_total",
			Help: "Fetch completions partitioned by site and status class.",
		}, []string{"site", "status_class"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkcrawler_fetch_bytes_total",
			Help: "Bytes downloaded per site.",
		}, []string{"site"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkcrawler_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by site and status class.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"site", "status_class"}),
		linksDiscovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkcrawler_links_discovered_total",
			Help: "Links submitted to the frontier, partitioned by source site.",
		}, []string{"site"}),
		running: newCrawlTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.crawlsStarted,
		s.crawlsCompleted,
		s.crawlsRunning,
		s.crawlRuntime,
		s.visitedURLs,
		s.fetches,
		s.fetchBytes,
		s.fetchDuration,
		s.linksDiscovered,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. It is safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageCrawlStart:
			s.crawlsStarted.Inc()
			if s.running.start(evt.CrawlID) {
				s.crawlsRunning.Inc()
			}
		case progress.StageCrawlDone:
			s.finishCrawl(evt, "success")
			s.visitedURLs.Observe(float64(evt.Links))
		case progress.StageCrawlError:
			s.finishCrawl(evt, "error")
		case progress.StageFetchDone:
			s.observeFetch(evt, string(evt.StatusClass))
			if evt.Bytes > 0 {
				s.fetchBytes.WithLabelValues(siteLabel(evt.Site)).Add(float64(evt.Bytes))
			}
			if evt.Links > 0 {
				s.linksDiscovered.WithLabelValues(siteLabel(evt.Site)).Add(float64(evt.Links))
			}
		case progress.StageFetchError:
			s.observeFetch(evt, statusClassError)
		}
	}
	return nil
}

func (s *PrometheusSink) finishCrawl(evt progress.Event, result string) {
	s.crawlsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.crawlRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.running.complete(evt.CrawlID) {
		s.crawlsRunning.Dec()
	}
}

func (s *PrometheusSink) observeFetch(evt progress.Event, statusClass string) {
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	site := siteLabel(evt.Site)
	s.fetches.WithLabelValues(site, statusClass).Inc()
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(site, statusClass).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func siteLabel(site string) string {
	if site == "" {
		return "unknown"
	}
	return site
}

type crawlTracker struct {
	mu      sync.Mutex
	running map[uuid.UUID]struct{}
}

func newCrawlTracker() *crawlTracker {
	return &crawlTracker{running: make(map[uuid.UUID]struct{})}
}

func (t *crawlTracker) start(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *crawlTracker) complete(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
