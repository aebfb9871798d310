// Package worker implements the per-URL crawl loop.
package worker

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/clock/system"
	"github.com/JakeFAU/linkcrawler/internal/crawler"
	"github.com/JakeFAU/linkcrawler/internal/metrics"
	"github.com/JakeFAU/linkcrawler/internal/progress"
)

// Config controls Worker behavior.
type Config struct {
	// ID is the worker index within its pool, used in logs and events.
	ID int
	// CrawlID tags every progress event.
	CrawlID uuid.UUID
	// VisitedCeiling stops the crawl once the visited set holds this many
	// URLs. Zero means no ceiling.
	VisitedCeiling int
}

// Worker pulls URLs from the frontier, fetches them, and feeds the links it
// finds back into the frontier.
type Worker struct {
	frontier  crawler.Frontier
	visited   crawler.VisitedSet
	fetcher   crawler.Fetcher
	extractor crawler.LinkExtractor
	resolver  crawler.Resolver
	clock     crawler.Clock
	events    progress.Emitter
	cfg       Config
	logger    *zap.Logger
	stats     crawler.Stats
}

// New constructs a Worker. A nil clock falls back to the system clock and a
// nil emitter disables progress events.
func New(
	frontier crawler.Frontier,
	visited crawler.VisitedSet,
	fetcher crawler.Fetcher,
	extractor crawler.LinkExtractor,
	resolver crawler.Resolver,
	clock crawler.Clock,
	events progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		frontier:  frontier,
		visited:   visited,
		fetcher:   fetcher,
		extractor: extractor,
		resolver:  resolver,
		clock:     clock,
		events:    events,
		cfg:       cfg,
		logger:    logger.With(zap.Int("worker", cfg.ID)),
	}
}

// Stats returns what this worker did. It must only be read after Run returns.
func (w *Worker) Stats() crawler.Stats {
	return w.stats
}

// Run consumes the frontier until it is exhausted, the visited ceiling is
// reached, or ctx is canceled. Per-URL failures never stop the loop.
func (w *Worker) Run(ctx context.Context) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	for {
		lease, err := w.frontier.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, crawler.ErrFrontierExhausted):
				w.logger.Debug("frontier exhausted")
			case ctx.Err() != nil:
				w.logger.Debug("worker canceled", zap.Error(ctx.Err()))
			default:
				w.logger.Error("frontier next failed", zap.Error(err))
			}
			return
		}
		if w.ceilingReached(ctx) {
			lease.Done()
			w.frontier.Close()
			w.logger.Info("visited ceiling reached, closing frontier",
				zap.Int("ceiling", w.cfg.VisitedCeiling))
			return
		}
		w.process(ctx, lease)
		lease.Done()
	}
}

func (w *Worker) ceilingReached(ctx context.Context) bool {
	if w.cfg.VisitedCeiling <= 0 {
		return false
	}
	n, err := w.visited.Len(ctx)
	if err != nil {
		w.logger.Warn("visited size check failed", zap.Error(err))
		return false
	}
	return n >= w.cfg.VisitedCeiling
}

// process handles one leased URL. Every link worth crawling is submitted
// through the lease before the caller releases it.
func (w *Worker) process(ctx context.Context, lease crawler.Lease) {
	url := lease.URL()
	logger := w.logger.With(zap.String("url", url))

	claimed, err := w.visited.Claim(ctx, url)
	switch {
	case err != nil && !claimed:
		metrics.ObserveClaim(metrics.ClaimError)
		w.stats.Skipped++
		logger.Warn("visited claim failed, skipping url", zap.Error(err))
		return
	case !claimed:
		metrics.ObserveClaim(metrics.ClaimDuplicate)
		w.stats.Skipped++
		return
	case err != nil:
		// The URL is in the set now, so it must be crawled by this worker.
		logger.Warn("visited claim succeeded with error", zap.Error(err))
	}
	metrics.ObserveClaim(metrics.ClaimClaimed)
	w.stats.Claimed++

	start := w.clock.Now()
	page, err := w.fetcher.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		fetchErr := &crawler.FetchError{URL: url, Err: err}
		w.stats.FetchFailures++
		metrics.ObservePage(url, "fetch_error")
		logger.Warn("fetch failed", zap.Error(fetchErr))
		w.emit(progress.Event{
			Stage: progress.StageFetchError,
			Site:  metrics.SanitizeSite(url),
			URL:   url,
			Dur:   w.clock.Since(start),
			Note:  err.Error(),
		})
		return
	}
	w.stats.Fetched++

	refs, err := w.extractor.Extract(page.Body)
	if err != nil {
		parseErr := &crawler.ParseError{URL: url, Err: err}
		w.stats.ParseFailures++
		metrics.ObservePage(url, "parse_error")
		logger.Warn("link extraction failed", zap.Error(parseErr))
		w.emitFetchDone(page, url, 0, parseErr.Error())
		return
	}

	submitted := w.submitLinks(ctx, lease, page.BaseURL(), refs, logger)
	w.stats.LinksSubmitted += int64(submitted)
	metrics.ObservePage(url, "fetched")
	logger.Debug("page crawled",
		zap.Int("status", page.StatusCode),
		zap.Int("links_found", len(refs)),
		zap.Int("links_submitted", submitted),
		zap.Duration("fetch_duration", page.Duration),
	)
	w.emitFetchDone(page, url, submitted, "")
}

// submitLinks resolves refs against base and submits each through the lease.
// It stops early when the frontier closes or ctx is canceled.
func (w *Worker) submitLinks(
	ctx context.Context,
	lease crawler.Lease,
	base string,
	refs []string,
	logger *zap.Logger,
) int {
	submitted := 0
	for _, ref := range refs {
		abs, err := w.resolver.Resolve(base, ref)
		if err != nil {
			var resolveErr *crawler.ResolveError
			if !errors.As(err, &resolveErr) {
				err = &crawler.ResolveError{Base: base, Ref: ref, Err: err}
			}
			w.stats.ResolveFailures++
			metrics.ObserveLink(metrics.LinkUnresolved)
			logger.Debug("link not resolvable", zap.Error(err))
			continue
		}
		metrics.ObserveLink(metrics.LinkResolved)

		if err := lease.Submit(ctx, abs); err != nil {
			if errors.Is(err, crawler.ErrFrontierClosed) {
				metrics.ObserveSubmit(metrics.SubmitClosed)
				logger.Debug("frontier closed, dropping remaining links")
			} else {
				metrics.ObserveSubmit(metrics.SubmitCanceled)
				logger.Debug("link submit aborted", zap.Error(err))
			}
			return submitted
		}
		metrics.ObserveSubmit(metrics.SubmitAccepted)
		submitted++
	}
	return submitted
}

func (w *Worker) emitFetchDone(page crawler.Page, url string, links int, note string) {
	w.emit(progress.Event{
		Stage:       progress.StageFetchDone,
		Site:        metrics.SanitizeSite(url),
		URL:         url,
		Bytes:       int64(page.ContentLength()),
		Links:       links,
		StatusClass: progress.ClassifyStatus(page.StatusCode),
		Dur:         page.Duration,
		Note:        note,
	})
}

func (w *Worker) emit(evt progress.Event) {
	if w.events == nil {
		return
	}
	evt.CrawlID = w.cfg.CrawlID
	evt.TS = w.clock.Now()
	evt.Worker = w.cfg.ID
	w.events.Emit(evt)
}
