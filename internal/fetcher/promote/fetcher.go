// Package promote combines a cheap HTTP fetcher with a headless browser,
// rendering only the pages that look like client-side apps.
package promote

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
	"github.com/JakeFAU/linkcrawler/internal/metrics"
)

// Detector decides whether a probed page needs a browser render.
type Detector interface {
	ShouldPromote(page crawler.Page) bool
}

// Fetcher probes every URL with probe and re-fetches it with render when
// the detector asks for it.
type Fetcher struct {
	probe    crawler.Fetcher
	render   crawler.Fetcher
	detector Detector
	logger   *zap.Logger
}

var _ crawler.Fetcher = (*Fetcher)(nil)

// New creates a promoting Fetcher.
func New(probe, render crawler.Fetcher, detector Detector, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		probe:    probe,
		render:   render,
		detector: detector,
		logger:   logger.Named("promote"),
	}
}

// Fetch returns the probed page, or the rendered one when promotion
// succeeds. A failed render falls back to the probed page.
func (f *Fetcher) Fetch(ctx context.Context, url string) (crawler.Page, error) {
	page, err := f.probe.Fetch(ctx, url)
	if err != nil {
		return crawler.Page{}, err
	}
	if f.render == nil || f.detector == nil || !f.detector.ShouldPromote(page) {
		return page, nil
	}

	rendered, err := f.render.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return crawler.Page{}, ctx.Err()
		}
		metrics.ObservePromotion(metrics.PromotionFailed)
		f.logger.Debug("headless render failed, keeping probe result",
			zap.String("url", url), zap.Error(err))
		return page, nil
	}
	metrics.ObservePromotion(metrics.PromotionRendered)
	rendered.Duration += page.Duration
	return rendered, nil
}
