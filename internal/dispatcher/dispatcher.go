// Package dispatcher runs a crawl: it seeds the frontier, fans work out to a
// pool of workers, and reports the final visited set once they all exit.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/clock/system"
	"github.com/JakeFAU/linkcrawler/internal/crawler"
	idgen "github.com/JakeFAU/linkcrawler/internal/id/uuid"
	"github.com/JakeFAU/linkcrawler/internal/progress"
	"github.com/JakeFAU/linkcrawler/internal/queue/memory"
	"github.com/JakeFAU/linkcrawler/internal/worker"
)

// DefaultWorkers is the pool size used when Params.Workers is not set.
const DefaultWorkers = 5

// ErrCrawlInProgress is returned when Crawl is called while another crawl on
// the same Dispatcher is still running.
var ErrCrawlInProgress = errors.New("crawl already in progress")

// VisitedFactory builds the visited set for one crawl.
type VisitedFactory func(ctx context.Context, crawlID uuid.UUID) (crawler.VisitedSet, error)

// Deps are the collaborators shared by every crawl a Dispatcher runs.
type Deps struct {
	Fetcher    crawler.Fetcher
	Extractor  crawler.LinkExtractor
	Resolver   crawler.Resolver
	NewVisited VisitedFactory
	IDs        crawler.IDGenerator
	Clock      crawler.Clock
	Events     progress.Emitter
}

// Params describe a single crawl.
type Params struct {
	Seeds []string
	// Workers is the pool size. Zero picks DefaultWorkers.
	Workers int
	// QueueCapacity bounds the frontier. Zero means unbounded.
	QueueCapacity int
	// VisitedCeiling stops the crawl once this many URLs were claimed. Zero
	// means no ceiling.
	VisitedCeiling int
}

// Result is the outcome of a crawl.
type Result struct {
	CrawlID  uuid.UUID     `json:"crawl_id"`
	Visited  []string      `json:"visited"`
	Stats    crawler.Stats `json:"stats"`
	Duration time.Duration `json:"duration"`
}

// State is the lifecycle stage reported by Status.
type State string

// Crawl lifecycle states.
const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Status is a point-in-time snapshot of the current or last crawl.
type Status struct {
	State         State         `json:"state"`
	CrawlID       string        `json:"crawl_id,omitempty"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	Visited       int           `json:"visited"`
	Queued        int           `json:"queued"`
	Pending       int           `json:"pending"`
	ActiveWorkers int           `json:"active_workers"`
	Stats         crawler.Stats `json:"stats"`
	Error         string        `json:"error,omitempty"`
}

// Dispatcher coordinates crawls. It runs at most one crawl at a time.
type Dispatcher struct {
	deps   Deps
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	crawlID    uuid.UUID
	startedAt  time.Time
	finishedAt time.Time
	queue      *memory.Queue
	visited    crawler.VisitedSet
	stats      crawler.Stats
	lastErr    error
	active     atomic.Int64

	finalVisited int
}

// New creates a Dispatcher. Clock and IDs default to the system clock and
// UUIDv7 generator when nil.
func New(deps Deps, logger *zap.Logger) (*Dispatcher, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("dispatcher: fetcher is required")
	case deps.Extractor == nil:
		return nil, errors.New("dispatcher: link extractor is required")
	case deps.Resolver == nil:
		return nil, errors.New("dispatcher: resolver is required")
	case deps.NewVisited == nil:
		return nil, errors.New("dispatcher: visited set factory is required")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = idgen.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		deps:   deps,
		logger: logger.Named("dispatcher"),
		state:  StateIdle,
	}, nil
}

// Crawl seeds the frontier, runs the worker pool until no more work can
// arrive (or the ceiling closes the frontier), and returns the visited set.
//
// If ctx is canceled mid-crawl the workers unwind and Crawl returns what was
// visited so far together with the context error.
func (d *Dispatcher) Crawl(ctx context.Context, p Params) (Result, error) {
	if p.Workers <= 0 {
		p.Workers = DefaultWorkers
	}
	if p.QueueCapacity < 0 {
		p.QueueCapacity = 0
	}
	if p.VisitedCeiling < 0 {
		p.VisitedCeiling = 0
	}

	crawlID, err := d.deps.IDs.NewRawID()
	if err != nil {
		return Result{}, fmt.Errorf("crawl id: %w", err)
	}
	if len(p.Seeds) == 0 {
		return Result{CrawlID: crawlID, Visited: []string{}}, nil
	}

	start := d.deps.Clock.Now()
	if err := d.begin(crawlID, start); err != nil {
		return Result{CrawlID: crawlID}, err
	}

	visited, err := d.deps.NewVisited(ctx, crawlID)
	if err != nil {
		err = fmt.Errorf("visited set: %w", err)
		d.finish(nil, crawler.Stats{}, err)
		return Result{CrawlID: crawlID}, err
	}
	defer func() {
		if cerr := visited.Close(); cerr != nil {
			d.logger.Warn("visited set close failed", zap.Error(cerr))
		}
	}()
	queue := memory.NewQueue(p.QueueCapacity)
	d.attach(queue, visited)

	logger := d.logger.With(zap.String("crawl_id", crawlID.String()))
	logger.Info("crawl starting",
		zap.Int("seeds", len(p.Seeds)),
		zap.Int("workers", p.Workers),
		zap.Int("queue_capacity", p.QueueCapacity),
		zap.Int("visited_ceiling", p.VisitedCeiling),
	)
	d.emit(progress.Event{CrawlID: crawlID, Stage: progress.StageCrawlStart, Links: len(p.Seeds)})

	// The hold keeps the queue open until every seed is in, even if the
	// workers finish the first seeds before the last one is submitted.
	release := queue.Hold()
	workers := make([]*worker.Worker, p.Workers)
	var wg sync.WaitGroup
	for i := range workers {
		workers[i] = worker.New(
			queue,
			visited,
			d.deps.Fetcher,
			d.deps.Extractor,
			d.deps.Resolver,
			d.deps.Clock,
			d.deps.Events,
			worker.Config{ID: i, CrawlID: crawlID, VisitedCeiling: p.VisitedCeiling},
			logger,
		)
		wg.Add(1)
		go func(w *worker.Worker) {
			defer wg.Done()
			d.active.Add(1)
			defer d.active.Add(-1)
			w.Run(ctx)
		}(workers[i])
	}

	for _, seed := range p.Seeds {
		if err := queue.Submit(ctx, seed); err != nil {
			// ErrFrontierClosed here means the ceiling was hit while seeding.
			if !errors.Is(err, crawler.ErrFrontierClosed) {
				logger.Warn("seed submit aborted", zap.String("url", seed), zap.Error(err))
			}
			break
		}
	}
	release()

	wg.Wait()
	queue.Close()

	var stats crawler.Stats
	for _, w := range workers {
		stats.Add(w.Stats())
	}

	// The visited set is read even after cancellation so callers still get
	// the partial result.
	members, membersErr := visited.Members(context.WithoutCancel(ctx))
	res := Result{
		CrawlID:  crawlID,
		Visited:  members,
		Stats:    stats,
		Duration: d.deps.Clock.Since(start),
	}
	if res.Visited == nil {
		res.Visited = []string{}
	}

	var crawlErr error
	switch {
	case membersErr != nil:
		crawlErr = fmt.Errorf("read visited set: %w", membersErr)
	case ctx.Err() != nil:
		crawlErr = fmt.Errorf("crawl canceled: %w", ctx.Err())
	}
	d.finish(visited, stats, crawlErr)

	if crawlErr != nil {
		logger.Warn("crawl ended early", zap.Error(crawlErr), zap.Int("visited", len(res.Visited)))
		d.emit(progress.Event{
			CrawlID: crawlID,
			Stage:   progress.StageCrawlError,
			Links:   len(res.Visited),
			Dur:     res.Duration,
			Note:    crawlErr.Error(),
		})
		return res, crawlErr
	}
	logger.Info("crawl finished",
		zap.Int("visited", len(res.Visited)),
		zap.Int64("fetched", stats.Fetched),
		zap.Int64("fetch_failures", stats.FetchFailures),
		zap.Duration("duration", res.Duration),
	)
	d.emit(progress.Event{
		CrawlID: crawlID,
		Stage:   progress.StageCrawlDone,
		Links:   len(res.Visited),
		Dur:     res.Duration,
	})
	return res, nil
}

// Status reports the current crawl, or the last finished one.
func (d *Dispatcher) Status(ctx context.Context) (Status, error) {
	d.mu.Lock()
	st := Status{
		State:         d.state,
		ActiveWorkers: int(d.active.Load()),
		Stats:         d.stats,
		Visited:       d.finalVisited,
	}
	if d.crawlID != uuid.Nil {
		st.CrawlID = d.crawlID.String()
		started := d.startedAt
		st.StartedAt = &started
	}
	if !d.finishedAt.IsZero() {
		finished := d.finishedAt
		st.FinishedAt = &finished
	}
	if d.lastErr != nil {
		st.Error = d.lastErr.Error()
	}
	queue := d.queue
	// finish detaches the set under d.mu before Crawl closes it, so reading
	// it here under the lock never touches a closed set.
	if d.visited != nil {
		n, err := d.visited.Len(ctx)
		if err != nil {
			d.mu.Unlock()
			return Status{}, fmt.Errorf("visited set size: %w", err)
		}
		st.Visited = n
	}
	d.mu.Unlock()

	if queue != nil {
		st.Queued = queue.Len()
		st.Pending = queue.Pending()
	}
	return st, nil
}

func (d *Dispatcher) begin(id uuid.UUID, start time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateRunning {
		return ErrCrawlInProgress
	}
	d.state = StateRunning
	d.crawlID = id
	d.startedAt = start
	d.finishedAt = time.Time{}
	d.finalVisited = 0
	d.queue = nil
	d.stats = crawler.Stats{}
	d.lastErr = nil
	return nil
}

func (d *Dispatcher) attach(q *memory.Queue, v crawler.VisitedSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = q
	d.visited = v
}

// finish records the outcome and detaches the visited set, which is closed
// once Crawl returns. Its final size is kept for Status.
func (d *Dispatcher) finish(visited crawler.VisitedSet, stats crawler.Stats, err error) {
	size := 0
	if visited != nil {
		if n, lerr := visited.Len(context.Background()); lerr == nil {
			size = n
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = stats
	d.finishedAt = d.deps.Clock.Now()
	d.lastErr = err
	d.state = StateDone
	if err != nil {
		d.state = StateFailed
	}
	d.visited = nil
	d.finalVisited = size
}

func (d *Dispatcher) emit(evt progress.Event) {
	if d.deps.Events == nil {
		return
	}
	evt.TS = d.deps.Clock.Now()
	evt.Worker = -1
	d.deps.Events.Emit(evt)
}
