// Package memory provides the in-process crawl frontier.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
)

// Queue is a multi-producer, multi-consumer FIFO of pending URLs with
// built-in termination detection.
//
// pending counts every unit of outstanding work: URLs still buffered, URLs
// leased to a worker that has not called Done, and coordinator holds. A
// worker submits the links it discovers before releasing its lease, so
// pending can only reach zero once nobody can produce more work. At that
// point the queue closes itself and Next reports ErrFrontierExhausted.
//
// With capacity > 0 producers block while the buffer is full. A lease
// holder is allowed past the limit only when every outstanding lease holder
// is blocked submitting, since no consumer is left to drain the buffer.
type Queue struct {
	mu       sync.Mutex
	items    []string
	capacity int
	pending  int
	leased   int
	stalled  int
	closed   bool
	wake     chan struct{}
}

var _ crawler.Frontier = (*Queue)(nil)

// NewQueue constructs a queue. A capacity <= 0 means unbounded.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		capacity: capacity,
		wake:     make(chan struct{}),
	}
}

// Hold registers an outstanding producer and returns its release func. The
// queue cannot close on its own while a hold is outstanding. Release is
// idempotent.
func (q *Queue) Hold() func() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return func() {}
	}
	q.pending++
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(q.finish)
	}
}

// Submit enqueues a URL on behalf of a producer that holds no lease.
func (q *Queue) Submit(ctx context.Context, url string) error {
	return q.submit(ctx, url, false)
}

// Next pops the next URL, blocking until one is available or the queue is
// closed and drained.
func (q *Queue) Next(ctx context.Context) (crawler.Lease, error) {
	q.mu.Lock()
	for len(q.items) == 0 {
		if q.closed {
			q.mu.Unlock()
			return nil, crawler.ErrFrontierExhausted
		}
		wake := q.wake
		q.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("frontier next canceled: %w", ctx.Err())
		case <-wake:
		}
		q.mu.Lock()
	}
	url := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	q.leased++
	q.broadcastLocked()
	q.mu.Unlock()
	return &lease{queue: q, url: url}, nil
}

// Close stops the queue from accepting submissions. Buffered URLs are still
// handed out by Next. Closing twice is safe.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeLocked()
}

// Len returns the number of buffered URLs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns buffered URLs plus leases and holds not yet released.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Closed reports whether the queue stopped accepting submissions.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) submit(ctx context.Context, url string, leased bool) error {
	q.mu.Lock()
	for {
		if q.closed {
			q.mu.Unlock()
			return crawler.ErrFrontierClosed
		}
		if q.hasRoomLocked() || (leased && q.stalled+1 >= q.leased) {
			q.items = append(q.items, url)
			q.pending++
			q.broadcastLocked()
			q.mu.Unlock()
			return nil
		}
		if leased {
			q.stalled++
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			if leased {
				q.mu.Lock()
				q.stalled--
				q.mu.Unlock()
			}
			return fmt.Errorf("frontier submit canceled: %w", ctx.Err())
		case <-wake:
		}

		q.mu.Lock()
		if leased {
			q.stalled--
		}
	}
}

func (q *Queue) hasRoomLocked() bool {
	return q.capacity == 0 || len(q.items) < q.capacity
}

func (q *Queue) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.finishLocked()
}

func (q *Queue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.leased--
	q.finishLocked()
}

// finishLocked retires one unit of pending work. The last one closes the
// queue; anything else may unblock a stalled submitter, so wake them.
func (q *Queue) finishLocked() {
	q.pending--
	if q.pending == 0 {
		q.closeLocked()
		return
	}
	q.broadcastLocked()
}

func (q *Queue) closeLocked() {
	if q.closed {
		return
	}
	q.closed = true
	q.broadcastLocked()
}

// broadcastLocked wakes every goroutine parked on the current wake channel.
func (q *Queue) broadcastLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

type lease struct {
	queue *Queue
	url   string
	once  sync.Once
}

func (l *lease) URL() string {
	return l.url
}

// Submit enqueues a link discovered while processing the leased URL.
func (l *lease) Submit(ctx context.Context, url string) error {
	return l.queue.submit(ctx, url, true)
}

// Done releases the lease. Every link the worker wants crawled must be
// submitted before Done, otherwise the queue may close underneath it.
func (l *lease) Done() {
	l.once.Do(l.queue.release)
}
