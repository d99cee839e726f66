// Package crawl runs the concurrent fetch-extract-normalize pipeline over
// a storefront and enforces the run's budget and dedup invariants.
package crawl

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/shopharvest/shopharvest/internal/catalog"
	"github.com/shopharvest/shopharvest/internal/metrics"
)

// seenCacheSize bounds the URL dedup cache; a storefront crawl rarely
// touches more than a few thousand distinct pages.
const seenCacheSize = 16384

// Frontier is the work queue feeding the worker pool. Pagination lets
// workers enqueue follow-up tasks while draining, so the channel closes
// only once every pushed task has been marked done.
type Frontier struct {
	tasks  chan catalog.Task
	logger *zap.Logger

	mu          sync.Mutex
	outstanding int
	closed      bool

	seen *lru.Cache[string, struct{}]
}

// NewFrontier builds a frontier whose queue holds up to depth tasks.
func NewFrontier(depth int, logger *zap.Logger) (*Frontier, error) {
	if depth <= 0 {
		depth = 1024
	}
	seen, err := lru.New[string, struct{}](seenCacheSize)
	if err != nil {
		return nil, err
	}
	return &Frontier{
		tasks:  make(chan catalog.Task, depth),
		logger: logger,
		seen:   seen,
	}, nil
}

// Tasks is the channel workers range over. It closes when all work is done.
func (f *Frontier) Tasks() <-chan catalog.Task {
	return f.tasks
}

// Push enqueues a task unless its URL was already visited or the queue is
// full. Returns true when the task was accepted onto the queue.
func (f *Frontier) Push(task catalog.Task) bool {
	key := dedupKey(task.URL)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false
	}
	if _, dup := f.seen.Get(key); dup {
		f.mu.Unlock()
		return false
	}

	select {
	case f.tasks <- task:
		f.seen.Add(key, struct{}{})
		f.outstanding++
		depth := len(f.tasks)
		f.mu.Unlock()
		metrics.SetFrontierDepth(depth)
		return true
	default:
		f.mu.Unlock()
		f.logger.Warn("frontier full, dropping task",
			zap.String("url", task.URL),
			zap.Int("page", task.Page),
		)
		return false
	}
}

// Requeue puts a retried task back without the dedup check. Used for
// page-level retries where the URL is intentionally revisited.
func (f *Frontier) Requeue(task catalog.Task) bool {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false
	}
	select {
	case f.tasks <- task:
		f.outstanding++
		f.mu.Unlock()
		return true
	default:
		f.mu.Unlock()
		f.logger.Warn("frontier full, dropping retry", zap.String("url", task.URL))
		return false
	}
}

// Done marks one dequeued task as fully processed. The last Done closes
// the task channel and releases the worker pool.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outstanding--
	metrics.SetFrontierDepth(len(f.tasks))
	if f.outstanding <= 0 && !f.closed {
		f.closed = true
		close(f.tasks)
	}
}

// Seen reports whether a URL has already been enqueued this run.
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen.Get(dedupKey(url))
	return ok
}

// dedupKey normalizes a URL for the seen-cache; an unparseable URL keys
// on its raw form.
func dedupKey(url string) string {
	key, err := catalog.NormalizeURL(url)
	if err != nil {
		return url
	}
	return key
}

// VisitedURLs returns how many distinct URLs were enqueued.
func (f *Frontier) VisitedURLs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen.Len()
}
