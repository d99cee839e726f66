package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopharvest/shopharvest/internal/catalog"
	"github.com/shopharvest/shopharvest/internal/extract"
	"github.com/shopharvest/shopharvest/internal/metrics"
	"github.com/shopharvest/shopharvest/internal/normalize"
	"github.com/shopharvest/shopharvest/internal/paginate"
)

// ErrNoTasks means no seed made it onto the frontier.
var ErrNoTasks = errors.New("crawl: no tasks enqueued")

// Options tunes one crawl run.
type Options struct {
	Workers           int
	MaxProducts       int
	MaxPages          int
	FrontierDepth     int
	IncludeOutOfStock bool
}

// Orchestrator owns a run: it seeds the frontier, drives the worker pool,
// and enforces the acceptance budget across workers.
type Orchestrator struct {
	fetcher    catalog.Fetcher
	chain      *extract.Chain
	normalizer *normalize.Normalizer
	sink       catalog.Sink
	retry      catalog.RetryPolicy
	clock      catalog.Clock
	logger     *zap.Logger
	opts       Options
}

// New wires an Orchestrator from its collaborators.
func New(
	fetcher catalog.Fetcher,
	chain *extract.Chain,
	normalizer *normalize.Normalizer,
	sink catalog.Sink,
	retry catalog.RetryPolicy,
	clock catalog.Clock,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Orchestrator{
		fetcher:    fetcher,
		chain:      chain,
		normalizer: normalizer,
		sink:       sink,
		retry:      retry,
		clock:      clock,
		logger:     logger,
		opts:       opts,
	}
}

// Run crawls from the given seeds until the frontier drains, the budget
// fills, or the context is canceled. The summary is written to the sink
// before returning. A sink failure aborts the run and is returned.
func (o *Orchestrator) Run(ctx context.Context, seeds []catalog.SeedURL) (catalog.RunSummary, error) {
	runID := uuid.NewString()
	logger := o.logger.With(zap.String("run_id", runID))

	frontier, err := NewFrontier(o.opts.FrontierDepth, logger)
	if err != nil {
		return catalog.RunSummary{}, fmt.Errorf("build frontier: %w", err)
	}
	state := NewState(o.opts.MaxProducts)

	pushed := 0
	for _, s := range seeds {
		page := s.Page
		if page <= 0 {
			page = 1
		}
		if frontier.Push(catalog.Task{URL: s.URL, Page: page}) {
			pushed++
		}
	}
	if pushed == 0 {
		return catalog.RunSummary{}, ErrNoTasks
	}

	logger.Info("crawl starting",
		zap.Int("seeds", pushed),
		zap.Int("workers", o.opts.Workers),
		zap.Int("max_products", o.opts.MaxProducts),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < o.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range frontier.Tasks() {
				o.process(ctx, cancel, frontier, state, task)
				frontier.Done()
			}
		}()
	}
	wg.Wait()

	summary := state.Summary(runID, o.clock.Now())
	if err := o.sink.WriteSummary(context.WithoutCancel(ctx), summary); err != nil {
		state.SetFatal(fmt.Errorf("write summary: %w", err))
	}

	logger.Info("crawl finished",
		zap.Int("accepted", summary.Accepted),
		zap.Int("unique_products", summary.UniqueURLs),
		zap.Int("pages_visited", frontier.VisitedURLs()),
		zap.Int("failures", summary.Failures),
	)
	return summary, state.Fatal()
}

// process handles one dequeued task end to end.
func (o *Orchestrator) process(ctx context.Context, cancel context.CancelFunc, frontier *Frontier, state *State, task catalog.Task) {
	if ctx.Err() != nil || state.Fatal() != nil {
		return
	}
	if state.BudgetExhausted() {
		return
	}

	resp, err := o.fetcher.Fetch(ctx, task.URL)
	if err == nil && resp.StatusCode >= 400 {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		if !retryableStatus(resp.StatusCode) {
			o.failTask(ctx, state, task, err)
			return
		}
	}
	if err != nil {
		o.retryOrFail(ctx, frontier, state, task, err)
		return
	}

	page := catalog.Page{
		URL:        task.URL,
		Kind:       catalog.ClassifyURL(task.URL),
		PageNumber: task.Page,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}

	records, strategy := o.chain.Run(ctx, page)
	if len(records) == 0 {
		o.logger.Debug("no products on page", zap.String("url", task.URL), zap.Int("page", task.Page))
		return
	}

	for _, raw := range records {
		for _, product := range o.normalizer.Normalize(raw) {
			if !o.opts.IncludeOutOfStock && !product.Available {
				metrics.ObserveRejected(RejectOutOfStock)
				continue
			}
			key := productKey(product)
			ok, reason := state.TryAccept(key)
			if !ok {
				if reason == RejectBudget {
					o.logger.Debug("budget reached", zap.String("url", task.URL))
					return
				}
				continue
			}
			if err := o.sink.WriteProduct(ctx, product); err != nil {
				state.Release(key)
				state.SetFatal(fmt.Errorf("write product: %w", err))
				cancel()
				return
			}
		}
	}

	o.maybePaginate(frontier, state, task, page, resp.Body, strategy, len(records))
}

// maybePaginate enqueues the next listing page when the chain extracted at
// least one record, the budget still has room, and the page cap allows it.
// Extraction is the gate, not acceptance: a page whose records were all
// filtered or duplicated still proves the listing continues.
func (o *Orchestrator) maybePaginate(frontier *Frontier, state *State, task catalog.Task, page catalog.Page, body []byte, strategy string, extracted int) {
	if page.Kind == catalog.PageProductDetail {
		return
	}
	if extracted == 0 || state.BudgetExhausted() {
		return
	}
	if o.opts.MaxPages > 0 && task.Page >= o.opts.MaxPages {
		return
	}

	if next, ok := paginate.Next(body, task.URL); ok {
		frontier.Push(catalog.Task{URL: next, Page: task.Page + 1})
		return
	}
	// The JSON endpoint paginates by query parameter even when the markup
	// carries no next link.
	if strategy == string(catalog.SourceAPI) {
		if next, ok := nextPageParam(task.URL, task.Page+1); ok {
			frontier.Push(catalog.Task{URL: next, Page: task.Page + 1})
		}
	}
}

// retryOrFail backs off and requeues a failed task while the policy
// allows, then records a terminal failure.
func (o *Orchestrator) retryOrFail(ctx context.Context, frontier *Frontier, state *State, task catalog.Task, fetchErr error) {
	attempt := task.Attempt + 1
	if o.retry.ShouldRetry(fetchErr, attempt) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.retry.Backoff(attempt)):
		}
		if frontier.Requeue(catalog.Task{URL: task.URL, Page: task.Page, Attempt: attempt}) {
			o.logger.Debug("retrying page",
				zap.String("url", task.URL),
				zap.Int("attempt", attempt),
				zap.Error(fetchErr),
			)
			return
		}
	}
	o.failTask(ctx, state, task, fetchErr)
}

// failTask records exactly one terminal failure for the task.
func (o *Orchestrator) failTask(ctx context.Context, state *State, task catalog.Task, fetchErr error) {
	failure := catalog.FailureRecord{
		URL:      task.URL,
		Error:    fetchErr.Error(),
		Attempts: task.Attempt + 1,
		FailedAt: o.clock.Now(),
	}
	state.RecordFailure(failure)
	o.logger.Warn("page failed",
		zap.String("url", task.URL),
		zap.Int("attempts", failure.Attempts),
		zap.Error(fetchErr),
	)
	if err := o.sink.WriteFailure(ctx, failure); err != nil {
		state.SetFatal(fmt.Errorf("write failure: %w", err))
	}
}

func retryableStatus(status int) bool {
	return status == 429 || status >= 500
}

// nextPageParam bumps or sets the "page" query parameter.
func nextPageParam(rawURL string, page int) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), true
}
