package catalog

import (
	"context"
	"time"
)

// Fetcher retrieves a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Sink is the append-only record store products, failures, and the run
// summary are written to.
type Sink interface {
	WriteProduct(ctx context.Context, product Product) error
	WriteFailure(ctx context.Context, failure FailureRecord) error
	WriteSummary(ctx context.Context, summary RunSummary) error
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// RetryPolicy decides whether and when a failed page fetch is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}
