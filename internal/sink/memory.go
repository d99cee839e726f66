// Package sink provides the record stores a crawl run writes to.
package sink

import (
	"context"
	"sync"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

// Memory is an in-process sink. It backs tests and the dry-run output mode.
type Memory struct {
	mu        sync.Mutex
	products  []catalog.Product
	failures  []catalog.FailureRecord
	summaries []catalog.RunSummary
	closed    bool
}

// NewMemory builds an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// WriteProduct implements catalog.Sink.
func (s *Memory) WriteProduct(_ context.Context, product catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, product)
	return nil
}

// WriteFailure implements catalog.Sink.
func (s *Memory) WriteFailure(_ context.Context, failure catalog.FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure)
	return nil
}

// WriteSummary implements catalog.Sink.
func (s *Memory) WriteSummary(_ context.Context, summary catalog.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)
	return nil
}

// Close implements catalog.Sink.
func (s *Memory) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Products returns a copy of the accepted products.
func (s *Memory) Products() []catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Failures returns a copy of the recorded failures.
func (s *Memory) Failures() []catalog.FailureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.FailureRecord, len(s.failures))
	copy(out, s.failures)
	return out
}

// Summaries returns a copy of the written run summaries.
func (s *Memory) Summaries() []catalog.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.RunSummary, len(s.summaries))
	copy(out, s.summaries)
	return out
}
