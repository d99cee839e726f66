package crawl

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopharvest/shopharvest/internal/catalog"
	"github.com/shopharvest/shopharvest/internal/metrics"
)

// Rejection reasons recorded when a normalized product is not accepted.
const (
	RejectBudget     = "budget"
	RejectDuplicate  = "duplicate"
	RejectOutOfStock = "out_of_stock"
)

// State is the run's shared accounting: the accepted-product budget, the
// product dedup set, and the failure list. A single mutex guards all three
// so acceptance is atomic; a worker can never overshoot the budget by
// passing a stale check.
type State struct {
	mu       sync.Mutex
	budget   int
	accepted int
	seen     map[string]struct{}
	failures []catalog.FailureRecord
	fatalErr error
}

// NewState builds run state. budget <= 0 means unbounded.
func NewState(budget int) *State {
	return &State{
		budget: budget,
		seen:   make(map[string]struct{}),
	}
}

// TryAccept atomically claims one budget slot for the given product key.
// The key is checked against the dedup set and the slot is claimed in the
// same critical section. On rejection the second return names the reason.
func (s *State) TryAccept(key string) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.budget > 0 && s.accepted >= s.budget {
		metrics.ObserveRejected(RejectBudget)
		return false, RejectBudget
	}
	if _, dup := s.seen[key]; dup {
		metrics.ObserveRejected(RejectDuplicate)
		return false, RejectDuplicate
	}

	s.seen[key] = struct{}{}
	s.accepted++
	metrics.ObserveAccepted()
	return true, ""
}

// Release returns a claimed slot, used when the sink write for an accepted
// product fails and the record never lands.
func (s *State) Release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		delete(s.seen, key)
		s.accepted--
	}
}

// BudgetExhausted reports whether further acceptance is impossible.
func (s *State) BudgetExhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget > 0 && s.accepted >= s.budget
}

// RecordFailure appends a terminal page failure.
func (s *State) RecordFailure(failure catalog.FailureRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure)
	metrics.ObservePageFailure()
}

// SetFatal records the first unrecoverable error; later calls are ignored.
func (s *State) SetFatal(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatalErr == nil {
		s.fatalErr = err
	}
}

// Fatal returns the recorded unrecoverable error, if any.
func (s *State) Fatal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalErr
}

// Summary snapshots the run counters. UniqueURLs is the size of the
// accepted-product dedup set, so it tracks product identities, not pages.
func (s *State) Summary(runID string, finishedAt time.Time) catalog.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return catalog.RunSummary{
		RunID:      runID,
		Accepted:   s.accepted,
		UniqueURLs: len(s.seen),
		Failures:   len(s.failures),
		FinishedAt: finishedAt,
	}
}

// Failures returns a copy of the recorded terminal failures.
func (s *State) Failures() []catalog.FailureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.FailureRecord, len(s.failures))
	copy(out, s.failures)
	return out
}

// productKey is the dedup identity for one canonical record.
func productKey(p catalog.Product) string {
	url := dedupKey(p.URL)
	if p.VariantID != nil {
		return fmt.Sprintf("%s#%d", url, *p.VariantID)
	}
	if p.ID != nil {
		return fmt.Sprintf("%s#p%d", url, *p.ID)
	}
	return url + "#" + p.Title
}
