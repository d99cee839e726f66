package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

// Record type markers on each JSONL row, so mixed streams stay parseable.
const (
	recordTypeProduct = "product"
	recordTypeFailure = "failure"
	recordTypeSummary = "summary"
)

type jsonlRow struct {
	RecordType string                 `json:"record_type"`
	Product    *catalog.Product       `json:"product,omitempty"`
	Failure    *catalog.FailureRecord `json:"failure,omitempty"`
	Summary    *catalog.RunSummary    `json:"summary,omitempty"`
}

// JSONL appends one JSON document per line to a writer. Writes are
// serialized; rows from concurrent workers never interleave.
type JSONL struct {
	mu     sync.Mutex
	writer *bufio.Writer
	closer io.Closer
}

// NewJSONL opens (or creates) path for appending.
func NewJSONL(path string) (*JSONL, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &JSONL{writer: bufio.NewWriter(file), closer: file}, nil
}

// NewJSONLWriter wraps an arbitrary writer, for stdout output and tests.
func NewJSONLWriter(w io.Writer) *JSONL {
	return &JSONL{writer: bufio.NewWriter(w)}
}

// WriteProduct implements catalog.Sink.
func (s *JSONL) WriteProduct(_ context.Context, product catalog.Product) error {
	return s.writeRow(jsonlRow{RecordType: recordTypeProduct, Product: &product})
}

// WriteFailure implements catalog.Sink.
func (s *JSONL) WriteFailure(_ context.Context, failure catalog.FailureRecord) error {
	return s.writeRow(jsonlRow{RecordType: recordTypeFailure, Failure: &failure})
}

// WriteSummary implements catalog.Sink.
func (s *JSONL) WriteSummary(_ context.Context, summary catalog.RunSummary) error {
	return s.writeRow(jsonlRow{RecordType: recordTypeSummary, Summary: &summary})
}

func (s *JSONL) writeRow(row jsonlRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(data); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	return nil
}

// Close flushes buffered rows and closes the underlying file, if any.
func (s *JSONL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
