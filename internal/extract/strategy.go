// Package extract implements the per-page extraction strategy chain: a
// JSON product API, embedded JSON-LD markup, and raw HTML tiles, tried in
// that order until one yields records.
package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/shopharvest/shopharvest/internal/catalog"
	"github.com/shopharvest/shopharvest/internal/metrics"
)

// Strategy extracts raw product records from one fetched page. Returning
// zero records without error means the page had nothing for this strategy.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, page catalog.Page) ([]catalog.RawProduct, error)
}

// Chain runs strategies in priority order and stops at the first one that
// yields at least one record. Strategy errors are absorbed: a failed
// strategy is indistinguishable from an empty one, and a fully exhausted
// chain is a normal "nothing extractable here" outcome, not an error.
type Chain struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewChain builds a Chain over the given strategies.
func NewChain(logger *zap.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Chain{
		strategies: strategies,
		logger:     logger,
	}
}

// Run executes the chain against a page. It returns the extracted records
// and the name of the winning strategy, or (nil, "") when every strategy
// came up empty.
func (c *Chain) Run(ctx context.Context, page catalog.Page) ([]catalog.RawProduct, string) {
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, ""
		}
		records, err := s.Extract(ctx, page)
		if err != nil {
			c.logger.Debug("strategy miss",
				zap.String("strategy", s.Name()),
				zap.String("url", page.URL),
				zap.Error(err),
			)
			continue
		}
		if len(records) == 0 {
			continue
		}
		metrics.ObserveExtraction(s.Name(), len(records))
		c.logger.Debug("strategy hit",
			zap.String("strategy", s.Name()),
			zap.String("url", page.URL),
			zap.Int("records", len(records)),
		)
		return records, s.Name()
	}
	return nil, ""
}
