// Package catalog defines core types shared across subsystems: the raw
// product shapes produced by extraction strategies, the canonical product
// schema written to the sink, and the interfaces the crawl orchestrator
// depends on.
package catalog
