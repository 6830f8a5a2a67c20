package pipeline

import (
	"context"
	"log/slog"

	"promaster/internal/util"
)

// StockSource reports stock on hand per branch id for a product code.
type StockSource interface {
	StockOnHand(ctx context.Context, code string) (map[int]float64, error)
}

// StockCache memoizes stock lookups per normalized code for one batch.
// Failed lookups are logged, not cached, and read as unknown.
type StockCache struct {
	source     StockSource
	normalizer util.CodeNormalizer
	logger     *slog.Logger
	entries    map[string]map[int]float64
	lookups    int
}

func NewStockCache(source StockSource, normalizer util.CodeNormalizer, logger *slog.Logger) *StockCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &StockCache{source: source, normalizer: normalizer, logger: logger, entries: map[string]map[int]float64{}}
}

// OnHand returns stock by branch id, or nil when it cannot be known.
func (c *StockCache) OnHand(ctx context.Context, code string) map[int]float64 {
	key := c.normalizer.Key(code)
	if c.source == nil || key == "" {
		return nil
	}
	if cached, ok := c.entries[key]; ok {
		return cached
	}

	c.lookups++
	levels, err := c.source.StockOnHand(ctx, code)
	if err != nil {
		c.logger.Warn("stock lookup failed", "code", code, "err", err)
		return nil
	}
	if levels == nil {
		levels = map[int]float64{}
	}
	c.entries[key] = levels
	return levels
}

// Lookups counts backend calls made through the cache.
func (c *StockCache) Lookups() int { return c.lookups }
