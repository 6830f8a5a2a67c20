package cin7

import (
	"context"
	"fmt"
)

// StockLookup reads stock on hand per branch from the product record.
type StockLookup struct {
	Client *Client
}

// StockOnHand maps branch id to stock on hand. A code with no product, or
// a branch without a row, has no entry.
func (s StockLookup) StockOnHand(ctx context.Context, code string) (map[int]float64, error) {
	product, err := s.Client.ProductByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup stock for %s: %w", code, err)
	}
	levels := map[int]float64{}
	if product == nil {
		return levels, nil
	}
	for _, bp := range product.BranchProducts {
		if bp.BranchID > 0 {
			levels[bp.BranchID] += bp.StockOnHand
		}
	}
	return levels, nil
}
