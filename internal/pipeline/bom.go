package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"promaster/internal"
	"promaster/internal/catalog"
	"promaster/internal/cin7"
	"promaster/internal/util"
)

// ErrNoBOM is what a BOMSource returns for a code without components.
var ErrNoBOM = cin7.ErrNoBOM

type BOMSource interface {
	LookupBOM(ctx context.Context, code string) ([]internal.BomComponent, error)
}

// BOMCache memoizes BOM lookups per normalized parent code for one batch.
// Hits and misses are cached; lookup errors are not.
type BOMCache struct {
	source     BOMSource
	normalizer util.CodeNormalizer
	entries    map[string][]internal.BomComponent
	lookups    int
}

func NewBOMCache(source BOMSource, normalizer util.CodeNormalizer) *BOMCache {
	return &BOMCache{source: source, normalizer: normalizer, entries: map[string][]internal.BomComponent{}}
}

// Components returns the parent's components, or nil for a leaf.
func (c *BOMCache) Components(ctx context.Context, code string) ([]internal.BomComponent, error) {
	key := c.normalizer.Key(code)
	if key == "" {
		return nil, nil
	}
	if cached, ok := c.entries[key]; ok {
		return cached, nil
	}

	c.lookups++
	components, err := c.source.LookupBOM(ctx, code)
	if errors.Is(err, ErrNoBOM) {
		c.entries[key] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.entries[key] = components
	return components, nil
}

// Lookups counts backend calls made through the cache.
func (c *BOMCache) Lookups() int { return c.lookups }

// Exploder expands ordered lines into procurable component lines.
type Exploder struct {
	cache   *BOMCache
	catalog *catalog.Index
}

func NewExploder(cache *BOMCache, idx *catalog.Index) *Exploder {
	return &Exploder{cache: cache, catalog: idx}
}

// Explode expands one level: a leaf comes back as itself, a kit as its
// components with quantities scaled by qty.
func (e *Exploder) Explode(ctx context.Context, code string, qty float64, unitCost decimal.Decimal) ([]internal.ExplodedLine, error) {
	return e.ExplodeDepth(ctx, code, qty, unitCost, 1)
}

type explodeFrame struct {
	code  string
	qty   float64
	cost  decimal.Decimal
	depth int
	path  []string
}

// ExplodeDepth expands up to maxDepth levels. Quantities multiply down the
// tree and a component that contains one of its ancestors is an error.
func (e *Exploder) ExplodeDepth(ctx context.Context, code string, qty float64, unitCost decimal.Decimal, maxDepth int) ([]internal.ExplodedLine, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}
	normalizer := e.cache.normalizer

	var out []internal.ExplodedLine
	stack := []explodeFrame{{code: code, qty: qty, cost: unitCost, path: []string{normalizer.Key(code)}}}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var components []internal.BomComponent
		if frame.depth < maxDepth {
			var err error
			components, err = e.cache.Components(ctx, frame.code)
			if err != nil {
				return nil, fmt.Errorf("bom lookup %s: %w", frame.code, err)
			}
		}
		if len(components) == 0 {
			out = append(out, internal.ExplodedLine{Code: frame.code, Quantity: frame.qty, UnitCost: frame.cost})
			continue
		}

		children := make([]explodeFrame, 0, len(components))
		for _, c := range components {
			if c.QuantityPerParent <= 0 {
				return nil, fmt.Errorf("bom %s: component %s has quantity %v", frame.code, c.ComponentCode, c.QuantityPerParent)
			}
			key := normalizer.Key(c.ComponentCode)
			for _, ancestor := range frame.path {
				if ancestor == key {
					return nil, fmt.Errorf("bom cycle: %s -> %s", strings.Join(frame.path, " -> "), key)
				}
			}
			path := append(append([]string(nil), frame.path...), key)
			children = append(children, explodeFrame{
				code:  c.ComponentCode,
				qty:   frame.qty * c.QuantityPerParent,
				cost:  e.componentCost(c),
				depth: frame.depth + 1,
				path:  path,
			})
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out, nil
}

// componentCost is the component's own cost, then its catalog cost, else 0.
func (e *Exploder) componentCost(c internal.BomComponent) decimal.Decimal {
	if c.UnitCost.Valid {
		return c.UnitCost.Decimal
	}
	if e.catalog != nil {
		if entry, ok := e.catalog.Lookup(c.ComponentCode); ok {
			return entry.Cost
		}
	}
	return decimal.Zero
}
