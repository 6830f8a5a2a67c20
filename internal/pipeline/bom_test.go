package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promaster/internal"
	"promaster/internal/catalog"
	"promaster/internal/util"
)

func kitBOMs() *fakeBOMs {
	return &fakeBOMs{boms: map[string][]internal.BomComponent{
		"KIT-1": {component("KIT-1", "P1", 2, "4"), component("KIT-1", "P2", 1, "6")},
	}}
}

func assertExploded(t *testing.T, want, got []internal.ExplodedLine) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Code, got[i].Code, "line %d", i)
		assert.InDelta(t, want[i].Quantity, got[i].Quantity, 1e-9, "line %d", i)
		assert.True(t, want[i].UnitCost.Equal(got[i].UnitCost), "line %d cost %s", i, got[i].UnitCost)
	}
}

func TestExplodeKit(t *testing.T) {
	source := kitBOMs()
	e := NewExploder(NewBOMCache(source, util.CodeNormalizer{}), nil)

	got, err := e.Explode(context.Background(), "KIT-1", 3, dec("40"))
	require.NoError(t, err)
	assertExploded(t, []internal.ExplodedLine{
		{Code: "P1", Quantity: 6, UnitCost: dec("4")},
		{Code: "P2", Quantity: 3, UnitCost: dec("6")},
	}, got)
}

func TestExplodeLeafKeepsLine(t *testing.T) {
	e := NewExploder(NewBOMCache(kitBOMs(), util.CodeNormalizer{}), nil)

	got, err := e.Explode(context.Background(), "AB-12", 3, dec("10"))
	require.NoError(t, err)
	assertExploded(t, []internal.ExplodedLine{{Code: "AB-12", Quantity: 3, UnitCost: dec("10")}}, got)
}

func TestBOMCacheMemoizesHitsAndMisses(t *testing.T) {
	source := kitBOMs()
	cache := NewBOMCache(source, util.CodeNormalizer{})
	e := NewExploder(cache, nil)
	ctx := context.Background()

	for _, code := range []string{"KIT-1", "kit-1", "AB-12", " ab-12 "} {
		_, err := e.Explode(ctx, code, 1, decimal.Zero)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Lookups())
	assert.Equal(t, 2, source.calls)
}

func TestBOMCacheDoesNotCacheErrors(t *testing.T) {
	source := &fakeBOMs{errs: map[string]error{"KIT-9": errors.New("timeout")}}
	cache := NewBOMCache(source, util.CodeNormalizer{})

	_, err := cache.Components(context.Background(), "KIT-9")
	require.Error(t, err)
	_, err = cache.Components(context.Background(), "KIT-9")
	require.Error(t, err)
	assert.Equal(t, 2, source.calls)

	_, err = NewExploder(cache, nil).Explode(context.Background(), "KIT-9", 1, decimal.Zero)
	assert.ErrorContains(t, err, "timeout")
}

func TestExplodeDepth(t *testing.T) {
	source := &fakeBOMs{boms: map[string][]internal.BomComponent{
		"KIT-1": {component("KIT-1", "SUB-1", 2, "20"), component("KIT-1", "P2", 1, "6")},
		"SUB-1": {component("SUB-1", "P9", 3, "")},
	}}
	idx := catalog.BuildIndex([]internal.CatalogEntry{{Code: "P9", Cost: dec("7")}}, util.CodeNormalizer{})
	e := NewExploder(NewBOMCache(source, util.CodeNormalizer{}), idx)
	ctx := context.Background()

	one, err := e.ExplodeDepth(ctx, "KIT-1", 1, decimal.Zero, 1)
	require.NoError(t, err)
	assertExploded(t, []internal.ExplodedLine{
		{Code: "SUB-1", Quantity: 2, UnitCost: dec("20")},
		{Code: "P2", Quantity: 1, UnitCost: dec("6")},
	}, one)

	deep, err := e.ExplodeDepth(ctx, "KIT-1", 1, decimal.Zero, 3)
	require.NoError(t, err)
	assertExploded(t, []internal.ExplodedLine{
		{Code: "P9", Quantity: 6, UnitCost: dec("7")},
		{Code: "P2", Quantity: 1, UnitCost: dec("6")},
	}, deep)
}

func TestExplodeDepthDetectsCycle(t *testing.T) {
	source := &fakeBOMs{boms: map[string][]internal.BomComponent{
		"A": {component("A", "B", 1, "1")},
		"B": {component("B", "a", 1, "1")},
	}}
	e := NewExploder(NewBOMCache(source, util.CodeNormalizer{}), nil)

	_, err := e.ExplodeDepth(context.Background(), "A", 1, decimal.Zero, 5)
	assert.ErrorContains(t, err, "cycle")
}

func TestExplodeRejectsBadComponentQuantity(t *testing.T) {
	source := &fakeBOMs{boms: map[string][]internal.BomComponent{
		"KIT-1": {component("KIT-1", "P1", 0, "4")},
	}}
	e := NewExploder(NewBOMCache(source, util.CodeNormalizer{}), nil)

	_, err := e.Explode(context.Background(), "KIT-1", 1, decimal.Zero)
	assert.ErrorContains(t, err, "quantity")
}

func TestComponentCostFallsBackToZero(t *testing.T) {
	source := &fakeBOMs{boms: map[string][]internal.BomComponent{
		"KIT-1": {component("KIT-1", "UNKNOWN", 1, "")},
	}}
	e := NewExploder(NewBOMCache(source, util.CodeNormalizer{}), catalog.BuildIndex(nil, util.CodeNormalizer{}))

	got, err := e.Explode(context.Background(), "KIT-1", 2, dec("9"))
	require.NoError(t, err)
	assertExploded(t, []internal.ExplodedLine{{Code: "UNKNOWN", Quantity: 2, UnitCost: decimal.Zero}}, got)
}
