package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"promaster/internal/util"
)

func TestStockCacheMemoizesByNormalizedCode(t *testing.T) {
	source := &fakeStock{levels: map[string]map[int]float64{"P1": {3: 4, 230: 1}}}
	cache := NewStockCache(source, util.CodeNormalizer{}, quietLogger())

	assert.Equal(t, map[int]float64{3: 4, 230: 1}, cache.OnHand(context.Background(), "P1"))
	assert.Equal(t, map[int]float64{3: 4, 230: 1}, cache.OnHand(context.Background(), " p1 "))
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 1, cache.Lookups())

	assert.Equal(t, map[int]float64{}, cache.OnHand(context.Background(), "UNKNOWN"))
	assert.Equal(t, 2, source.calls)
}

func TestStockCacheDoesNotCacheFailures(t *testing.T) {
	source := &fakeStock{errs: map[string]error{"P1": errors.New("HTTP 503")}}
	cache := NewStockCache(source, util.CodeNormalizer{}, quietLogger())

	assert.Nil(t, cache.OnHand(context.Background(), "P1"))
	assert.Nil(t, cache.OnHand(context.Background(), "P1"))
	assert.Equal(t, 2, source.calls)
}

func TestStockCacheWithoutSource(t *testing.T) {
	cache := NewStockCache(nil, util.CodeNormalizer{}, nil)
	assert.Nil(t, cache.OnHand(context.Background(), "P1"))
	assert.Equal(t, 0, cache.Lookups())
}
