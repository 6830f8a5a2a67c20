package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promaster/internal"
)

func supplierList() []internal.Supplier {
	return []internal.Supplier{
		{ID: 900, Name: "Allegion NZ Limited"},
		{ID: 901, Name: "Acme and Sons Ltd"},
		{ID: 902, Name: "Acme and Sons Ltd"},
		{ID: 0, Name: "No Id"},
		{ID: 903, Name: "***"},
	}
}

func TestSupplierMatchNormalizesAndAccepts(t *testing.T) {
	m := NewSupplierMatcher(supplierList(), 0)

	got := m.Match("Acme & Sons Limited")
	require.NotNil(t, got.SupplierID)
	assert.Equal(t, 901, *got.SupplierID)
	assert.Equal(t, "Acme and Sons Ltd", got.SupplierName)
	assert.InDelta(t, 1.0, got.Confidence, 1e-9)
	assert.Equal(t, "ACME", got.Abbreviation)
	require.Len(t, got.Candidates, 3)
	assert.Equal(t, 902, got.Candidates[1].ID)
}

func TestSupplierMatchPrefersJobTitleIdentifier(t *testing.T) {
	m := NewSupplierMatcher([]internal.Supplier{
		{ID: 910, Name: "Dormakaba New Zealand", JobTitle: " dorma "},
		{ID: 911, Name: "Assa Abloy NZ"},
	}, 0.5)

	withTitle := m.Match("Dormakaba New Zealand Ltd")
	require.NotNil(t, withTitle.SupplierID)
	assert.Equal(t, 910, *withTitle.SupplierID)
	assert.Equal(t, "DORMA", withTitle.Abbreviation)

	withoutTitle := m.Match("Assa Abloy NZ Limited")
	require.NotNil(t, withoutTitle.SupplierID)
	assert.Equal(t, 911, *withoutTitle.SupplierID)
	assert.Equal(t, "ASSA", withoutTitle.Abbreviation)
}

func TestSupplierMatchBelowThreshold(t *testing.T) {
	m := NewSupplierMatcher(supplierList(), 0.9)

	got := m.Match("Allegion")
	assert.Nil(t, got.SupplierID)
	assert.Empty(t, got.Abbreviation)
	assert.InDelta(t, 2*8.0/21.0, got.Confidence, 1e-9)
	assert.Equal(t, 900, got.Candidates[0].ID)
}

func TestSupplierMatchEmpty(t *testing.T) {
	m := NewSupplierMatcher(supplierList(), 0.5)
	got := m.Match("  ")
	assert.Nil(t, got.SupplierID)
	assert.Empty(t, got.Candidates)

	none := NewSupplierMatcher(nil, 0.5).Match("Acme")
	assert.Nil(t, none.SupplierID)
}
