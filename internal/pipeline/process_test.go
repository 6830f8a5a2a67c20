package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promaster/internal"
	"promaster/internal/catalog"
	"promaster/internal/cin7"
)

type batchFixture struct {
	contacts *fakeContacts
	boms     *fakeBOMs
	stock    *fakeStock
	poster   *fakePoster
	service  *ProcessingService
}

func newBatchFixture() *batchFixture {
	f := &batchFixture{
		contacts: &fakeContacts{byCompany: map[string][]cin7.Contact{
			"ACME BUILDERS - AC01": {{ID: 501, FirstName: "Site 7", SalesPersonID: ip(42)}},
		}},
		boms: kitBOMs(),
		stock: &fakeStock{levels: map[string]map[int]float64{
			"P1": {3: 12, 230: 2},
		}},
		poster: &fakePoster{},
	}
	backend := Backend{Contacts: f.contacts, BOMs: f.boms, Stock: f.stock, Poster: f.poster}
	f.service = NewProcessingService(testConfig(), backend, quietLogger())
	f.service.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	return f
}

func batchCatalog() []internal.CatalogEntry {
	return []internal.CatalogEntry{
		{Code: "AB-12", Name: "Lever", Cost: dec("10"), SupplierName: "Allegion NZ Ltd"},
		{Code: "KIT-1", Name: "Door kit", Cost: dec("40"), SupplierName: "Acme & Sons Limited"},
		{Code: "CD-34", Name: "Knob", Cost: dec("8"), SupplierName: "Unlisted Trading"},
	}
}

func batchInput(lines ...internal.OrderLine) BatchInput {
	return BatchInput{
		Lines:     lines,
		Catalog:   batchCatalog(),
		Suppliers: supplierList(),
		Users:     staff(),
	}
}

func TestRunSingleLeafLine(t *testing.T) {
	f := newBatchFixture()
	in := batchInput(line("J100", "Acme Builders - AC01", "AB-12", 3, "10"))

	report, err := f.service.Run(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, report.BatchID)
	require.Len(t, report.Results, 2)
	assert.Equal(t, 2, f.poster.calls)

	so := report.Groups[0]
	require.NotNil(t, so.Sales)
	assert.Equal(t, internal.StateSucceeded, so.State)
	assert.Equal(t, 230, so.Sales.BranchID)
	assert.Equal(t, "2026-03-04T00:00:00Z", so.Sales.EstimatedDeliveryDate)

	po := report.Groups[1]
	require.NotNil(t, po.Purchase)
	assert.Equal(t, "Allegion NZ Ltd | Hamilton", po.Key)
	assert.Equal(t, "PO-J100-ALLE", po.Purchase.Reference)
	assert.Equal(t, 900, po.Purchase.SupplierID)
	assert.Equal(t, 230, po.Purchase.BranchID)
	assert.Equal(t, []cin7.LineItem{{Code: "AB-12", Qty: 3, UnitPrice: 10}}, po.Purchase.LineItems)
	assert.Equal(t, "30", report.SupplierTotals["Allegion NZ Limited"].String())

	payloads := report.Payloads()
	assert.Contains(t, payloads, "SO J100")
	assert.Contains(t, payloads, "PO Allegion NZ Ltd | Hamilton")
}

func TestRunExplodesKitForPurchase(t *testing.T) {
	f := newBatchFixture()
	in := batchInput(line("J200", "Nobody", "KIT-1", 3, "40"))
	in.Kinds = []internal.OrderKind{internal.KindPurchase}

	report, err := f.service.Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, report.Groups, 1)

	po := report.Groups[0]
	require.NotNil(t, po.Purchase)
	assert.Equal(t, []cin7.LineItem{{Code: "P1", Qty: 6, UnitPrice: 4}, {Code: "P2", Qty: 3, UnitPrice: 6}}, po.Purchase.LineItems)
	assert.Equal(t, 3, po.Purchase.BranchID)
	assert.Equal(t, 901, po.Purchase.SupplierID)
	assert.Equal(t, "PO-J200-ACME", po.Purchase.Reference)
	assert.InDelta(t, 1.0, po.Supplier.Confidence, 1e-9)
	assert.Equal(t, "42", po.Total.String())
	assert.Equal(t, 1, f.poster.calls)
	assert.Empty(t, f.poster.sales)

	require.Len(t, po.PurchaseLines, 2)
	assert.Equal(t, "KIT-1", po.PurchaseLines[0].ParentCode)
	assert.Equal(t, "P1", po.PurchaseLines[0].Code)
	assert.Equal(t, map[string]float64{"Avondale": 12, "Hamilton": 2}, po.PurchaseLines[0].StockOnHand)
	assert.Equal(t, map[string]float64{"Avondale": 0, "Hamilton": 0}, po.PurchaseLines[1].StockOnHand)
	assert.Equal(t, 2, f.stock.calls)
	assert.ElementsMatch(t, []string{"Avondale", "Hamilton"}, report.Branches)
}

func TestRunHaltsOnMissingCodes(t *testing.T) {
	f := newBatchFixture()
	in := batchInput(
		line("J300", "Acme Builders - AC01", "AB-12", 1, "10"),
		line("J300", "Acme Builders - AC01", "ZZZ-99", 1, "10"),
	)

	report, err := f.service.Run(context.Background(), in)
	var missing *catalog.MissingCodesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"ZZZ-99"}, missing.Codes)
	assert.Equal(t, []string{"ZZZ-99"}, report.MissingCodes)
	assert.Empty(t, report.Groups)
	assert.Equal(t, 0, f.poster.calls)
	assert.Equal(t, 0, f.contacts.companyCalls)
}

func TestRunAppliesOverridesAndSubstitutions(t *testing.T) {
	f := newBatchFixture()
	in := batchInput(
		line("J400", "Acme Builders - AC01", "ZZZ-99", 1, "10"),
		line("J400", "Acme Builders - AC01", "OLD-1", 2, "10"),
	)
	in.Substitutions = []internal.SubstitutionRule{{From: "OLD-1", To: "AB-12"}}
	in.Decisions = Decisions{
		Overrides: map[string]string{"zzz-99": "AB-12"},
		Orders:    map[string]OrderDecision{"J400": {Swap: []string{"OLD-1"}}},
	}
	in.DryRun = true

	report, err := f.service.Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, report.Substitutions, 1)
	require.Len(t, report.Overrides, 1)
	assert.Equal(t, "ZZZ-99", report.Overrides[0].From)
	assert.Empty(t, report.MissingCodes)

	assert.Equal(t, 0, f.poster.calls)
	for _, r := range report.Results {
		assert.Equal(t, internal.StateBuilt, r.State)
	}
	require.NotNil(t, report.Groups[0].Sales)
	assert.Len(t, report.Groups[0].Sales.LineItems, 2)
}

func TestRunIsolatesUnresolvedSupplier(t *testing.T) {
	f := newBatchFixture()
	in := batchInput(
		line("J500", "Acme Builders - AC01", "CD-34", 1, "8"),
		line("J500", "Acme Builders - AC01", "AB-12", 1, "10"),
	)

	report, err := f.service.Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	states := map[string]internal.GroupState{}
	for _, g := range report.Groups {
		states[string(g.Kind)+" "+g.Key] = g.State
	}
	assert.Equal(t, internal.StateSucceeded, states["SO J500"])
	assert.Equal(t, internal.StateBuildFailed, states["PO Unlisted Trading | Hamilton"])
	assert.Equal(t, internal.StateSucceeded, states["PO Allegion NZ Ltd | Hamilton"])
	assert.Equal(t, 2, f.poster.calls)

	for _, g := range report.Groups {
		if g.State == internal.StateBuildFailed {
			assert.True(t, errors.Is(g.Err, ErrSupplierUnresolved))
		}
	}
}

func TestRunSkipsPurchaseLines(t *testing.T) {
	f := newBatchFixture()
	in := batchInput(line("J600", "Acme Builders - AC01", "AB-12", 1, "10"))
	in.Decisions = Decisions{Orders: map[string]OrderDecision{"J600": {SkipPurchase: []string{"ab-12"}}}}

	report, err := f.service.Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, internal.KindSales, report.Groups[0].Kind)
}

func TestRunLogsDuplicateCodesAndLookupCounts(t *testing.T) {
	f := newBatchFixture()
	var buf bytes.Buffer
	f.service.logger = slog.New(slog.NewTextHandler(&buf, nil))
	in := batchInput(line("J200", "Nobody", "KIT-1", 3, "40"))
	in.Kinds = []internal.OrderKind{internal.KindPurchase}
	in.Catalog = append(in.Catalog, internal.CatalogEntry{Code: "AB-12", Name: "Lever (old)", Cost: dec("9")})

	_, err := f.service.Run(context.Background(), in)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "duplicate catalog codes, first entry kept")
	assert.Contains(t, out, "AB-12")
	assert.Contains(t, out, "bom_lookups=")
	assert.Contains(t, out, "stock_lookups=2")
}
