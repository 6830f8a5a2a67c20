package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"promaster/internal"
	"promaster/internal/cin7"
	"promaster/internal/config"
)

func ip(v int) *int { return &v }

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig() config.Config {
	return config.Config{
		PrimaryBranch:       "Avondale",
		BranchIDs:           map[string]int{"Avondale": 3, "Hamilton": 230},
		BranchDefaultMember: map[string]int{"Avondale": 3, "Hamilton": 230},
		RepBranches:         map[string]string{"Charlotte Meyer": "Hamilton"},
		SupplierThreshold:   config.DefaultSupplierThreshold,
		BOMMaxDepth:         1,
		ETDLeadDays:         2,
		CurrencyCode:        "NZD",
		TaxStatus:           "Incl",
		TaxRate:             15,
		OrderStage:          "New",
		PriceTier:           "Trade (NZD - Excl)",
	}
}

func testBranches() *BranchTable {
	branches, err := testConfig().Branches()
	if err != nil {
		panic(err)
	}
	t, err := NewBranchTable(branches, testConfig().RepBranches)
	if err != nil {
		panic(err)
	}
	return t
}

func line(ref, account, code string, qty float64, cost string) internal.OrderLine {
	return internal.OrderLine{
		LineNo:           2,
		OrderRef:         ref,
		CustomerPoNo:     ref,
		AccountToken:     account,
		RawItemCode:      code,
		ResolvedItemCode: code,
		Quantity:         qty,
		UnitCost:         dec(cost),
		UnitPrice:        dec(cost).Mul(dec("1.5")),
	}
}

type fakeContacts struct {
	byCompany     map[string][]cin7.Contact
	byAccount     map[string][]cin7.Contact
	companyErr    error
	companyCalls  int
	accountCalls  int
	lastCompany   string
	lastAccountNo string
}

func (f *fakeContacts) ContactsByCompany(ctx context.Context, company string) ([]cin7.Contact, error) {
	f.companyCalls++
	f.lastCompany = company
	if f.companyErr != nil {
		return nil, f.companyErr
	}
	return f.byCompany[company], nil
}

func (f *fakeContacts) ContactsByAccountNumber(ctx context.Context, account string) ([]cin7.Contact, error) {
	f.accountCalls++
	f.lastAccountNo = account
	return f.byAccount[account], nil
}

type fakeBOMs struct {
	boms  map[string][]internal.BomComponent
	errs  map[string]error
	calls int
}

func (f *fakeBOMs) LookupBOM(ctx context.Context, code string) ([]internal.BomComponent, error) {
	f.calls++
	key := strings.ToUpper(strings.TrimSpace(code))
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if components, ok := f.boms[key]; ok {
		return components, nil
	}
	return nil, ErrNoBOM
}

func component(parent, code string, qty float64, cost string) internal.BomComponent {
	c := internal.BomComponent{ParentCode: parent, ComponentCode: code, QuantityPerParent: qty}
	if cost != "" {
		c.UnitCost = decimal.NewNullDecimal(dec(cost))
	}
	return c
}

type fakePoster struct {
	responses []cin7.PostResponse
	errs      []error
	sales     []cin7.SalesOrder
	purchases []cin7.PurchaseOrder
	calls     int
}

func okResponse() cin7.PostResponse {
	return cin7.PostResponse{
		Status:  200,
		Body:    []byte(`[{"index":0,"success":true,"id":1}]`),
		Results: []cin7.PostResult{{Index: 0, Success: true, ID: 1}},
		Parsed:  true,
	}
}

func (f *fakePoster) next() (cin7.PostResponse, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], err
	}
	return okResponse(), err
}

func (f *fakePoster) PostSalesOrders(ctx context.Context, orders []cin7.SalesOrder) (cin7.PostResponse, error) {
	if len(orders) != 1 {
		return cin7.PostResponse{}, errors.New("expected one order per request")
	}
	f.sales = append(f.sales, orders...)
	return f.next()
}

func (f *fakePoster) PostPurchaseOrders(ctx context.Context, orders []cin7.PurchaseOrder) (cin7.PostResponse, error) {
	if len(orders) != 1 {
		return cin7.PostResponse{}, errors.New("expected one order per request")
	}
	f.purchases = append(f.purchases, orders...)
	return f.next()
}

type fakeStock struct {
	levels map[string]map[int]float64
	errs   map[string]error
	calls  int
}

func (f *fakeStock) StockOnHand(ctx context.Context, code string) (map[int]float64, error) {
	f.calls++
	key := strings.ToUpper(strings.TrimSpace(code))
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.levels[key], nil
}
