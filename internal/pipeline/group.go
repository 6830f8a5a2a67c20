package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"promaster/internal"
	"promaster/internal/catalog"
	"promaster/internal/cin7"
	"promaster/internal/config"
)

const deliveryDateLayout = "2006-01-02T00:00:00Z"

// Group is a set of order lines that becomes one backend order.
type Group struct {
	Kind         internal.OrderKind
	Key          string
	OrderRefs    []string
	SupplierName string
	Branch       internal.Branch
	Lines        []internal.OrderLine
}

// BuildError fails one group before anything is sent for it.
type BuildError struct {
	GroupKey string
	Err      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %v", e.GroupKey, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// GroupSales keys sales orders by order reference in first-seen order.
func GroupSales(lines []internal.OrderLine) []Group {
	var out []Group
	pos := map[string]int{}
	for _, line := range lines {
		i, ok := pos[line.OrderRef]
		if !ok {
			i = len(out)
			pos[line.OrderRef] = i
			out = append(out, Group{Kind: internal.KindSales, Key: line.OrderRef, OrderRefs: []string{line.OrderRef}})
		}
		out[i].Lines = append(out[i].Lines, line)
	}
	return out
}

// GroupPurchases keys purchase orders by catalog supplier and branch, and by
// order reference as well when splitByOrder is set.
func GroupPurchases(lines []internal.OrderLine, branchOf func(internal.OrderLine) internal.Branch, splitByOrder bool) []Group {
	var out []Group
	pos := map[string]int{}
	for _, line := range lines {
		branch := branchOf(line)
		key := strings.TrimSpace(line.SupplierName) + " | " + branch.Name
		if splitByOrder {
			key += " | " + line.OrderRef
		}
		i, ok := pos[key]
		if !ok {
			i = len(out)
			pos[key] = i
			out = append(out, Group{Kind: internal.KindPurchase, Key: key, SupplierName: strings.TrimSpace(line.SupplierName), Branch: branch})
		}
		g := &out[i]
		if !slices.Contains(g.OrderRefs, line.OrderRef) {
			g.OrderRefs = append(g.OrderRefs, line.OrderRef)
		}
		g.Lines = append(g.Lines, line)
	}
	return out
}

// Assembler turns groups into validated Cin7 payloads.
type Assembler struct {
	cfg       config.Config
	index     *catalog.Index
	resolver  *EntityResolver
	branches  *BranchTable
	suppliers *SupplierMatcher
	exploder  *Exploder
	stock     *StockCache
	decisions Decisions
	validate  *validator.Validate
	today     time.Time

	supplierMemo map[string]internal.SupplierMatch
}

func NewAssembler(cfg config.Config, idx *catalog.Index, resolver *EntityResolver, branches *BranchTable, suppliers *SupplierMatcher, exploder *Exploder, stock *StockCache, decisions Decisions, today time.Time) *Assembler {
	return &Assembler{
		cfg:          cfg,
		index:        idx,
		resolver:     resolver,
		branches:     branches,
		suppliers:    suppliers,
		exploder:     exploder,
		stock:        stock,
		decisions:    decisions,
		validate:     validator.New(),
		today:        today,
		supplierMemo: map[string]internal.SupplierMatch{},
	}
}

// BranchOf is the branch of the line's customer.
func (a *Assembler) BranchOf(ctx context.Context, line internal.OrderLine) internal.Branch {
	entity := a.resolver.Resolve(ctx, line.AccountToken)
	if b, ok := a.branches.Branch(entity.BranchName); ok {
		return b
	}
	return a.branches.Primary()
}

// MatchSupplier memoizes the supplier match per distinct supplier text.
func (a *Assembler) MatchSupplier(name string) internal.SupplierMatch {
	key := strings.ToUpper(strings.TrimSpace(name))
	if m, ok := a.supplierMemo[key]; ok {
		return m
	}
	m := a.suppliers.Match(name)
	a.supplierMemo[key] = m
	return m
}

func (a *Assembler) BuildSales(ctx context.Context, g Group) (cin7.SalesOrder, error) {
	if len(g.Lines) == 0 {
		return cin7.SalesOrder{}, &BuildError{GroupKey: g.Key, Err: errors.New("group has no lines")}
	}
	first := g.Lines[0]
	entity := a.resolver.Resolve(ctx, first.AccountToken)
	branch, ok := a.branches.Branch(entity.BranchName)
	if !ok {
		branch = a.branches.Primary()
	}

	items := make([]cin7.LineItem, 0, len(g.Lines))
	for _, line := range g.Lines {
		entry, err := a.checkLine(line)
		if err != nil {
			return cin7.SalesOrder{}, &BuildError{GroupKey: g.Key, Err: err}
		}
		items = append(items, cin7.LineItem{
			Code:      entry.Code,
			Name:      entry.Name,
			Qty:       line.Quantity,
			UnitPrice: line.UnitPrice.InexactFloat64(),
		})
	}

	order := cin7.SalesOrder{
		IsApproved:            true,
		Reference:             first.OrderRef,
		BranchID:              branch.ID,
		SalesPersonID:         entity.SalesRepID,
		MemberID:              a.branches.MemberID(entity.MemberID, branch),
		Company:               strings.TrimSpace(first.AccountToken),
		ProjectName:           entity.ProjectName,
		InternalComments:      a.decisions.Comment(first.OrderRef),
		CustomerOrderNo:       first.CustomerPoNo,
		EstimatedDeliveryDate: a.decisions.ETD(first.OrderRef, a.today, a.cfg.ETDLeadDays).Format(deliveryDateLayout),
		EnteredByID:           a.enteredBy(),
		CurrencyCode:          a.cfg.CurrencyCode,
		TaxStatus:             a.cfg.TaxStatus,
		TaxRate:               a.cfg.TaxRate,
		Stage:                 a.cfg.OrderStage,
		PriceTier:             a.cfg.PriceTier,
		LineItems:             items,
	}
	if err := a.validate.Struct(order); err != nil {
		return cin7.SalesOrder{}, &BuildError{GroupKey: g.Key, Err: err}
	}
	return order, nil
}

// PurchaseBuild is an assembled purchase order with the supplier match, the
// spend total and the exploded lines the operator reviews.
type PurchaseBuild struct {
	Order    cin7.PurchaseOrder
	Supplier internal.SupplierMatch
	Total    decimal.Decimal
	Lines    []internal.PurchaseLine
}

// BuildPurchase resolves the supplier, explodes every line and returns the
// order with its spend total. The supplier match is kept on failure.
func (a *Assembler) BuildPurchase(ctx context.Context, g Group) (PurchaseBuild, error) {
	match := a.MatchSupplier(g.SupplierName)
	failed := PurchaseBuild{Supplier: match}
	if match.SupplierID == nil {
		err := fmt.Errorf("%w: %q best score %.2f", ErrSupplierUnresolved, g.SupplierName, match.Confidence)
		return failed, &BuildError{GroupKey: g.Key, Err: err}
	}

	build := PurchaseBuild{Supplier: match, Total: decimal.Zero}
	var items []cin7.LineItem
	for _, line := range g.Lines {
		entry, err := a.checkLine(line)
		if err != nil {
			return failed, &BuildError{GroupKey: g.Key, Err: err}
		}
		exploded, err := a.exploder.ExplodeDepth(ctx, entry.Code, line.Quantity, line.PurchaseCost(), a.cfg.BOMMaxDepth)
		if err != nil {
			return failed, &BuildError{GroupKey: g.Key, Err: err}
		}
		for _, x := range exploded {
			items = append(items, cin7.LineItem{Code: x.Code, Qty: x.Quantity, UnitPrice: x.UnitCost.InexactFloat64()})
			build.Total = build.Total.Add(x.UnitCost.Mul(decimal.NewFromFloat(x.Quantity)))
			build.Lines = append(build.Lines, internal.PurchaseLine{
				ParentCode:  entry.Code,
				Code:        x.Code,
				Quantity:    x.Quantity,
				UnitCost:    x.UnitCost,
				StockOnHand: a.stockByBranch(ctx, x.Code),
			})
		}
	}

	build.Order = cin7.PurchaseOrder{
		IsApproved:   true,
		Reference:    PurchaseReference(g.OrderRefs, match.Abbreviation),
		SupplierID:   *match.SupplierID,
		BranchID:     g.Branch.ID,
		Company:      match.SupplierName,
		CurrencyCode: a.cfg.CurrencyCode,
		LineItems:    items,
	}
	if err := a.validate.Struct(build.Order); err != nil {
		return failed, &BuildError{GroupKey: g.Key, Err: err}
	}
	return build, nil
}

// stockByBranch names the stock levels of a code by branch; branches
// without a stock row read 0.
func (a *Assembler) stockByBranch(ctx context.Context, code string) map[string]float64 {
	if a.stock == nil {
		return nil
	}
	levels := a.stock.OnHand(ctx, code)
	if levels == nil {
		return nil
	}
	out := make(map[string]float64, len(a.branches.Branches()))
	for _, b := range a.branches.Branches() {
		out[b.Name] = levels[b.ID]
	}
	return out
}

// PurchaseReference is "PO-<refs joined by '-'>-<ABBR>".
func PurchaseReference(orderRefs []string, abbreviation string) string {
	return "PO-" + strings.Join(orderRefs, "-") + "-" + abbreviation
}

func (a *Assembler) checkLine(line internal.OrderLine) (internal.CatalogEntry, error) {
	entry, ok := a.index.Lookup(line.ResolvedItemCode)
	if !ok {
		return internal.CatalogEntry{}, fmt.Errorf("line %d: code %q not in catalog", line.LineNo, line.ResolvedItemCode)
	}
	if line.Quantity <= 0 {
		return internal.CatalogEntry{}, fmt.Errorf("line %d: code %q has quantity %v", line.LineNo, line.ResolvedItemCode, line.Quantity)
	}
	return entry, nil
}

func (a *Assembler) enteredBy() *int {
	id := a.decisions.EnteredByID
	if id <= 0 {
		id = a.cfg.EnteredByID
	}
	if id <= 0 {
		return nil
	}
	return &id
}
