package internal

import "github.com/shopspring/decimal"

// OrderLine is one product row of an imported ProMaster shipment export.
type OrderLine struct {
	LineNo           int
	SourceFile       string
	OrderRef         string
	CustomerPoNo     string
	AccountToken     string
	RawItemCode      string
	ResolvedItemCode string
	Quantity         float64
	UnitCost         decimal.Decimal
	UnitPrice        decimal.Decimal

	// Filled by the catalog merge.
	InCatalog    bool
	ProductName  string
	CatalogCost  decimal.Decimal
	SupplierName string

	substituted bool
	overridden  bool
}

// Substitute swaps the resolved code once. A line that was already swapped
// or overridden keeps its code.
func (l *OrderLine) Substitute(code string) bool {
	if l.substituted || l.overridden {
		return false
	}
	l.ResolvedItemCode = code
	l.substituted = true
	return true
}

// Override applies the operator's corrected code for a missing catalog code.
func (l *OrderLine) Override(code string) bool {
	if l.overridden {
		return false
	}
	l.ResolvedItemCode = code
	l.overridden = true
	return true
}

func (l OrderLine) Substituted() bool { return l.substituted }
func (l OrderLine) Overridden() bool  { return l.overridden }

// PurchaseCost is the unit cost a supplier is paid for the line.
func (l OrderLine) PurchaseCost() decimal.Decimal {
	if l.UnitCost.IsPositive() {
		return l.UnitCost
	}
	return l.CatalogCost
}

type CatalogEntry struct {
	Code         string
	ProductID    int
	Name         string
	Cost         decimal.Decimal
	SupplierName string
}

type SubstitutionRule struct {
	From string
	To   string
}

type Decision string

const (
	DecisionKeep Decision = "keep"
	DecisionSwap Decision = "swap"
)

type AppliedSubstitution struct {
	OrderRef string
	From     string
	To       string
}

type Branch struct {
	Name            string
	ID              int
	DefaultMemberID int
}

type ResolvedEntity struct {
	ProjectName  string
	SalesRepID   *int
	SalesRepName string
	BranchName   string
	MemberID     *int
}

// Supplier is a supplier contact eligible for purchase orders. A non-empty
// JobTitle is the supplier's PO identifier.
type Supplier struct {
	ID       int
	Name     string
	JobTitle string
}

type SupplierCandidate struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	JobTitle string  `json:"jobTitle,omitempty"`
	Score    float64 `json:"score"`
}

type SupplierMatch struct {
	Query        string
	SupplierID   *int
	SupplierName string
	Confidence   float64
	Abbreviation string
	Candidates   []SupplierCandidate
}

// BomComponent is one component row of a parent's bill of materials.
// UnitCost is invalid when the backend carries no component cost.
type BomComponent struct {
	ParentCode        string
	ComponentCode     string
	QuantityPerParent float64
	UnitCost          decimal.NullDecimal
}

// ExplodedLine is a procurable line produced by BOM explosion.
type ExplodedLine struct {
	Code     string
	Quantity float64
	UnitCost decimal.Decimal
}

// PurchaseLine is an exploded PO line as shown to the operator, with stock
// on hand keyed by branch name. StockOnHand is nil when stock is unknown.
type PurchaseLine struct {
	ParentCode  string
	Code        string
	Quantity    float64
	UnitCost    decimal.Decimal
	StockOnHand map[string]float64
}

type OrderKind string

const (
	KindSales    OrderKind = "SO"
	KindPurchase OrderKind = "PO"
)

type GroupState string

const (
	StatePending     GroupState = "PENDING"
	StateBuilt       GroupState = "BUILT"
	StateSent        GroupState = "SENT"
	StateSucceeded   GroupState = "SUCCEEDED"
	StateFailed      GroupState = "FAILED"
	StateBuildFailed GroupState = "BUILD_FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s GroupState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateBuildFailed
}

type PushResult struct {
	GroupKey     string     `json:"groupKey"`
	Kind         OrderKind  `json:"kind"`
	State        GroupState `json:"state"`
	Success      bool       `json:"success"`
	StatusCode   int        `json:"statusCode,omitempty"`
	ResponseBody string     `json:"response,omitempty"`
	Error        string     `json:"error,omitempty"`
}
