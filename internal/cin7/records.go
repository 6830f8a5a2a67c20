package cin7

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Contact is a customer or supplier record from v1/Contacts.
type Contact struct {
	ID            int    `json:"id"`
	Type          string `json:"type"`
	Company       string `json:"company"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	AccountNumber string `json:"accountNumber"`
	JobTitle      string `json:"jobTitle"`
	SalesPersonID *int   `json:"salesPersonId"`
	MemberID      *int   `json:"memberId"`
}

func (c Contact) validate() error {
	if c.ID <= 0 {
		return errors.New("contact without id")
	}
	return nil
}

// DisplayName prefers the company, falling back to the person's name.
func (c Contact) DisplayName() string {
	if name := strings.TrimSpace(c.Company); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// User is a staff account from v1/Users.
type User struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	IsActive  *bool  `json:"isActive"`
}

// Active treats a missing flag as active.
func (u User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u User) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// Product is a row from v1/Products. Cost is absent on some tenants.
type Product struct {
	ID       int                 `json:"id"`
	Code     string              `json:"code"`
	Name     string              `json:"name"`
	Cost     decimal.NullDecimal `json:"cost"`
	Supplier string              `json:"supplier"`
	Brand    string              `json:"brand"`
	Status   string              `json:"status"`

	BranchProducts []BranchProduct `json:"branchProducts"`
}

// BranchProduct is a product's stock position at one branch.
type BranchProduct struct {
	BranchID    int     `json:"branchId"`
	StockOnHand float64 `json:"stockOnHand"`
}

func (p Product) validate() error {
	if p.ID <= 0 {
		return errors.New("product without id")
	}
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("product %d without code", p.ID)
	}
	return nil
}

// BOM is a bill of materials attached to a product.
type BOM struct {
	ID          int            `json:"id"`
	ProductID   int            `json:"productId"`
	ProductCode string         `json:"productCode"`
	Components  []BOMComponent `json:"components"`
}

// BOMComponent accepts both field spellings Cin7 tenants return.
type BOMComponent struct {
	ComponentCode string              `json:"componentCode"`
	Code          string              `json:"code"`
	Qty           *float64            `json:"qty"`
	Quantity      *float64            `json:"quantity"`
	Cost          decimal.NullDecimal `json:"cost"`
}

// ItemCode returns the component's product code.
func (c BOMComponent) ItemCode() string {
	if code := strings.TrimSpace(c.ComponentCode); code != "" {
		return code
	}
	return strings.TrimSpace(c.Code)
}

// PerParent is the component quantity per parent unit; missing means 1.
func (c BOMComponent) PerParent() float64 {
	switch {
	case c.Qty != nil:
		return *c.Qty
	case c.Quantity != nil:
		return *c.Quantity
	default:
		return 1
	}
}

// LineItem is one order line on a sales or purchase order.
type LineItem struct {
	Code         string  `json:"code" validate:"required"`
	Name         string  `json:"name,omitempty"`
	Qty          float64 `json:"qty" validate:"gt=0"`
	UnitPrice    float64 `json:"unitPrice"`
	LineComments string  `json:"lineComments,omitempty"`
}

// SalesOrder is the v1/SalesOrders POST body element.
type SalesOrder struct {
	IsApproved            bool       `json:"isApproved"`
	Reference             string     `json:"reference" validate:"required"`
	BranchID              int        `json:"branchId" validate:"gt=0"`
	SalesPersonID         *int       `json:"salesPersonId,omitempty"`
	MemberID              int        `json:"memberId" validate:"gt=0"`
	Company               string     `json:"company,omitempty"`
	ProjectName           string     `json:"projectName,omitempty"`
	InternalComments      string     `json:"internalComments,omitempty"`
	CustomerOrderNo       string     `json:"customerOrderNo,omitempty"`
	EstimatedDeliveryDate string     `json:"estimatedDeliveryDate,omitempty"`
	EnteredByID           *int       `json:"enteredById,omitempty"`
	CurrencyCode          string     `json:"currencyCode"`
	TaxStatus             string     `json:"taxStatus"`
	TaxRate               float64    `json:"taxRate"`
	Stage                 string     `json:"stage"`
	PriceTier             string     `json:"priceTier,omitempty"`
	LineItems             []LineItem `json:"lineItems" validate:"required,min=1,dive"`
}

// PurchaseOrder is the v1/PurchaseOrders POST body element.
type PurchaseOrder struct {
	IsApproved       bool       `json:"isApproved"`
	Reference        string     `json:"reference" validate:"required"`
	SupplierID       int        `json:"supplierId" validate:"gt=0"`
	BranchID         int        `json:"branchId" validate:"gt=0"`
	Company          string     `json:"company,omitempty"`
	InternalComments string     `json:"internalComments,omitempty"`
	CurrencyCode     string     `json:"currencyCode,omitempty"`
	LineItems        []LineItem `json:"lineItems" validate:"required,min=1,dive"`
}

// PostResult is one element of the array returned by a create call.
type PostResult struct {
	Index   int      `json:"index"`
	Success bool     `json:"success"`
	ID      int      `json:"id"`
	Code    string   `json:"code"`
	Errors  []string `json:"errors"`
}
