package cin7

import (
	"context"
	"errors"
	"fmt"

	"promaster/internal"
)

// ErrNoBOM reports that a product code has no bill of materials.
var ErrNoBOM = errors.New("no bill of materials")

// BOMLookup resolves a product code to its BOM components through the
// Products and BillsOfMaterials endpoints.
type BOMLookup struct {
	Client *Client
}

func (b BOMLookup) LookupBOM(ctx context.Context, code string) ([]internal.BomComponent, error) {
	product, err := b.Client.ProductByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup product %s: %w", code, err)
	}
	if product == nil {
		return nil, ErrNoBOM
	}
	boms, err := b.Client.BOMsByProductID(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup bom for %s: %w", code, err)
	}
	return ComponentsOf(code, boms)
}

// ComponentsOf flattens the first BOM that has components. A component
// without a code or with a non-positive quantity makes the BOM invalid.
func ComponentsOf(parentCode string, boms []BOM) ([]internal.BomComponent, error) {
	for _, bom := range boms {
		if len(bom.Components) == 0 {
			continue
		}
		out := make([]internal.BomComponent, 0, len(bom.Components))
		for i, c := range bom.Components {
			code := c.ItemCode()
			if code == "" {
				return nil, fmt.Errorf("bom %s component %d: missing code", parentCode, i)
			}
			qty := c.PerParent()
			if qty <= 0 {
				return nil, fmt.Errorf("bom %s component %s: quantity %v", parentCode, code, qty)
			}
			out = append(out, internal.BomComponent{
				ParentCode:        parentCode,
				ComponentCode:     code,
				QuantityPerParent: qty,
				UnitCost:          c.Cost,
			})
		}
		return out, nil
	}
	return nil, ErrNoBOM
}
