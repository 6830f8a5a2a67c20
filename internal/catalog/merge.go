package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"promaster/internal"
)

// MissingCodesError halts a batch: no order may be pushed while any line
// code is absent from the catalog.
type MissingCodesError struct {
	Codes []string
}

func (e *MissingCodesError) Error() string {
	return fmt.Sprintf("%d codes missing from catalog: %s", len(e.Codes), strings.Join(e.Codes, ", "))
}

type MergeResult struct {
	MissingCodes []string
	Overrides    []internal.AppliedSubstitution
}

// Merge left-joins each line's resolved code against the index, filling
// name, cost and supplier in place. Missing codes come back sorted and
// unique, as normalized keys.
func Merge(lines []internal.OrderLine, idx *Index) MergeResult {
	missing := map[string]struct{}{}
	for i := range lines {
		line := &lines[i]
		entry, ok := idx.Lookup(line.ResolvedItemCode)
		if !ok {
			line.InCatalog = false
			line.ProductName = ""
			line.CatalogCost = decimal.Zero
			line.SupplierName = ""
			key := idx.Key(line.ResolvedItemCode)
			if key == "" {
				key = strings.TrimSpace(line.ResolvedItemCode)
			}
			missing[key] = struct{}{}
			continue
		}
		line.InCatalog = true
		line.ProductName = entry.Name
		line.CatalogCost = entry.Cost
		line.SupplierName = entry.SupplierName
	}
	return MergeResult{MissingCodes: sortedKeys(missing)}
}

// Reconcile merges, applies the operator's corrections for missing codes
// once and merges again. Anything still missing is a *MissingCodesError.
func Reconcile(lines []internal.OrderLine, idx *Index, overrides map[string]string) (MergeResult, error) {
	result := Merge(lines, idx)
	if len(result.MissingCodes) == 0 {
		return result, nil
	}

	byKey := make(map[string]string, len(overrides))
	for from, to := range overrides {
		if key := idx.Key(from); key != "" && strings.TrimSpace(to) != "" {
			byKey[key] = strings.TrimSpace(to)
		}
	}

	var applied []internal.AppliedSubstitution
	for i := range lines {
		line := &lines[i]
		if line.InCatalog {
			continue
		}
		from := line.ResolvedItemCode
		to, ok := byKey[idx.Key(from)]
		if !ok {
			continue
		}
		if line.Override(to) {
			applied = append(applied, internal.AppliedSubstitution{OrderRef: line.OrderRef, From: from, To: to})
		}
	}

	result = Merge(lines, idx)
	result.Overrides = applied
	if len(result.MissingCodes) > 0 {
		return result, &MissingCodesError{Codes: result.MissingCodes}
	}
	return result, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
