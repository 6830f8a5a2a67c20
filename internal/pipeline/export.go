package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	sheetResults       = "results"
	sheetSubstitutions = "substitutions"
	sheetTotals        = "supplier_totals"
	sheetMissing       = "missing_codes"
	sheetPurchaseLines = "purchase_lines"
)

// ExportReportXLSX writes the batch report workbook.
func ExportReportXLSX(report *BatchReport, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheetResults); err != nil {
		return err
	}
	for _, name := range []string{sheetPurchaseLines, sheetSubstitutions, sheetTotals, sheetMissing} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	results := [][]any{}
	for i, r := range report.Results {
		supplier, confidence := "", any("")
		if i < len(report.Groups) && report.Groups[i].Supplier != nil {
			supplier = report.Groups[i].Supplier.SupplierName
			confidence = report.Groups[i].Supplier.Confidence
		}
		results = append(results, []any{string(r.Kind), r.GroupKey, string(r.State), r.Success, r.StatusCode, supplier, confidence, r.Error, r.ResponseBody})
	}
	writeSheet(f, sheetResults, []string{"kind", "group_key", "state", "success", "status_code", "supplier", "supplier_score", "error", "response"}, results)

	lineHeaders := []string{"group_key", "reference", "parent_code", "code", "qty", "unit_cost"}
	for _, branch := range report.Branches {
		lineHeaders = append(lineHeaders, "soh_"+strings.ToLower(branch))
	}
	purchaseLines := [][]any{}
	for _, g := range report.Groups {
		reference := ""
		if g.Purchase != nil {
			reference = g.Purchase.Reference
		}
		for _, l := range g.PurchaseLines {
			row := []any{g.Key, reference, l.ParentCode, l.Code, l.Quantity, l.UnitCost.StringFixed(2)}
			for _, branch := range report.Branches {
				if soh, ok := l.StockOnHand[branch]; ok {
					row = append(row, soh)
				} else {
					row = append(row, "")
				}
			}
			purchaseLines = append(purchaseLines, row)
		}
	}
	writeSheet(f, sheetPurchaseLines, lineHeaders, purchaseLines)

	subs := [][]any{}
	for _, s := range report.Substitutions {
		subs = append(subs, []any{"substitution", s.OrderRef, s.From, s.To})
	}
	for _, s := range report.Overrides {
		subs = append(subs, []any{"override", s.OrderRef, s.From, s.To})
	}
	writeSheet(f, sheetSubstitutions, []string{"source", "order_ref", "from_code", "to_code"}, subs)

	names := make([]string, 0, len(report.SupplierTotals))
	for name := range report.SupplierTotals {
		names = append(names, name)
	}
	sort.Strings(names)
	totals := [][]any{}
	for _, name := range names {
		totals = append(totals, []any{name, report.SupplierTotals[name].StringFixed(2)})
	}
	writeSheet(f, sheetTotals, []string{"supplier", "total"}, totals)

	missing := [][]any{}
	for _, code := range report.MissingCodes {
		missing = append(missing, []any{code})
	}
	writeSheet(f, sheetMissing, []string{"code"}, missing)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for r, row := range rows {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}
}

// WritePayloadDump writes every built payload as indented JSON keyed by
// group.
func WritePayloadDump(report *BatchReport, outputPath string) error {
	blob, err := json.MarshalIndent(report.Payloads(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, blob, 0o644)
}
