package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"promaster/internal"
	"promaster/internal/importer"
	"promaster/internal/storage"
	"promaster/internal/util"
)

var productColumns = map[string][]string{
	"code":     {"code", "productcode"},
	"name":     {"productname", "name"},
	"cost":     {"cost", "costprice"},
	"supplier": {"supplier", "suppliername"},
}

// LoadCSV reads a Products export with Code, Product Name, Cost and
// Supplier columns. Rows without a code are skipped.
func LoadCSV(path string) ([]internal.CatalogEntry, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rows, err := importer.ReadRows(filepath.Base(path), blob)
	if err != nil {
		return nil, err
	}
	headerAt, cols, err := importer.LocateHeader(rows, productColumns, "code")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := make([]internal.CatalogEntry, 0, len(rows)-headerAt-1)
	for _, row := range rows[headerAt+1:] {
		code := cols.Cell(row, "code")
		if code == "" {
			continue
		}
		cost, ok := util.ParseDecimal(cols.Cell(row, "cost"))
		if !ok {
			cost = decimal.Zero
		}
		out = append(out, internal.CatalogEntry{
			Code:         code,
			Name:         cols.Cell(row, "name"),
			Cost:         cost,
			SupplierName: cols.Cell(row, "supplier"),
		})
	}
	return out, nil
}

// FromStorage reads the cached catalogue written by SyncService.
func FromStorage(ctx context.Context, db *storage.DB) ([]internal.CatalogEntry, error) {
	rows, err := db.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]internal.CatalogEntry, 0, len(rows))
	for _, r := range rows {
		cost, err := decimal.NewFromString(strings.TrimSpace(r.Cost))
		if err != nil {
			cost = decimal.Zero
		}
		out = append(out, internal.CatalogEntry{
			Code:         r.Code,
			ProductID:    r.ProductID,
			Name:         r.Name,
			Cost:         cost,
			SupplierName: r.Supplier,
		})
	}
	return out, nil
}

// LoadEntries prefers an explicit Products CSV and falls back to the cache.
func LoadEntries(ctx context.Context, csvPath string, db *storage.DB) ([]internal.CatalogEntry, error) {
	if strings.TrimSpace(csvPath) != "" {
		return LoadCSV(csvPath)
	}
	if db == nil {
		return nil, errors.New("no catalog source: set CATALOG_CSV_PATH or run catalog sync")
	}
	entries, err := FromStorage(ctx, db)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("product cache is empty: run catalog sync")
	}
	return entries, nil
}

// SuppliersFromStorage reads the cached supplier contacts in list order.
func SuppliersFromStorage(ctx context.Context, db *storage.DB) ([]internal.Supplier, error) {
	rows, err := db.ListSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]internal.Supplier, 0, len(rows))
	for _, r := range rows {
		out = append(out, internal.Supplier{ID: r.ID, Name: r.Name, JobTitle: r.JobTitle})
	}
	return out, nil
}
