package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"promaster/internal/cin7"
	"promaster/internal/storage"
)

const (
	lastProductSyncKey  = "catalog.last_product_sync"
	lastSupplierSyncKey = "catalog.last_supplier_sync"
)

// Source is the part of the Cin7 client the cache refresh needs.
type Source interface {
	ListProducts(ctx context.Context) ([]cin7.Product, error)
	ListSuppliers(ctx context.Context) ([]cin7.Contact, error)
}

type SyncResult struct {
	Refreshed bool
	Products  int
	Suppliers int
	LastSync  time.Time
}

type SyncService struct {
	db     *storage.DB
	source Source
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewSyncService(db *storage.DB, source Source, maxAge time.Duration, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{db: db, source: source, maxAge: maxAge, logger: logger, now: time.Now}
}

// Sync refreshes the product and supplier cache when it is older than the
// configured max age, or unconditionally when force is set.
func (s *SyncService) Sync(ctx context.Context, force bool) (SyncResult, error) {
	last, err := s.lastSync(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	if !force && !last.IsZero() && s.now().Sub(last) < s.maxAge {
		s.logger.Info("product cache is fresh", "last_sync", last.Format(time.RFC3339))
		return SyncResult{LastSync: last}, nil
	}

	products, err := s.source.ListProducts(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	rows := make([]storage.ProductRow, 0, len(products))
	for _, p := range products {
		raw, _ := json.Marshal(p)
		cost := "0"
		if p.Cost.Valid {
			cost = p.Cost.Decimal.String()
		}
		rows = append(rows, storage.ProductRow{
			Code:      strings.TrimSpace(p.Code),
			ProductID: p.ID,
			Name:      strings.TrimSpace(p.Name),
			Cost:      cost,
			Supplier:  strings.TrimSpace(p.Supplier),
			RawJSON:   string(raw),
		})
	}
	if err := s.db.ReplaceProducts(ctx, rows); err != nil {
		return SyncResult{}, err
	}

	suppliers, err := s.source.ListSuppliers(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	supplierRows := make([]storage.SupplierRow, 0, len(suppliers))
	for _, c := range suppliers {
		supplierRows = append(supplierRows, storage.SupplierRow{ID: c.ID, Name: c.DisplayName(), JobTitle: strings.TrimSpace(c.JobTitle)})
	}
	if err := s.db.ReplaceSuppliers(ctx, supplierRows); err != nil {
		return SyncResult{}, err
	}

	now := s.now().UTC()
	stamp := now.Format(time.RFC3339)
	if err := s.db.SetMetadata(ctx, lastProductSyncKey, stamp); err != nil {
		return SyncResult{}, err
	}
	if err := s.db.SetMetadata(ctx, lastSupplierSyncKey, stamp); err != nil {
		return SyncResult{}, err
	}
	s.logger.Info("product cache refreshed", "products", len(rows), "suppliers", len(supplierRows))
	return SyncResult{Refreshed: true, Products: len(rows), Suppliers: len(supplierRows), LastSync: now}, nil
}

func (s *SyncService) lastSync(ctx context.Context) (time.Time, error) {
	value, err := s.db.GetMetadata(ctx, lastProductSyncKey)
	if err != nil || value == nil {
		return time.Time{}, err
	}
	parsed, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return time.Time{}, nil
	}
	return parsed, nil
}
