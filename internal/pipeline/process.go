package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"promaster/internal"
	"promaster/internal/catalog"
	"promaster/internal/cin7"
	"promaster/internal/config"
	"promaster/internal/util"
)

// Backend bundles the Cin7 collaborators a batch talks to.
type Backend struct {
	Contacts ContactLookup
	BOMs     BOMSource
	Stock    StockSource
	Poster   OrderPoster
}

// BatchInput is everything the operator supplies for one run.
type BatchInput struct {
	Lines         []internal.OrderLine
	Catalog       []internal.CatalogEntry
	Substitutions []internal.SubstitutionRule
	Suppliers     []internal.Supplier
	Users         []cin7.User
	Decisions     Decisions
	Kinds         []internal.OrderKind
	DryRun        bool
}

type BatchReport struct {
	BatchID        string
	Branches       []string
	Candidates     []SubstitutionCandidate
	Substitutions  []internal.AppliedSubstitution
	Overrides      []internal.AppliedSubstitution
	MissingCodes   []string
	Groups         []*BuiltGroup
	Results        []internal.PushResult
	SupplierTotals map[string]decimal.Decimal
}

// Payloads maps each built group key to its order payload.
func (r *BatchReport) Payloads() map[string]any {
	out := map[string]any{}
	for _, g := range r.Groups {
		if p := g.Payload(); p != nil {
			out[string(g.Kind)+" "+g.Key] = p
		}
	}
	return out
}

type ProcessingService struct {
	cfg     config.Config
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

func NewProcessingService(cfg config.Config, backend Backend, logger *slog.Logger) *ProcessingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessingService{cfg: cfg, backend: backend, logger: logger, now: time.Now}
}

// Run executes one batch: substitutions, catalog reconciliation, entity
// resolution, grouping, build and push. Missing catalog codes stop the
// batch before any group is built; the report is still returned.
func (s *ProcessingService) Run(ctx context.Context, in BatchInput) (*BatchReport, error) {
	report := &BatchReport{BatchID: uuid.NewString(), SupplierTotals: map[string]decimal.Decimal{}}
	logger := s.logger.With("batch", report.BatchID)
	normalizer := util.CodeNormalizer{AllowBang: s.cfg.CodeAllowBang}
	decisions := in.Decisions.WithNormalizer(normalizer)

	lines := append([]internal.OrderLine(nil), in.Lines...)
	table := NewSubstitutionTable(in.Substitutions, normalizer)
	report.Candidates = Candidates(lines, table)
	report.Substitutions = ApplySubstitutions(lines, table, decisions)
	logger.Info("substitutions applied", "rules", table.Len(), "candidates", len(report.Candidates), "applied", len(report.Substitutions))

	idx := catalog.BuildIndex(in.Catalog, normalizer)
	if dups := idx.Duplicates(); len(dups) > 0 {
		logger.Warn("duplicate catalog codes, first entry kept", "codes", dups)
	}
	merged, err := catalog.Reconcile(lines, idx, decisions.Overrides)
	report.MissingCodes = merged.MissingCodes
	report.Overrides = merged.Overrides
	if err != nil {
		var missing *catalog.MissingCodesError
		if errors.As(err, &missing) {
			logger.Error("batch halted on missing codes", "codes", missing.Codes)
		}
		return report, err
	}

	branchList, err := s.cfg.Branches()
	if err != nil {
		return report, err
	}
	branches, err := NewBranchTable(branchList, s.cfg.RepBranches)
	if err != nil {
		return report, err
	}
	resolver := NewEntityResolver(s.backend.Contacts, NewUserDirectory(in.Users), branches, logger)
	matcher := NewSupplierMatcher(in.Suppliers, s.cfg.SupplierThreshold)
	boms := NewBOMCache(s.backend.BOMs, normalizer)
	stock := NewStockCache(s.backend.Stock, normalizer, logger)
	assembler := NewAssembler(s.cfg, idx, resolver, branches, matcher, NewExploder(boms, idx), stock, decisions, s.now())
	for _, b := range branchList {
		report.Branches = append(report.Branches, b.Name)
	}

	var groups []Group
	if wantKind(in.Kinds, internal.KindSales) {
		groups = append(groups, GroupSales(lines)...)
	}
	if wantKind(in.Kinds, internal.KindPurchase) {
		var purchasable []internal.OrderLine
		for _, line := range lines {
			if !decisions.SkipsPurchase(line.OrderRef, line.ResolvedItemCode) {
				purchasable = append(purchasable, line)
			}
		}
		branchOf := func(line internal.OrderLine) internal.Branch { return assembler.BranchOf(ctx, line) }
		groups = append(groups, GroupPurchases(purchasable, branchOf, s.cfg.POSplitByOrder)...)
	}

	for _, g := range groups {
		built := NewBuiltGroup(g)
		if err := built.Build(ctx, assembler); err != nil {
			return report, err
		}
		if built.State == internal.StateBuildFailed {
			logger.Warn("group build failed", "group", g.Key, "kind", g.Kind, "err", built.Err)
		}
		if built.Purchase != nil && built.Supplier != nil {
			name := built.Supplier.SupplierName
			report.SupplierTotals[name] = report.SupplierTotals[name].Add(built.Total)
		}
		report.Groups = append(report.Groups, built)
	}

	logger.Info("groups built", "groups", len(report.Groups), "bom_lookups", boms.Lookups(), "stock_lookups", stock.Lookups())

	report.Results = NewPusher(s.backend.Poster, in.DryRun, logger).PushAll(ctx, report.Groups)
	return report, nil
}

// wantKind treats an empty selection as every kind.
func wantKind(kinds []internal.OrderKind, k internal.OrderKind) bool {
	return len(kinds) == 0 || slices.Contains(kinds, k)
}
