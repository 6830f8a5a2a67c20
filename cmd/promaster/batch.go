package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"promaster/internal"
	"promaster/internal/catalog"
	"promaster/internal/cin7"
	"promaster/internal/config"
	"promaster/internal/importer"
	"promaster/internal/pipeline"
	"promaster/internal/refdata"
	"promaster/internal/storage"
)

type batchFlags struct {
	inputs    []string
	subs      string
	decisions string
	only      string
}

func (f *batchFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.inputs, "input", nil, "ProMaster shipment export (repeatable)")
	cmd.Flags().StringVar(&f.subs, "subs", "", "Substitutes workbook; defaults to SUBS_SHEET_ID or SUBS_SHEET_URL")
	cmd.Flags().StringVar(&f.decisions, "decisions", "", "Operator decisions YAML")
	_ = cmd.MarkFlagRequired("input")
}

func planCommand() *cobra.Command {
	var flags batchFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build every order and write the report without posting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), flags, true)
		},
	}
	flags.bind(cmd)
	return cmd
}

func pushCommand() *cobra.Command {
	var flags batchFlags
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Build and post every order, then write the results report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), flags, false)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&flags.only, "only", "all", "so|po|all")
	return cmd
}

func kinds(only string) ([]internal.OrderKind, error) {
	switch strings.ToLower(strings.TrimSpace(only)) {
	case "", "all":
		return nil, nil
	case "so":
		return []internal.OrderKind{internal.KindSales}, nil
	case "po":
		return []internal.OrderKind{internal.KindPurchase}, nil
	default:
		return nil, fmt.Errorf("--only must be so, po or all, got %q", only)
	}
}

func runBatch(ctx context.Context, flags batchFlags, dryRun bool) error {
	selected, err := kinds(flags.only)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg)

	var lines []internal.OrderLine
	for _, path := range flags.inputs {
		read, err := importer.ReadFile(path)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		lines = append(lines, read...)
	}
	if len(lines) == 0 {
		return errors.New("no order lines in the input files")
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	client := cin7.NewClient(cfg, logger)
	in, err := loadBatchInput(ctx, cfg, db, client, flags, logger)
	if err != nil {
		return err
	}
	in.Lines = lines
	in.Kinds = selected
	in.DryRun = dryRun

	backend := pipeline.Backend{
		Contacts: client,
		BOMs:     cin7.BOMLookup{Client: client},
		Stock:    cin7.StockLookup{Client: client},
		Poster:   client,
	}
	report, runErr := pipeline.NewProcessingService(cfg, backend, logger).Run(ctx, in)
	if report == nil {
		return runErr
	}

	mode := "push"
	if dryRun {
		mode = "plan"
	}
	xlsxPath := filepath.Join(cfg.OutputDir, report.BatchID+"-"+mode+".xlsx")
	if err := pipeline.ExportReportXLSX(report, xlsxPath); err != nil {
		return err
	}
	jsonPath := filepath.Join(cfg.OutputDir, report.BatchID+"-payloads.json")
	if err := pipeline.WritePayloadDump(report, jsonPath); err != nil {
		return err
	}

	printSummary(mode, report, xlsxPath, jsonPath)
	return runErr
}

func loadBatchInput(ctx context.Context, cfg config.Config, db *storage.DB, client *cin7.Client, flags batchFlags, logger *slog.Logger) (pipeline.BatchInput, error) {
	var in pipeline.BatchInput
	var err error

	if in.Catalog, err = catalog.LoadEntries(ctx, cfg.CatalogCSVPath, db); err != nil {
		return in, err
	}
	if in.Substitutions, err = refdata.LoadSubstitutions(ctx, cfg, flags.subs); err != nil {
		return in, err
	}
	if in.Decisions, err = pipeline.LoadDecisions(flags.decisions); err != nil {
		return in, err
	}

	if in.Suppliers, err = catalog.SuppliersFromStorage(ctx, db); err != nil {
		return in, err
	}
	if len(in.Suppliers) == 0 {
		logger.Info("supplier cache empty, listing suppliers from cin7")
		contacts, err := client.ListSuppliers(ctx)
		if err != nil {
			return in, err
		}
		for _, c := range contacts {
			in.Suppliers = append(in.Suppliers, internal.Supplier{ID: c.ID, Name: c.DisplayName(), JobTitle: c.JobTitle})
		}
	}

	if in.Users, err = client.ListUsers(ctx); err != nil {
		return in, err
	}
	return in, nil
}

func printSummary(mode string, report *pipeline.BatchReport, xlsxPath, jsonPath string) {
	for _, c := range report.Candidates {
		fmt.Printf("substitution available order=%s code=%s substitute=%s\n", c.OrderRef, c.Code, c.Substitute)
	}
	if len(report.MissingCodes) > 0 {
		fmt.Printf("missing from catalog: %s\n", strings.Join(report.MissingCodes, ", "))
	}

	counts := map[internal.GroupState]int{}
	for _, r := range report.Results {
		counts[r.State]++
		if r.Error != "" {
			fmt.Printf("  %s %s %s: %s\n", r.Kind, r.GroupKey, r.State, r.Error)
		}
	}
	fmt.Printf("%s done batch=%s groups=%d built=%d succeeded=%d failed=%d build_failed=%d\n",
		mode, report.BatchID, len(report.Results),
		counts[internal.StateBuilt], counts[internal.StateSucceeded], counts[internal.StateFailed], counts[internal.StateBuildFailed])
	fmt.Printf("report=%s payloads=%s\n", xlsxPath, jsonPath)
}
