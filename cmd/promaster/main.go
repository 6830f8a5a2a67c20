package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"promaster/internal/catalog"
	"promaster/internal/cin7"
	"promaster/internal/config"
	"promaster/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:           "promaster",
		Short:         "Reconcile ProMaster shipment exports into Cin7 sales and purchase orders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(catalogCommand(), planCommand(), pushCommand())
	must(root.Execute())
}

func catalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the local product cache",
	}

	var force bool
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Refresh products and suppliers from Cin7 when the cache is stale",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg)

			db, err := storage.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := catalog.NewSyncService(db, cin7.NewClient(cfg, logger), cfg.CatalogCacheMaxAge, logger)
			res, err := svc.Sync(cmd.Context(), force)
			if err != nil {
				return err
			}
			if !res.Refreshed {
				fmt.Printf("catalog cache fresh last_sync=%s\n", res.LastSync.Format("2006-01-02 15:04:05"))
				return nil
			}
			fmt.Printf("catalog sync complete products=%d suppliers=%d\n", res.Products, res.Suppliers)
			return nil
		},
	}
	sync.Flags().BoolVar(&force, "force", false, "Refresh even when the cache is within CATALOG_CACHE_MAX_AGE")
	cmd.AddCommand(sync)
	return cmd
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
