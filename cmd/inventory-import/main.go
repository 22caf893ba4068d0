package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/stockcycle_backend/config"
	"github.com/mmdatafocus/stockcycle_backend/models"
	"github.com/mmdatafocus/stockcycle_backend/utils"
)

func main() {
	file := flag.String("file", "", "Required: path of the inventory JSON backup")
	mode := flag.String("fix-negatives", "", "Correct negative values: zero|abs (default: refuse)")
	dryRun := flag.Bool("dry-run", true, "Validate and preview only (no writes)")
	confirm := flag.String("confirm", "", "Type IMPORT to replace the active inventory when dry-run=false")
	flag.Parse()

	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		os.Exit(1)
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read file: %v\n", err)
		os.Exit(1)
	}

	plan, err := models.PrepareImport(string(raw), models.NegativeCorrectionMode(*mode))
	if err != nil {
		printImportError(err)
		os.Exit(1)
	}
	fmt.Printf("seller: %s\ndate: %s %s\nproducts: %d\n", plan.Preview.Seller, plan.Preview.Date, plan.Preview.Time, plan.Preview.ProductCount)
	if plan.Repaired {
		fmt.Println("note: file needed repair before parsing")
	}
	for _, name := range plan.Preview.Skipped {
		fmt.Printf("skipped duplicate: %s\n", name)
	}
	for _, v := range plan.Corrected {
		fmt.Printf("corrected %s.%s: %s -> mode %s\n", v.ProductCode, v.Field, v.OriginalValue.String(), *mode)
	}

	if *dryRun {
		return
	}
	if strings.TrimSpace(*confirm) != "IMPORT" {
		fmt.Fprintln(os.Stderr, "set --confirm=IMPORT to replace the active inventory")
		os.Exit(1)
	}

	logger := config.GetLogger()
	store, err := models.OpenStoreFromEnv(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()

	var inventory *models.Inventory
	err = utils.WithInventoryLock(ctx, "inventory:active", "inventory-import", "main", func() error {
		var err error
		inventory, err = models.CommitImport(ctx, store, plan)
		return err
	})
	if err != nil {
		config.LogError(logger, "inventory-import", "main", "CommitImport", *file, err)
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("import completed: %d products\n", len(inventory.Products))
}

func printImportError(err error) {
	var schemaErr *models.SchemaError
	var negativeErr *models.NegativeValuesError
	switch {
	case errors.As(err, &schemaErr):
		fmt.Fprintln(os.Stderr, "invalid inventory file:")
		for _, v := range schemaErr.Violations {
			fmt.Fprintf(os.Stderr, "  %s (%s): %s\n", v.Field, v.Rule, v.Message)
		}
	case errors.As(err, &negativeErr):
		fmt.Fprintln(os.Stderr, "negative values found; rerun with --fix-negatives=zero or --fix-negatives=abs:")
		for _, v := range negativeErr.Values {
			fmt.Fprintf(os.Stderr, "  %s.%s = %s\n", v.ProductCode, v.Field, v.OriginalValue.String())
		}
	default:
		fmt.Fprintf(os.Stderr, "%s: %v\n", models.KindOf(err), err)
	}
}
