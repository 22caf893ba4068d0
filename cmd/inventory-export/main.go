package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/stockcycle_backend/config"
	"github.com/mmdatafocus/stockcycle_backend/models"
	"github.com/mmdatafocus/stockcycle_backend/workflow"
)

func main() {
	seller := flag.String("seller", "", "Seller written into the export (default: inventory seller)")
	mode := flag.String("fix-negatives", "", "Correct negative values: zero|abs (default: refuse)")
	out := flag.String("out", "", "Write to this file instead of the EXPORT_SINK transport")
	xlsx := flag.String("xlsx", "", "Also write an xlsx report of the active inventory to this path")
	flag.Parse()

	logger := config.GetLogger()
	store, err := models.OpenStoreFromEnv(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}

	var sink models.ExportSink
	if *out != "" {
		sink = &workflow.FileSink{Path: *out}
	} else {
		sink, err = workflow.NewExportSinkFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "export sink: %v\n", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	result, err := workflow.ExportInventory(ctx, logger, store, sink, *seller, models.NegativeCorrectionMode(*mode), config.GetExportRetryConfig())
	if err != nil {
		var negativeErr *models.NegativeValuesError
		if errors.As(err, &negativeErr) {
			fmt.Fprintln(os.Stderr, "negative values found; rerun with --fix-negatives=zero or --fix-negatives=abs:")
			for _, v := range negativeErr.Values {
				fmt.Fprintf(os.Stderr, "  %s.%s = %s\n", v.ProductCode, v.Field, v.OriginalValue.String())
			}
		} else {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		}
		os.Exit(1)
	}
	fmt.Printf("exported %d products (%d bytes) in %d attempt(s)\n", result.ProductCount, result.Bytes, result.Attempts)

	if *xlsx != "" {
		data, err := models.ExportInventoryXlsx(ctx, store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "xlsx report: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsx, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "xlsx report: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("xlsx report written to %s\n", *xlsx)
	}
}
