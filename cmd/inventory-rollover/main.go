package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/stockcycle_backend/config"
	"github.com/mmdatafocus/stockcycle_backend/models"
	"github.com/mmdatafocus/stockcycle_backend/utils"
)

func main() {
	seller := flag.String("seller", "", "Required: seller the closed cycle is attributed to")
	dryRun := flag.Bool("dry-run", true, "Show what would be carried and dropped (no writes)")
	confirm := flag.String("confirm", "", "Type ROLLOVER to proceed when dry-run=false")
	flag.Parse()

	if strings.TrimSpace(*seller) == "" {
		fmt.Fprintln(os.Stderr, "--seller is required")
		os.Exit(1)
	}
	if !*dryRun && strings.TrimSpace(*confirm) != "ROLLOVER" {
		fmt.Fprintln(os.Stderr, "set --confirm=ROLLOVER to proceed")
		os.Exit(1)
	}

	logger := config.GetLogger()
	store, err := models.OpenStoreFromEnv(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}

	ctx := utils.SetUserNameInContext(context.Background(), *seller)
	now := time.Now()

	if *dryRun {
		inventory, err := models.GetInventory(ctx, store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		printPlan(models.PlanRollover(inventory, *seller, now))
		return
	}

	var record *models.Record
	err = utils.WithInventoryLock(ctx, "inventory:active", "inventory-rollover", "main", func() error {
		var err error
		record, err = models.RolloverInventory(ctx, store, *seller, now)
		return err
	})
	if err != nil {
		config.LogError(logger, "inventory-rollover", "main", "RolloverInventory", *seller, err)
		fmt.Fprintf(os.Stderr, "rollover failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("rollover completed: record %d (%s %s, %d products)\n", record.ID, record.Date, record.Time, len(record.Products))
}

func printPlan(plan *models.RolloverPlan) {
	fmt.Printf("record: seller=%s date=%s time=%s products=%d\n", plan.Record.Seller, plan.Record.Date, plan.Record.Time, len(plan.Record.Products))
	fmt.Printf("carried: %d\n", len(plan.Carried))
	for _, p := range plan.Carried {
		fmt.Printf("  %s\t%s\topening=%s\n", p.Code, p.Name, p.InitialProducts.StringFixed(2))
	}
	fmt.Printf("dropped: %d\n", len(plan.Dropped))
	for _, p := range plan.Dropped {
		fmt.Printf("  %s\t%s\n", p.Code, p.Name)
	}
	metrics := models.AggregateMetrics(models.DeriveAll(plan.Record.Products))
	fmt.Printf("closing value: cash=%s losses=%s realization=%s%%\n",
		metrics.TotalCash.StringFixed(2), metrics.TotalLosses.StringFixed(2), metrics.GainRealizationPercent.StringFixed(2))
}
