package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/shopspring/decimal"
)

// RolloverPlan is what closing the current cycle would do, computed without touching storage.
type RolloverPlan struct {
	Record  Record    `json:"record"`
	Carried []Product `json:"carried"`
	Dropped []Product `json:"dropped"`
}

// PlanRollover snapshots inv into a record and computes the next cycle's products.
// A product moves on when it was never counted or still has stock; its ending count
// becomes the next opening count.
func PlanRollover(inv *Inventory, seller string, now time.Time) *RolloverPlan {
	plan := &RolloverPlan{
		Record: Record{
			Seller:   seller,
			Date:     utils.FormatCycleDate(now),
			Time:     utils.FormatCycleTime(now),
			Products: cloneProducts(inv.Products),
		},
		Carried: []Product{},
		Dropped: []Product{},
	}
	for _, p := range inv.Products {
		if p.FinalProducts.Valid && !p.FinalResolved().IsPositive() {
			plan.Dropped = append(plan.Dropped, p)
			continue
		}
		next := p
		next.InitialProducts = p.FinalResolved()
		next.IncomingProducts = decimal.Zero
		next.Losses = decimal.Zero
		next.FinalProducts = decimal.NullDecimal{}
		plan.Carried = append(plan.Carried, next)
	}
	return plan
}

// RolloverInventory closes the active cycle into a record and opens the next one.
// Everything happens in one store transaction.
func RolloverInventory(ctx context.Context, store Store, seller string, now time.Time) (*Record, error) {
	seller = strings.TrimSpace(seller)
	if seller == "" {
		seller, _ = utils.GetUserNameFromContext(ctx)
	}
	if seller == "" {
		return nil, newValidationError("seller", RuleRequired, "seller is required")
	}
	if now.IsZero() {
		now = utils.NowFromContext(ctx)
	}

	var record *Record
	err := store.Transaction(ctx, func(tx Store) error {
		inventory, err := GetInventory(ctx, tx)
		if err != nil {
			return err
		}
		plan := PlanRollover(inventory, seller, now)

		record = &plan.Record
		if err := tx.AddRecord(ctx, record); err != nil {
			return err
		}
		if err := tx.ReplaceProducts(ctx, plan.Carried); err != nil {
			if errors.Is(err, ErrDuplicateProductName) {
				return &ValidationError{Field: "products", Rule: RuleDuplicate, Message: "duplicate product names in the active inventory"}
			}
			return err
		}
		return tx.PutInventory(ctx, &Inventory{
			ID:     ActiveInventoryId,
			Seller: seller,
			Date:   plan.Record.Date,
			Time:   plan.Record.Time,
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
