package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/stockcycle_backend/utils"
)

// Inventory is the single live cycle. Products live in their own table and are
// attached on read.
type Inventory struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Seller    string    `gorm:"size:255" json:"seller"`
	Date      string    `gorm:"size:20" json:"date"`
	Time      string    `gorm:"size:20" json:"time"`
	Products  []Product `gorm:"-" json:"products"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// InventorySummary is the read model of the live cycle: header, processed products and totals.
type InventorySummary struct {
	Seller   string             `json:"seller"`
	Date     string             `json:"date"`
	Time     string             `json:"time"`
	Products []ProcessedProduct `json:"products"`
	Metrics  InventoryMetrics   `json:"metrics"`
}

// GetInventory returns the active inventory with its products, or ErrNoActiveInventory.
func GetInventory(ctx context.Context, store Store) (*Inventory, error) {
	inventory, err := store.GetInventory(ctx)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, ErrNoActiveInventory
		}
		return nil, err
	}
	products, err := store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	inventory.Products = products
	return inventory, nil
}

func GetInventorySummary(ctx context.Context, store Store) (*InventorySummary, error) {
	inventory, err := GetInventory(ctx, store)
	if err != nil {
		return nil, err
	}
	return summarize(inventory.Seller, inventory.Date, inventory.Time, inventory.Products), nil
}

func summarize(seller, date, clock string, products []Product) *InventorySummary {
	processed := DeriveAll(products)
	return &InventorySummary{
		Seller:   seller,
		Date:     date,
		Time:     clock,
		Products: processed,
		Metrics:  AggregateMetrics(processed),
	}
}

// touchInventory stamps the header with the current date and time, creating it on first use.
func touchInventory(ctx context.Context, tx Store) error {
	now := utils.NowFromContext(ctx)
	inventory, err := tx.GetInventory(ctx)
	if err != nil {
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			return err
		}
		seller, _ := utils.GetUserNameFromContext(ctx)
		inventory = &Inventory{ID: ActiveInventoryId, Seller: seller}
	}
	inventory.Date = utils.FormatCycleDate(now)
	inventory.Time = utils.FormatCycleTime(now)
	return tx.PutInventory(ctx, inventory)
}

// SetInventorySeller changes who the live cycle is attributed to.
func SetInventorySeller(ctx context.Context, store Store, seller string) (*Inventory, error) {
	if seller == "" {
		return nil, newValidationError("seller", RuleRequired, "seller is required")
	}
	var updated *Inventory
	err := store.Transaction(ctx, func(tx Store) error {
		inventory, err := tx.GetInventory(ctx)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return ErrNoActiveInventory
			}
			return err
		}
		inventory.Seller = seller
		if err := tx.PutInventory(ctx, inventory); err != nil {
			return err
		}
		updated = inventory
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
