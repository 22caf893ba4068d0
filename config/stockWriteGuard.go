package config

import (
	"errors"

	"gorm.io/gorm"
)

var ErrPartialStockWrite = errors.New("losses must be written together with final_products")

// StockWriteGuardPlugin rejects product updates that change `losses` without
// `final_products` when issued through a column map.
// A loss adjustment must move both columns in one statement so readers never see
// new losses next to a stale final count.
//
// NOTE:
// - Struct-based Save/Updates are not inspected; the store only uses column maps for partial writes.
// - Raw SQL is not inspected.
type StockWriteGuardPlugin struct{}

func NewStockWriteGuardPlugin() *StockWriteGuardPlugin { return &StockWriteGuardPlugin{} }

func (p *StockWriteGuardPlugin) Name() string { return "stock_write_guard" }

func (p *StockWriteGuardPlugin) Initialize(db *gorm.DB) error {
	return db.Callback().Update().Before("gorm:update").Register("stock_write_guard:update", stockWriteGuardCallback)
}

func stockWriteGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil {
		return
	}
	if db.Statement.Schema.Table != "products" {
		return
	}
	cols, ok := db.Statement.Dest.(map[string]interface{})
	if !ok {
		return
	}
	if err := CheckStockColumns(cols); err != nil {
		_ = db.AddError(err)
	}
}

// CheckStockColumns reports ErrPartialStockWrite when losses are written without the final count.
// A final count on its own is a plain stock-count entry and passes.
func CheckStockColumns(cols map[string]interface{}) error {
	_, hasLosses := cols["losses"]
	_, hasFinal := cols["final_products"]
	if hasLosses && !hasFinal {
		return ErrPartialStockWrite
	}
	return nil
}
