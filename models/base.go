package models

import (
	"github.com/shopspring/decimal"
)

func init() {
	// quantities travel as JSON numbers, the shape the import/export file uses
	decimal.MarshalJSONWithoutQuotes = true
}

// ActiveInventoryId is the fixed key of the single live inventory cycle.
const ActiveInventoryId = 1

// LowStockThreshold is the inclusive upper bound of the low-stock bucket.
var LowStockThreshold = decimal.NewFromInt(5)

func hundred() decimal.Decimal {
	return decimal.NewFromInt(100)
}
