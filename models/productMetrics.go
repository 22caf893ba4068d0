package models

import (
	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/shopspring/decimal"
)

// ProcessedProduct is a stored product plus its derived figures. Nothing here is persisted.
type ProcessedProduct struct {
	Product
	Available          decimal.Decimal `json:"available"`
	FinalResolved      decimal.Decimal `json:"final_resolved"`
	Sold               decimal.Decimal `json:"sold"`
	TotalCash          decimal.Decimal `json:"total_cash"`
	SalesPercentage    decimal.Decimal `json:"sales_percentage"`
	NetProceedsPerUnit decimal.Decimal `json:"net_proceeds_per_unit"`
}

// DeriveMetrics computes the per-product figures. Negative available and sold values are
// surfaced as they are so bad data stays visible.
func DeriveMetrics(p Product) ProcessedProduct {
	available := p.Available()
	finalResolved := p.FinalResolved()
	sold := available.Sub(finalResolved)

	salesPercentage := decimal.Zero
	if available.IsPositive() {
		salesPercentage = utils.RoundMoney(sold.Div(available).Mul(hundred()))
	}

	return ProcessedProduct{
		Product:            p,
		Available:          available,
		FinalResolved:      finalResolved,
		Sold:               sold,
		TotalCash:          utils.RoundMoney(sold.Mul(p.Price)),
		SalesPercentage:    salesPercentage,
		NetProceedsPerUnit: p.Price.Sub(p.Cost),
	}
}

func DeriveAll(products []Product) []ProcessedProduct {
	out := make([]ProcessedProduct, 0, len(products))
	for _, p := range products {
		out = append(out, DeriveMetrics(p))
	}
	return out
}

func HasNegativeProfit(p Product) bool {
	return p.HasNegativeProfit()
}
