package models

import (
	"github.com/shopspring/decimal"
)

type InventoryMetrics struct {
	TotalSold                  decimal.Decimal    `json:"total_sold"`
	TotalWithSales             int                `json:"total_with_sales"`
	TotalLosses                decimal.Decimal    `json:"total_losses"`
	TotalOutOfStock            int                `json:"total_out_of_stock"`
	TotalWithEntries           int                `json:"total_with_entries"`
	TotalMonetaryLost          decimal.Decimal    `json:"total_monetary_lost"`
	TotalTheoricProceeds       decimal.Decimal    `json:"total_theoric_proceeds"`
	TotalNetProceeds           decimal.Decimal    `json:"total_net_proceeds"`
	TotalCash                  decimal.Decimal    `json:"total_cash"`
	TotalInvestment            decimal.Decimal    `json:"total_investment"`
	GainRealizationPercent     decimal.Decimal    `json:"gain_realization_percent"`
	ProductsWithSales          []ProcessedProduct `json:"products_with_sales"`
	ProductsWithLosses         []ProcessedProduct `json:"products_with_losses"`
	ProductsOutOfStock         []ProcessedProduct `json:"products_out_of_stock"`
	ProductsWithEntries        []ProcessedProduct `json:"products_with_entries"`
	ProductsWithNegativeProfit []ProcessedProduct `json:"products_with_negative_profit"`
	ProductsLowStock           []ProcessedProduct `json:"products_low_stock"`
}

// AggregateMetrics folds processed products into inventory-level totals and drill-down buckets.
func AggregateMetrics(products []ProcessedProduct) InventoryMetrics {
	m := InventoryMetrics{
		ProductsWithSales:          []ProcessedProduct{},
		ProductsWithLosses:         []ProcessedProduct{},
		ProductsOutOfStock:         []ProcessedProduct{},
		ProductsWithEntries:        []ProcessedProduct{},
		ProductsWithNegativeProfit: []ProcessedProduct{},
	}

	for _, p := range products {
		m.TotalSold = m.TotalSold.Add(p.Sold)
		if p.Sold.IsPositive() {
			m.TotalWithSales++
			m.ProductsWithSales = append(m.ProductsWithSales, p)
		}

		m.TotalLosses = m.TotalLosses.Add(p.Losses)
		if p.Losses.IsPositive() {
			m.ProductsWithLosses = append(m.ProductsWithLosses, p)
		}

		// exactly zero; a negative count is a data error, not "out of stock"
		if p.FinalResolved.IsZero() {
			m.TotalOutOfStock++
			m.ProductsOutOfStock = append(m.ProductsOutOfStock, p)
		}

		if p.IncomingProducts.IsPositive() {
			m.TotalWithEntries++
			m.ProductsWithEntries = append(m.ProductsWithEntries, p)
		}

		lossCost := p.Losses.Mul(p.Cost)
		m.TotalMonetaryLost = m.TotalMonetaryLost.Add(lossCost)
		m.TotalTheoricProceeds = m.TotalTheoricProceeds.Add(p.NetProceedsPerUnit.Mul(p.Available))
		m.TotalNetProceeds = m.TotalNetProceeds.Add(p.NetProceedsPerUnit.Mul(p.Sold).Sub(lossCost))
		m.TotalCash = m.TotalCash.Add(p.TotalCash)
		m.TotalInvestment = m.TotalInvestment.Add(p.FinalResolved.Mul(p.Cost))

		if p.Product.HasNegativeProfit() {
			m.ProductsWithNegativeProfit = append(m.ProductsWithNegativeProfit, p)
		}
	}

	m.ProductsLowStock = filterLowStock(products)

	if !m.TotalTheoricProceeds.IsZero() {
		m.GainRealizationPercent = m.TotalNetProceeds.Div(m.TotalTheoricProceeds).Mul(hundred()).Round(2)
	}
	return m
}

func filterLowStock(products []ProcessedProduct) []ProcessedProduct {
	low := []ProcessedProduct{}
	for _, p := range products {
		if p.FinalResolved.IsPositive() && p.FinalResolved.LessThanOrEqual(LowStockThreshold) {
			low = append(low, p)
		}
	}
	return low
}
