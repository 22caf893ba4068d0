package models_test

import (
	"testing"

	"github.com/mmdatafocus/stockcycle_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricsFixture() []models.ProcessedProduct {
	return models.DeriveAll([]models.Product{
		// sold 2, no losses, 38 left
		{ID: 1, Name: "Rice", Cost: dec("10"), Price: dec("15"), InitialProducts: dec("28"), IncomingProducts: dec("12"), FinalProducts: nullDec("38")},
		// sold out with a loss
		{ID: 2, Name: "Beans", Cost: dec("4"), Price: dec("6"), InitialProducts: dec("10"), Losses: dec("1"), FinalProducts: nullDec("0")},
		// never counted, low stock, sells below cost
		{ID: 3, Name: "Salt", Cost: dec("3"), Price: dec("2"), InitialProducts: dec("5")},
		// bad data: negative final
		{ID: 4, Name: "Oil", Cost: dec("1"), Price: dec("2"), InitialProducts: dec("2"), FinalProducts: nullDec("-1")},
	})
}

func ids(products []models.ProcessedProduct) []int {
	out := make([]int, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestAggregateMetricsTotals(t *testing.T) {
	m := models.AggregateMetrics(metricsFixture())

	// sold: 2 + 9 + 0 + 3
	assertDecimal(t, "14", m.TotalSold)
	assert.Equal(t, 3, m.TotalWithSales)
	assertDecimal(t, "1", m.TotalLosses)
	assert.Equal(t, 1, m.TotalOutOfStock)
	assert.Equal(t, 1, m.TotalWithEntries)
	assertDecimal(t, "4", m.TotalMonetaryLost)
	// theoric: 5*40 + 2*9 + (-1)*5 + 1*2
	assertDecimal(t, "215", m.TotalTheoricProceeds)
	// net: (5*2 - 0) + (2*9 - 4) + 0 + 1*3
	assertDecimal(t, "27", m.TotalNetProceeds)
	// cash: 2*15 + 9*6 + 0 + 3*2
	assertDecimal(t, "90", m.TotalCash)
	// investment: 38*10 + 0 + 5*3 + (-1)*1
	assertDecimal(t, "394", m.TotalInvestment)
	assertDecimal(t, "12.56", m.GainRealizationPercent)
}

func TestAggregateMetricsBuckets(t *testing.T) {
	m := models.AggregateMetrics(metricsFixture())

	assert.Equal(t, []int{1, 2, 4}, ids(m.ProductsWithSales))
	assert.Equal(t, []int{2}, ids(m.ProductsWithLosses))
	assert.Equal(t, []int{2}, ids(m.ProductsOutOfStock))
	assert.Equal(t, []int{1}, ids(m.ProductsWithEntries))
	assert.Equal(t, []int{3}, ids(m.ProductsWithNegativeProfit))
	// sold out and negative counts are not "low"
	assert.Equal(t, []int{3}, ids(m.ProductsLowStock))
}

func TestAggregateMetricsEmpty(t *testing.T) {
	m := models.AggregateMetrics(nil)
	assert.True(t, m.TotalSold.IsZero())
	assert.True(t, m.GainRealizationPercent.IsZero())
	require.NotNil(t, m.ProductsWithSales)
	require.NotNil(t, m.ProductsLowStock)
	assert.Empty(t, m.ProductsOutOfStock)
}

func TestLowStockBoundary(t *testing.T) {
	m := models.AggregateMetrics(models.DeriveAll([]models.Product{
		{ID: 1, InitialProducts: dec("5")},
		{ID: 2, InitialProducts: dec("5.01")},
		{ID: 3, InitialProducts: dec("0.5")},
	}))
	assert.Equal(t, []int{1, 3}, ids(m.ProductsLowStock))
}

func TestAggregateCashMatchesProductRows(t *testing.T) {
	// each row earns 0.025, shown as 0.03
	products := models.DeriveAll([]models.Product{
		{ID: 1, Name: "Gum", Cost: dec("0.01"), Price: dec("0.05"), InitialProducts: dec("1"), FinalProducts: nullDec("0.5")},
		{ID: 2, Name: "Mint", Cost: dec("0.01"), Price: dec("0.05"), InitialProducts: dec("1"), FinalProducts: nullDec("0.5")},
	})
	assertDecimal(t, "0.03", products[0].TotalCash)

	m := models.AggregateMetrics(products)
	assertDecimal(t, "0.06", m.TotalCash)
}
