package models

import (
	"bytes"
	"context"

	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	xlsxProductsSheet = "Products"
	xlsxSummarySheet  = "Summary"
	XlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var xlsxProductHeadings = []string{
	"Code", "Name", "Unit", "Cost", "Price", "Initial", "Incoming", "Losses",
	"Final", "Available", "Sold", "Sales %", "Total Cash", "Net / Unit",
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return utils.RoundFloat2(f)
}

// BuildCycleWorkbook writes one cycle (live or closed) as an xlsx report.
func BuildCycleWorkbook(seller, date, clock string, products []ProcessedProduct, metrics InventoryMetrics) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", xlsxProductsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(xlsxSummarySheet); err != nil {
		return nil, err
	}

	for i, h := range xlsxProductHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(xlsxProductsSheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, p := range products {
		final := any("")
		if p.FinalProducts.Valid {
			final = money(p.FinalProducts.Decimal)
		}
		row := []any{
			p.Code, p.Name, p.Unit,
			money(p.Cost), money(p.Price),
			money(p.InitialProducts), money(p.IncomingProducts), money(p.Losses),
			final, money(p.Available), money(p.Sold), money(p.SalesPercentage),
			money(p.TotalCash), money(p.NetProceedsPerUnit),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(xlsxProductsSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	summary := [][]any{
		{"Seller", seller},
		{"Date", date},
		{"Time", clock},
		{"Products", len(products)},
		{"Total sold", money(metrics.TotalSold)},
		{"Products with sales", metrics.TotalWithSales},
		{"Total losses", money(metrics.TotalLosses)},
		{"Out of stock", metrics.TotalOutOfStock},
		{"Low stock", len(metrics.ProductsLowStock)},
		{"With entries", metrics.TotalWithEntries},
		{"Monetary lost", money(metrics.TotalMonetaryLost)},
		{"Theoretical proceeds", money(metrics.TotalTheoricProceeds)},
		{"Net proceeds", money(metrics.TotalNetProceeds)},
		{"Cash", money(metrics.TotalCash)},
		{"Investment", money(metrics.TotalInvestment)},
		{"Gain realization %", money(metrics.GainRealizationPercent)},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(xlsxSummarySheet, cell, &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func workbookBytes(f *excelize.File) ([]byte, error) {
	defer f.Close()
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportRecordXlsx renders a closed cycle.
func ExportRecordXlsx(ctx context.Context, store Store, id int) ([]byte, error) {
	summary, err := GetRecordSummary(ctx, store, id)
	if err != nil {
		return nil, err
	}
	f, err := BuildCycleWorkbook(summary.Seller, summary.Date, summary.Time, summary.Products, summary.Metrics)
	if err != nil {
		return nil, err
	}
	return workbookBytes(f)
}

// ExportInventoryXlsx renders the live cycle.
func ExportInventoryXlsx(ctx context.Context, store Store) ([]byte, error) {
	summary, err := GetInventorySummary(ctx, store)
	if err != nil {
		return nil, err
	}
	f, err := BuildCycleWorkbook(summary.Seller, summary.Date, summary.Time, summary.Products, summary.Metrics)
	if err != nil {
		return nil, err
	}
	return workbookBytes(f)
}
