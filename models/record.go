package models

import (
	"context"
	"time"
)

// Record is the frozen snapshot of a closed cycle. Records are never edited.
type Record struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Seller    string    `gorm:"size:255" json:"seller"`
	Date      string    `gorm:"size:20;index" json:"date"`
	Time      string    `gorm:"size:20" json:"time"`
	Products  []Product `gorm:"serializer:json;type:json" json:"products"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type RecordSummary struct {
	ID       int                `json:"id"`
	Seller   string             `json:"seller"`
	Date     string             `json:"date"`
	Time     string             `json:"time"`
	Products []ProcessedProduct `json:"products"`
	Metrics  InventoryMetrics   `json:"metrics"`
}

// ListRecords returns records newest first.
func ListRecords(ctx context.Context, store Store) ([]Record, error) {
	return store.ListRecords(ctx)
}

func GetRecord(ctx context.Context, store Store, id int) (*Record, error) {
	record, err := store.GetRecord(ctx, id)
	if err != nil {
		return nil, asIntegrityError(err, "record", id)
	}
	return record, nil
}

func GetRecordSummary(ctx context.Context, store Store, id int) (*RecordSummary, error) {
	record, err := GetRecord(ctx, store, id)
	if err != nil {
		return nil, err
	}
	return SummarizeRecord(record), nil
}

// SummarizeRecord computes the metrics of a closed cycle from its frozen products.
func SummarizeRecord(record *Record) *RecordSummary {
	s := summarize(record.Seller, record.Date, record.Time, record.Products)
	return &RecordSummary{
		ID:       record.ID,
		Seller:   s.Seller,
		Date:     s.Date,
		Time:     s.Time,
		Products: s.Products,
		Metrics:  s.Metrics,
	}
}

func DeleteRecord(ctx context.Context, store Store, id int) error {
	if err := store.DeleteRecord(ctx, id); err != nil {
		return asIntegrityError(err, "record", id)
	}
	return nil
}

func DeleteAllRecords(ctx context.Context, store Store) (int, error) {
	return store.DeleteAllRecords(ctx)
}

// cloneProducts deep-copies products so a record never aliases live rows.
func cloneProducts(products []Product) []Product {
	out := make([]Product, len(products))
	copy(out, products)
	return out
}
