package models

import (
	"context"
	"errors"

	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/shopspring/decimal"
)

var ErrDuplicateProductName = errors.New("duplicate product name")

// Store is the document store behind the engine: products, the active inventory header and records.
// Every method that changes more than one field does so in a single write.
// Missing entities are reported with utils.ErrorRecordNotFound.
type Store interface {
	AddProduct(ctx context.Context, product *Product) error
	ReplaceProducts(ctx context.Context, products []Product) error
	GetProduct(ctx context.Context, id int) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	UpdateProduct(ctx context.Context, id int, fields ProductFields) (*Product, error)
	AdjustLosses(ctx context.Context, id int, losses decimal.Decimal, final decimal.Decimal) (*Product, error)
	DeleteProducts(ctx context.Context, ids []int) (int, error)
	ClearProducts(ctx context.Context) error

	GetInventory(ctx context.Context) (*Inventory, error)
	PutInventory(ctx context.Context, inventory *Inventory) error
	ClearInventory(ctx context.Context) error

	AddRecord(ctx context.Context, record *Record) error
	ListRecords(ctx context.Context) ([]Record, error)
	GetRecord(ctx context.Context, id int) (*Record, error)
	DeleteRecord(ctx context.Context, id int) error
	DeleteAllRecords(ctx context.Context) (int, error)

	// Transaction runs fn against a transactional view; any error rolls every write back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// applyFields copies the set fields onto p.
func applyFields(p *Product, fields ProductFields) {
	if fields.Code != nil {
		p.Code = *fields.Code
	}
	if fields.Name != nil {
		p.Name = *fields.Name
		p.NormalizedName = utils.NormalizeName(*fields.Name)
	}
	if fields.Unit != nil {
		p.Unit = *fields.Unit
	}
	if fields.Cost != nil {
		p.Cost = *fields.Cost
	}
	if fields.Price != nil {
		p.Price = *fields.Price
	}
	if fields.InitialProducts != nil {
		p.InitialProducts = *fields.InitialProducts
	}
	if fields.IncomingProducts != nil {
		p.IncomingProducts = *fields.IncomingProducts
	}
	if fields.FinalProducts != nil {
		p.FinalProducts = *fields.FinalProducts
	}
}
