package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/shopspring/decimal"
)

// NegativeCorrectionMode is the operator's choice for negative values found before export or import.
type NegativeCorrectionMode string

const (
	CorrectionZero NegativeCorrectionMode = "zero"
	CorrectionAbs  NegativeCorrectionMode = "abs"
)

func (m NegativeCorrectionMode) IsValid() bool {
	return m == CorrectionZero || m == CorrectionAbs
}

type ExportProduct struct {
	Id               *int                `json:"id,omitempty"`
	Code             string              `json:"code"`
	Name             string              `json:"name" validate:"required"`
	Unit             string              `json:"unit"`
	Cost             decimal.Decimal     `json:"cost"`
	Price            decimal.Decimal     `json:"price"`
	InitialProducts  decimal.Decimal     `json:"initial_products"`
	IncomingProducts decimal.Decimal     `json:"incoming_products"`
	Losses           decimal.Decimal     `json:"losses"`
	FinalProducts    decimal.NullDecimal `json:"final_products"`
	CreatedAt        *time.Time          `json:"created_at,omitempty"`
	UpdatedAt        *time.Time          `json:"updated_at,omitempty"`
}

// ExportPayload is the wire shape of an inventory backup file.
type ExportPayload struct {
	Id       *int            `json:"id,omitempty"`
	Seller   string          `json:"seller"`
	Time     string          `json:"time"`
	Date     string          `json:"date"`
	Products []ExportProduct `json:"products" validate:"dive"`
}

// PrepareExport flattens inv with every number rounded to two places.
// An empty seller keeps the inventory's own.
func PrepareExport(inv *Inventory, seller string) *ExportPayload {
	if seller == "" {
		seller = inv.Seller
	}
	payload := &ExportPayload{
		Seller:   seller,
		Date:     inv.Date,
		Time:     inv.Time,
		Products: make([]ExportProduct, 0, len(inv.Products)),
	}
	if inv.ID != 0 {
		id := inv.ID
		payload.Id = &id
	}
	for _, p := range inv.Products {
		ep := ExportProduct{
			Code:             p.Code,
			Name:             p.Name,
			Unit:             p.Unit,
			Cost:             utils.NormalizeQuantity(p.Cost),
			Price:            utils.NormalizeQuantity(p.Price),
			InitialProducts:  utils.NormalizeQuantity(p.InitialProducts),
			IncomingProducts: utils.NormalizeQuantity(p.IncomingProducts),
			Losses:           utils.NormalizeQuantity(p.Losses),
			FinalProducts:    utils.NormalizeNullableQuantity(p.FinalProducts),
		}
		if p.ID != 0 {
			id := p.ID
			ep.Id = &id
		}
		if !p.CreatedAt.IsZero() {
			createdAt := p.CreatedAt
			ep.CreatedAt = &createdAt
		}
		if !p.UpdatedAt.IsZero() {
			updatedAt := p.UpdatedAt
			ep.UpdatedAt = &updatedAt
		}
		payload.Products = append(payload.Products, ep)
	}
	return payload
}

// ExportActiveInventory loads the live cycle and prepares its payload.
func ExportActiveInventory(ctx context.Context, store Store, seller string) (*ExportPayload, error) {
	inventory, err := GetInventory(ctx, store)
	if err != nil {
		return nil, err
	}
	return PrepareExport(inventory, seller), nil
}

type numericField struct {
	name  string
	value *decimal.Decimal
}

func (p *ExportProduct) numericFields() []numericField {
	fields := []numericField{
		{"cost", &p.Cost},
		{"price", &p.Price},
		{"initial_products", &p.InitialProducts},
		{"incoming_products", &p.IncomingProducts},
		{"losses", &p.Losses},
	}
	if p.FinalProducts.Valid {
		fields = append(fields, numericField{"final_products", &p.FinalProducts.Decimal})
	}
	return fields
}

// DetectNegativeValues lists every negative number in payload. A null final count is skipped.
func DetectNegativeValues(payload *ExportPayload) []NegativeValueError {
	found := []NegativeValueError{}
	for i := range payload.Products {
		p := &payload.Products[i]
		for _, f := range p.numericFields() {
			if f.value.IsNegative() {
				found = append(found, NegativeValueError{
					ProductCode:   p.Code,
					Field:         f.name,
					OriginalValue: *f.value,
					AbsoluteValue: f.value.Abs(),
				})
			}
		}
	}
	return found
}

// CorrectNegativeValues returns a copy of payload with every negative replaced
// by zero or by its absolute value.
func CorrectNegativeValues(payload *ExportPayload, mode NegativeCorrectionMode) (*ExportPayload, error) {
	if !mode.IsValid() {
		return nil, newValidationError("mode", RuleInvalidMode, "correction mode must be %q or %q", CorrectionZero, CorrectionAbs)
	}
	out := *payload
	out.Products = make([]ExportProduct, len(payload.Products))
	copy(out.Products, payload.Products)
	for i := range out.Products {
		for _, f := range out.Products[i].numericFields() {
			if !f.value.IsNegative() {
				continue
			}
			if mode == CorrectionZero {
				*f.value = decimal.Zero
			} else {
				*f.value = f.value.Abs()
			}
		}
	}
	return &out, nil
}

// CheckExportable refuses a payload that still carries negative numbers.
func CheckExportable(payload *ExportPayload) error {
	if negatives := DetectNegativeValues(payload); len(negatives) > 0 {
		return &NegativeValuesError{Values: negatives}
	}
	return nil
}

// ExportSink receives a serialized export. It reports only whether the hand-off succeeded.
type ExportSink interface {
	Deliver(ctx context.Context, data []byte) error
}
