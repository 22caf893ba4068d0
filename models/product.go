package models

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID               int                 `gorm:"primary_key" json:"id"`
	Code             string              `gorm:"size:100" json:"code"`
	Name             string              `gorm:"size:255;not null" json:"name"`
	NormalizedName   string              `gorm:"size:255;uniqueIndex;not null" json:"-"`
	Unit             string              `gorm:"size:50" json:"unit"`
	Cost             decimal.Decimal     `gorm:"type:decimal(20,2);default:0" json:"cost"`
	Price            decimal.Decimal     `gorm:"type:decimal(20,2);default:0" json:"price"`
	InitialProducts  decimal.Decimal     `gorm:"type:decimal(20,2);default:0" json:"initial_products"`
	IncomingProducts decimal.Decimal     `gorm:"type:decimal(20,2);default:0" json:"incoming_products"`
	Losses           decimal.Decimal     `gorm:"type:decimal(20,2);default:0" json:"losses"`
	FinalProducts    decimal.NullDecimal `gorm:"type:decimal(20,2);default:null" json:"final_products"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Code             string              `json:"code"`
	Name             string              `json:"name" validate:"required"`
	Unit             string              `json:"unit"`
	Cost             decimal.Decimal     `json:"cost"`
	Price            decimal.Decimal     `json:"price"`
	InitialProducts  decimal.Decimal     `json:"initial_products"`
	IncomingProducts decimal.Decimal     `json:"incoming_products"`
	Losses           decimal.Decimal     `json:"losses"`
	FinalProducts    decimal.NullDecimal `json:"final_products"`
}

// ProductEdit changes descriptive fields only; stock fields have their own operations.
type ProductEdit struct {
	Code  *string          `json:"code"`
	Name  *string          `json:"name"`
	Unit  *string          `json:"unit"`
	Cost  *decimal.Decimal `json:"cost"`
	Price *decimal.Decimal `json:"price"`
}

// ProductFields is a partial write; nil fields are left untouched.
// Losses are deliberately absent: they only move through Store.AdjustLosses.
type ProductFields struct {
	Code             *string
	Name             *string
	Unit             *string
	Cost             *decimal.Decimal
	Price            *decimal.Decimal
	InitialProducts  *decimal.Decimal
	IncomingProducts *decimal.Decimal
	FinalProducts    *decimal.NullDecimal
}

type BulkCreateResult struct {
	Created []Product `json:"created"`
	Skipped []string  `json:"skipped"`
}

// Available is initial + incoming - losses; it may be negative and is never clamped.
func (p Product) Available() decimal.Decimal {
	return p.InitialProducts.Add(p.IncomingProducts).Sub(p.Losses)
}

// FinalResolved treats a null final count as "nothing sold yet".
func (p Product) FinalResolved() decimal.Decimal {
	if p.FinalProducts.Valid {
		return p.FinalProducts.Decimal
	}
	return p.Available()
}

func (p Product) Sold() decimal.Decimal {
	return p.Available().Sub(p.FinalResolved())
}

func (p Product) HasNegativeProfit() bool {
	return p.Price.Sub(p.Cost).IsNegative()
}

func (input *NewProduct) validate() error {
	input.Name = strings.TrimSpace(input.Name)
	violations, err := utils.ValidateStruct(input)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		v := violations[0]
		return newValidationError(v.Field, RuleRequired, "%s is required", v.Field)
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"cost", input.Cost},
		{"price", input.Price},
		{"initial_products", input.InitialProducts},
		{"incoming_products", input.IncomingProducts},
		{"losses", input.Losses},
		{"final_products", input.FinalProducts.Decimal},
	} {
		if err := checkRange(f.name, f.value); err != nil {
			return err
		}
	}
	if !input.Cost.IsPositive() {
		return newValidationError("cost", RuleGreaterThanZero, "cost must be greater than zero")
	}
	if !input.Price.IsPositive() {
		return newValidationError("price", RuleGreaterThanZero, "price must be greater than zero")
	}
	for field, value := range map[string]decimal.Decimal{
		"initial_products":  input.InitialProducts,
		"incoming_products": input.IncomingProducts,
		"losses":            input.Losses,
	} {
		if value.IsNegative() {
			return newValidationError(field, RuleNegative, "%s cannot be negative", field)
		}
	}
	if input.FinalProducts.Valid && input.FinalProducts.Decimal.IsNegative() {
		return newValidationError("final_products", RuleNegative, "final_products cannot be negative")
	}
	return nil
}

func (input *NewProduct) toProduct() Product {
	return Product{
		Code:             strings.TrimSpace(input.Code),
		Name:             input.Name,
		NormalizedName:   utils.NormalizeName(input.Name),
		Unit:             strings.TrimSpace(input.Unit),
		Cost:             utils.NormalizeQuantity(input.Cost),
		Price:            utils.NormalizeQuantity(input.Price),
		InitialProducts:  utils.NormalizeQuantity(input.InitialProducts),
		IncomingProducts: utils.NormalizeQuantity(input.IncomingProducts),
		Losses:           utils.NormalizeQuantity(input.Losses),
		FinalProducts:    utils.NormalizeNullableQuantity(input.FinalProducts),
	}
}

func duplicateNameError(name string) *ValidationError {
	return newValidationError("name", RuleDuplicate, "product %q already exists", name)
}

// CreateProduct adds one product to the active inventory, creating the inventory if absent.
func CreateProduct(ctx context.Context, store Store, input *NewProduct) (*Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	product := input.toProduct()
	err := store.Transaction(ctx, func(tx Store) error {
		if err := tx.AddProduct(ctx, &product); err != nil {
			if errors.Is(err, ErrDuplicateProductName) {
				return duplicateNameError(product.Name)
			}
			return err
		}
		return touchInventory(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// BulkCreateProducts inserts every valid input whose normalized name is new.
// An invalid input fails the whole batch; duplicates are skipped and reported by name.
func BulkCreateProducts(ctx context.Context, store Store, inputs []NewProduct) (*BulkCreateResult, error) {
	var violations []*ValidationError
	for i := range inputs {
		if err := inputs[i].validate(); err != nil {
			var ve *ValidationError
			if !errors.As(err, &ve) {
				return nil, err
			}
			violations = append(violations, &ValidationError{
				Field:   indexedField(i, ve.Field),
				Rule:    ve.Rule,
				Message: ve.Message,
			})
		}
	}
	if len(violations) > 0 {
		return nil, &SchemaError{Violations: violations}
	}

	result := &BulkCreateResult{Created: []Product{}, Skipped: []string{}}
	err := store.Transaction(ctx, func(tx Store) error {
		seen := make(map[string]bool, len(inputs))
		for i := range inputs {
			product := inputs[i].toProduct()
			if seen[product.NormalizedName] {
				result.Skipped = append(result.Skipped, product.Name)
				continue
			}
			seen[product.NormalizedName] = true
			if err := tx.AddProduct(ctx, &product); err != nil {
				if errors.Is(err, ErrDuplicateProductName) {
					result.Skipped = append(result.Skipped, product.Name)
					continue
				}
				return err
			}
			result.Created = append(result.Created, product)
		}
		if len(result.Created) == 0 {
			return nil
		}
		return touchInventory(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func GetProduct(ctx context.Context, store Store, id int) (*Product, error) {
	product, err := store.GetProduct(ctx, id)
	if err != nil {
		return nil, asIntegrityError(err, "product", id)
	}
	return product, nil
}

func ListProducts(ctx context.Context, store Store) ([]Product, error) {
	return store.ListProducts(ctx)
}

// UpdateProduct edits name/code/unit/cost/price. Cost and price keep the creation rule (> 0).
func UpdateProduct(ctx context.Context, store Store, id int, input *ProductEdit) (*Product, error) {
	fields := ProductFields{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, newValidationError("name", RuleRequired, "name is required")
		}
		fields.Name = &name
	}
	if input.Code != nil {
		code := strings.TrimSpace(*input.Code)
		fields.Code = &code
	}
	if input.Unit != nil {
		unit := strings.TrimSpace(*input.Unit)
		fields.Unit = &unit
	}
	if input.Cost != nil {
		if err := checkRange("cost", *input.Cost); err != nil {
			return nil, err
		}
		if !input.Cost.IsPositive() {
			return nil, newValidationError("cost", RuleGreaterThanZero, "cost must be greater than zero")
		}
		cost := utils.NormalizeQuantity(*input.Cost)
		fields.Cost = &cost
	}
	if input.Price != nil {
		if err := checkRange("price", *input.Price); err != nil {
			return nil, err
		}
		if !input.Price.IsPositive() {
			return nil, newValidationError("price", RuleGreaterThanZero, "price must be greater than zero")
		}
		price := utils.NormalizeQuantity(*input.Price)
		fields.Price = &price
	}
	return updateProductFields(ctx, store, id, fields)
}

// AddIncomingStock increments incoming_products by qty (> 0).
func AddIncomingStock(ctx context.Context, store Store, id int, qty decimal.Decimal) (*Product, error) {
	if err := checkRange("incoming_products", qty); err != nil {
		return nil, err
	}
	qty = utils.NormalizeQuantity(qty)
	if !qty.IsPositive() {
		return nil, newValidationError("incoming_products", RuleGreaterThanZero, "incoming quantity must be greater than zero")
	}
	var updated *Product
	err := store.Transaction(ctx, func(tx Store) error {
		current, err := tx.GetProduct(ctx, id)
		if err != nil {
			return asIntegrityError(err, "product", id)
		}
		incoming := current.IncomingProducts.Add(qty)
		if err := checkRange("incoming_products", incoming); err != nil {
			return err
		}
		updated, err = tx.UpdateProduct(ctx, id, ProductFields{IncomingProducts: &incoming})
		if err != nil {
			return asIntegrityError(err, "product", id)
		}
		return touchInventory(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetFinalCount records the counted ending stock; sold follows as available - final.
// The count must lie within [0, available].
func SetFinalCount(ctx context.Context, store Store, id int, final decimal.Decimal) (*Product, error) {
	if err := checkRange("final_products", final); err != nil {
		return nil, err
	}
	final = utils.NormalizeQuantity(final)
	return updateStockCount(ctx, store, id, func(p *Product) (decimal.Decimal, error) {
		if final.IsNegative() {
			return decimal.Zero, newValidationError("final_products", RuleNegative, "final count cannot be negative")
		}
		if final.GreaterThan(p.Available()) {
			return decimal.Zero, newValidationError("final_products", RuleExceedsAvailable, "final count cannot exceed available stock (%s)", p.Available().String())
		}
		return final, nil
	})
}

// SetSoldCount records units sold; the final count is back-solved as available - sold.
func SetSoldCount(ctx context.Context, store Store, id int, sold decimal.Decimal) (*Product, error) {
	if err := checkRange("sold", sold); err != nil {
		return nil, err
	}
	sold = utils.NormalizeQuantity(sold)
	return updateStockCount(ctx, store, id, func(p *Product) (decimal.Decimal, error) {
		if sold.IsNegative() {
			return decimal.Zero, newValidationError("sold", RuleNegative, "sold quantity cannot be negative")
		}
		if sold.GreaterThan(p.Available()) {
			return decimal.Zero, newValidationError("sold", RuleExceedsAvailable, "sold quantity cannot exceed available stock (%s)", p.Available().String())
		}
		return p.Available().Sub(sold), nil
	})
}

// ClearFinalCount resets the product to "not yet counted".
func ClearFinalCount(ctx context.Context, store Store, id int) (*Product, error) {
	null := decimal.NullDecimal{}
	return updateProductFields(ctx, store, id, ProductFields{FinalProducts: &null})
}

func updateStockCount(ctx context.Context, store Store, id int, solve func(p *Product) (decimal.Decimal, error)) (*Product, error) {
	var updated *Product
	err := store.Transaction(ctx, func(tx Store) error {
		current, err := tx.GetProduct(ctx, id)
		if err != nil {
			return asIntegrityError(err, "product", id)
		}
		final, err := solve(current)
		if err != nil {
			return err
		}
		nullable := decimal.NewNullDecimal(final)
		updated, err = tx.UpdateProduct(ctx, id, ProductFields{FinalProducts: &nullable})
		if err != nil {
			return asIntegrityError(err, "product", id)
		}
		return touchInventory(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func updateProductFields(ctx context.Context, store Store, id int, fields ProductFields) (*Product, error) {
	var updated *Product
	err := store.Transaction(ctx, func(tx Store) error {
		var err error
		updated, err = tx.UpdateProduct(ctx, id, fields)
		if err != nil {
			if errors.Is(err, ErrDuplicateProductName) {
				return duplicateNameError(utils.DereferencePtr(fields.Name))
			}
			return asIntegrityError(err, "product", id)
		}
		return touchInventory(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func DeleteProduct(ctx context.Context, store Store, id int) error {
	_, err := DeleteProducts(ctx, store, []int{id})
	return err
}

// DeleteProducts removes all ids or none: an unknown id aborts the batch.
func DeleteProducts(ctx context.Context, store Store, ids []int) (int, error) {
	ids = utils.UniqueSlice(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int
	err := store.Transaction(ctx, func(tx Store) error {
		for _, id := range ids {
			if _, err := tx.GetProduct(ctx, id); err != nil {
				return asIntegrityError(err, "product", id)
			}
		}
		var err error
		deleted, err = tx.DeleteProducts(ctx, ids)
		if err != nil {
			return err
		}
		return touchInventory(ctx, tx)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func asIntegrityError(err error, entity string, id int) error {
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return &IntegrityError{Entity: entity, Id: id}
	}
	return err
}

func indexedField(i int, field string) string {
	return "products[" + strconv.Itoa(i) + "]." + field
}
