package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/shopspring/decimal"
)

// ImportPreview is what the operator confirms before the active inventory is replaced.
type ImportPreview struct {
	Seller       string   `json:"seller"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	ProductCount int      `json:"product_count"`
	Skipped      []string `json:"skipped"`
}

// ConfirmFunc decides whether a prepared import is committed.
type ConfirmFunc func(ctx context.Context, preview ImportPreview) (bool, error)

// ImportPlan is a fully validated import waiting for confirmation.
type ImportPlan struct {
	Inventory *Inventory           `json:"inventory"`
	Preview   ImportPreview        `json:"preview"`
	Corrected []NegativeValueError `json:"corrected"`
	Repaired  bool                 `json:"repaired"`
}

// ParseImport cleans and decodes raw into a payload, repairing the text only when it does not
// parse as is. Shape violations are collected into one SchemaError.
func ParseImport(raw string) (*ExportPayload, bool, error) {
	text := utils.CleanJSONText(raw)
	if text == "" {
		return nil, false, &ParseError{Stage: "clean", Err: errors.New("file is empty")}
	}

	repaired := false
	doc, err := decodeJSON(text)
	if err != nil {
		fixed, repairErr := utils.RepairJSON(text)
		if repairErr != nil {
			return nil, false, &ParseError{Stage: "parse", Err: err}
		}
		doc, err = decodeJSON(fixed)
		if err != nil {
			return nil, false, &ParseError{Stage: "parse", Err: err}
		}
		repaired = true
	}

	payload, violations := decodePayload(doc)
	if len(violations) > 0 {
		return nil, repaired, &SchemaError{Violations: violations}
	}

	structViolations, err := utils.ValidateStruct(payload)
	if err != nil {
		return nil, repaired, err
	}
	if len(structViolations) > 0 {
		schemaErr := &SchemaError{}
		for _, v := range structViolations {
			schemaErr.Violations = append(schemaErr.Violations, newValidationError(v.Field, v.Tag, "%s is %s", v.Field, v.Tag))
		}
		return nil, repaired, schemaErr
	}
	return payload, repaired, nil
}

func decodeJSON(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	// trailing garbage after the document is corruption too
	if dec.More() {
		return nil, errors.New("unexpected data after JSON document")
	}
	return doc, nil
}

type schemaReader struct {
	violations []*ValidationError
}

func (r *schemaReader) fail(field, rule, format string, args ...any) {
	r.violations = append(r.violations, newValidationError(field, rule, format, args...))
}

func (r *schemaReader) str(obj map[string]any, key, path string) string {
	v, ok := obj[key]
	if !ok || v == nil {
		r.fail(path, RuleRequired, "%s is required", path)
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(path, RuleType, "%s must be a string", path)
		return ""
	}
	return strings.TrimSpace(s)
}

func (r *schemaReader) number(obj map[string]any, key, path string) decimal.Decimal {
	v, ok := obj[key]
	if !ok || v == nil {
		r.fail(path, RuleRequired, "%s is required", path)
		return decimal.Zero
	}
	n, ok := v.(json.Number)
	if !ok {
		r.fail(path, RuleType, "%s must be a number", path)
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		r.fail(path, RuleType, "%s must be a number", path)
		return decimal.Zero
	}
	if !utils.InStorableRange(d) {
		r.fail(path, RuleOutOfRange, "%s is out of range", path)
		return decimal.Zero
	}
	return d
}

// nullableNumber treats a missing final count like an explicit null.
func (r *schemaReader) nullableNumber(obj map[string]any, key, path string) decimal.NullDecimal {
	v, ok := obj[key]
	if !ok || v == nil {
		return decimal.NullDecimal{}
	}
	n, ok := v.(json.Number)
	if !ok {
		r.fail(path, RuleType, "%s must be a number or null", path)
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		r.fail(path, RuleType, "%s must be a number or null", path)
		return decimal.NullDecimal{}
	}
	if !utils.InStorableRange(d) {
		r.fail(path, RuleOutOfRange, "%s is out of range", path)
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func optionalId(obj map[string]any, key string) *int {
	n, ok := obj[key].(json.Number)
	if !ok {
		return nil
	}
	i, err := n.Int64()
	if err != nil || i <= 0 {
		return nil
	}
	id := int(i)
	return &id
}

// optionalTime drops timestamps it cannot read; they are informational only.
func optionalTime(obj map[string]any, key string) *time.Time {
	s, ok := obj[key].(string)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

func decodePayload(doc any) (*ExportPayload, []*ValidationError) {
	r := &schemaReader{}
	root, ok := doc.(map[string]any)
	if !ok {
		r.fail("$", RuleType, "file must contain a JSON object")
		return nil, r.violations
	}

	payload := &ExportPayload{
		Id:     optionalId(root, "id"),
		Seller: r.str(root, "seller", "seller"),
		Date:   r.str(root, "date", "date"),
		Time:   r.str(root, "time", "time"),
	}

	rawProducts, present := root["products"]
	items, ok := rawProducts.([]any)
	switch {
	case !present || rawProducts == nil:
		r.fail("products", RuleRequired, "products is required")
	case !ok:
		r.fail("products", RuleType, "products must be an array")
	}

	payload.Products = make([]ExportProduct, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("products[%d]", i)
		obj, ok := item.(map[string]any)
		if !ok {
			r.fail(path, RuleType, "%s must be an object", path)
			continue
		}
		payload.Products = append(payload.Products, ExportProduct{
			Id:               optionalId(obj, "id"),
			Code:             r.str(obj, "code", path+".code"),
			Name:             r.str(obj, "name", path+".name"),
			Unit:             r.str(obj, "unit", path+".unit"),
			Cost:             r.number(obj, "cost", path+".cost"),
			Price:            r.number(obj, "price", path+".price"),
			InitialProducts:  r.number(obj, "initial_products", path+".initial_products"),
			IncomingProducts: r.number(obj, "incoming_products", path+".incoming_products"),
			Losses:           r.number(obj, "losses", path+".losses"),
			FinalProducts:    r.nullableNumber(obj, "final_products", path+".final_products"),
			CreatedAt:        optionalTime(obj, "created_at"),
			UpdatedAt:        optionalTime(obj, "updated_at"),
		})
	}
	return payload, r.violations
}

// TransformToInventory maps a payload onto the canonical inventory, the inverse of PrepareExport.
func TransformToInventory(payload *ExportPayload) *Inventory {
	inventory := &Inventory{
		ID:       ActiveInventoryId,
		Seller:   payload.Seller,
		Date:     utils.NormalizeDate(payload.Date),
		Time:     utils.NormalizeTime(payload.Time),
		Products: make([]Product, 0, len(payload.Products)),
	}
	for _, ep := range payload.Products {
		p := Product{
			Code:             ep.Code,
			Name:             ep.Name,
			NormalizedName:   utils.NormalizeName(ep.Name),
			Unit:             ep.Unit,
			Cost:             utils.NormalizeQuantity(ep.Cost),
			Price:            utils.NormalizeQuantity(ep.Price),
			InitialProducts:  utils.NormalizeQuantity(ep.InitialProducts),
			IncomingProducts: utils.NormalizeQuantity(ep.IncomingProducts),
			Losses:           utils.NormalizeQuantity(ep.Losses),
			FinalProducts:    utils.NormalizeNullableQuantity(ep.FinalProducts),
		}
		if ep.Id != nil {
			p.ID = *ep.Id
		}
		if ep.CreatedAt != nil {
			p.CreatedAt = *ep.CreatedAt
		}
		if ep.UpdatedAt != nil {
			p.UpdatedAt = *ep.UpdatedAt
		}
		inventory.Products = append(inventory.Products, p)
	}
	return inventory
}

// PrepareImport runs every stage short of persistence. Negative values stop the import
// with a NegativeValuesError unless the caller already chose a correction mode.
func PrepareImport(raw string, mode NegativeCorrectionMode) (*ImportPlan, error) {
	payload, repaired, err := ParseImport(raw)
	if err != nil {
		return nil, err
	}

	plan := &ImportPlan{Repaired: repaired, Corrected: []NegativeValueError{}}
	if negatives := DetectNegativeValues(payload); len(negatives) > 0 {
		if mode == "" {
			return nil, &NegativeValuesError{Values: negatives}
		}
		payload, err = CorrectNegativeValues(payload, mode)
		if err != nil {
			return nil, err
		}
		plan.Corrected = negatives
	}

	inventory := TransformToInventory(payload)
	skipped := []string{}
	seen := make(map[string]bool, len(inventory.Products))
	kept := inventory.Products[:0]
	for _, p := range inventory.Products {
		if seen[p.NormalizedName] {
			skipped = append(skipped, p.Name)
			continue
		}
		seen[p.NormalizedName] = true
		kept = append(kept, p)
	}
	inventory.Products = kept

	plan.Inventory = inventory
	plan.Preview = ImportPreview{
		Seller:       inventory.Seller,
		Date:         inventory.Date,
		Time:         inventory.Time,
		ProductCount: len(inventory.Products),
		Skipped:      skipped,
	}
	return plan, nil
}

// CommitImport replaces the whole active inventory with plan in one transaction.
func CommitImport(ctx context.Context, store Store, plan *ImportPlan) (*Inventory, error) {
	products := cloneProducts(plan.Inventory.Products)
	err := store.Transaction(ctx, func(tx Store) error {
		if err := tx.ReplaceProducts(ctx, products); err != nil {
			return err
		}
		return tx.PutInventory(ctx, &Inventory{
			ID:     ActiveInventoryId,
			Seller: plan.Inventory.Seller,
			Date:   plan.Inventory.Date,
			Time:   plan.Inventory.Time,
		})
	})
	if err != nil {
		return nil, err
	}
	return GetInventory(ctx, store)
}

// ImportInventory parses, validates and, once confirm agrees, restores raw as the active inventory.
// Nothing is written on any failure or refusal.
func ImportInventory(ctx context.Context, store Store, raw string, mode NegativeCorrectionMode, confirm ConfirmFunc) (*Inventory, error) {
	plan, err := PrepareImport(raw, mode)
	if err != nil {
		return nil, err
	}
	if confirm == nil {
		return nil, ErrImportCancelled
	}
	ok, err := confirm(ctx, plan.Preview)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrImportCancelled
	}
	return CommitImport(ctx, store, plan)
}

// EncodeExport serializes payload the way ParseImport reads it back.
func EncodeExport(payload *ExportPayload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
