package models

import (
	"context"

	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/shopspring/decimal"
)

// LossAdjustmentSession edits the losses of one product while holding units sold constant.
// Inputs are frozen when the session starts.
type LossAdjustmentSession struct {
	ProductId        int             `json:"product_id"`
	Initial          decimal.Decimal `json:"initial"`
	Incoming         decimal.Decimal `json:"incoming"`
	CurrentLosses    decimal.Decimal `json:"current_losses"`
	CurrentFinal     decimal.Decimal `json:"current_final"`
	Sold             decimal.Decimal `json:"sold"`
	MaxAllowedLosses decimal.Decimal `json:"max_allowed_losses"`

	// what the product looked like when frozen, used to detect concurrent edits
	snapshot Product
}

type LossAdjustmentResult struct {
	Losses         decimal.Decimal `json:"losses"`
	CandidateFinal decimal.Decimal `json:"candidate_final"`
}

// NewLossAdjustmentSession freezes p. A product never counted is taken as "nothing sold".
func NewLossAdjustmentSession(p *Product) (*LossAdjustmentSession, error) {
	if p == nil {
		return nil, ErrNoProductSelected
	}
	initial := utils.NormalizeQuantity(p.InitialProducts)
	incoming := utils.NormalizeQuantity(p.IncomingProducts)
	losses := utils.NormalizeQuantity(p.Losses)
	final := utils.NormalizeQuantity(p.FinalResolved())

	sold := initial.Add(incoming).Sub(losses).Sub(final)
	maxAllowed := decimal.Max(decimal.Zero, initial.Add(incoming).Sub(sold))

	return &LossAdjustmentSession{
		ProductId:        p.ID,
		Initial:          initial,
		Incoming:         incoming,
		CurrentLosses:    losses,
		CurrentFinal:     final,
		Sold:             sold,
		MaxAllowedLosses: maxAllowed,
		snapshot:         *p,
	}, nil
}

// Evaluate checks a candidate loss value without touching storage. It never clamps.
func (s *LossAdjustmentSession) Evaluate(newLosses decimal.Decimal) (LossAdjustmentResult, error) {
	if err := checkRange("losses", newLosses); err != nil {
		return LossAdjustmentResult{}, err
	}
	newLosses = utils.NormalizeQuantity(newLosses)
	candidateFinal := s.Initial.Add(s.Incoming).Sub(s.Sold).Sub(newLosses)

	if newLosses.IsNegative() {
		return LossAdjustmentResult{}, newValidationError("losses", RuleNegative, "losses cannot be negative")
	}
	if newLosses.GreaterThan(s.MaxAllowedLosses) {
		return LossAdjustmentResult{}, newValidationError("losses", RuleExceedsMaximum, "losses cannot exceed %s", s.MaxAllowedLosses.String())
	}
	if candidateFinal.IsNegative() {
		return LossAdjustmentResult{}, newValidationError("losses", RuleFinalNegative, "losses would make the final count negative (%s)", candidateFinal.String())
	}
	return LossAdjustmentResult{Losses: newLosses, CandidateFinal: candidateFinal}, nil
}

// Apply validates newLosses and writes losses and final together.
// It refuses with ErrProductChanged when the stored product moved since the session started.
func (s *LossAdjustmentSession) Apply(ctx context.Context, store Store, newLosses decimal.Decimal) (*Product, error) {
	result, err := s.Evaluate(newLosses)
	if err != nil {
		return nil, err
	}
	var updated *Product
	err = store.Transaction(ctx, func(tx Store) error {
		current, err := tx.GetProduct(ctx, s.ProductId)
		if err != nil {
			return asIntegrityError(err, "product", s.ProductId)
		}
		if !sameStock(*current, s.snapshot) {
			return ErrProductChanged
		}
		updated, err = tx.AdjustLosses(ctx, s.ProductId, result.Losses, result.CandidateFinal)
		if err != nil {
			return asIntegrityError(err, "product", s.ProductId)
		}
		return touchInventory(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AdjustLosses runs a whole session for one product id.
func AdjustLosses(ctx context.Context, store Store, id int, newLosses decimal.Decimal) (*Product, error) {
	product, err := store.GetProduct(ctx, id)
	if err != nil {
		return nil, asIntegrityError(err, "product", id)
	}
	session, err := NewLossAdjustmentSession(product)
	if err != nil {
		return nil, err
	}
	return session.Apply(ctx, store, newLosses)
}

// StartLossAdjustment loads a product and returns its frozen session for preview.
func StartLossAdjustment(ctx context.Context, store Store, id int) (*LossAdjustmentSession, error) {
	product, err := store.GetProduct(ctx, id)
	if err != nil {
		return nil, asIntegrityError(err, "product", id)
	}
	return NewLossAdjustmentSession(product)
}

func sameStock(a, b Product) bool {
	return a.InitialProducts.Equal(b.InitialProducts) &&
		a.IncomingProducts.Equal(b.IncomingProducts) &&
		a.Losses.Equal(b.Losses) &&
		a.FinalProducts.Valid == b.FinalProducts.Valid &&
		a.FinalProducts.Decimal.Equal(b.FinalProducts.Decimal)
}
