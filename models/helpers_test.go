package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/stockcycle_backend/models"
	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 5, 18, 30, 0, 0, time.UTC)

func testContext() context.Context {
	ctx := utils.SetUserNameInContext(context.Background(), "Ana")
	return utils.SetNowInContext(ctx, testNow)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s got %s", want, got.String()}, msgAndArgs...)...)
}

func newProduct(name string, initial, incoming, losses string, final *string) models.NewProduct {
	p := models.NewProduct{
		Code:             "C-" + name,
		Name:             name,
		Unit:             "pcs",
		Cost:             dec("10"),
		Price:            dec("15"),
		InitialProducts:  dec(initial),
		IncomingProducts: dec(incoming),
		Losses:           dec(losses),
	}
	if final != nil {
		p.FinalProducts = nullDec(*final)
	}
	return p
}

func strPtr(s string) *string { return &s }

// seedStore returns a memory store holding the given products in an active inventory.
func seedStore(t *testing.T, products ...models.NewProduct) (*models.MemoryStore, []models.Product) {
	t.Helper()
	ctx := testContext()
	store := models.NewMemoryStore()
	created := make([]models.Product, 0, len(products))
	for i := range products {
		p, err := models.CreateProduct(ctx, store, &products[i])
		require.NoError(t, err)
		created = append(created, *p)
	}
	return store, created
}
