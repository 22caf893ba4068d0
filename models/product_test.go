package models_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mmdatafocus/stockcycle_backend/models"
	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireValidation(t *testing.T, err error, field, rule string) {
	t.Helper()
	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
	assert.Equal(t, field, ve.Field)
	assert.Equal(t, rule, ve.Rule)
	assert.Equal(t, models.ErrorKindValidation, models.KindOf(err))
}

func TestCreateProductStartsInventory(t *testing.T) {
	ctx := testContext()
	store := models.NewMemoryStore()

	_, err := models.GetInventory(ctx, store)
	assert.ErrorIs(t, err, models.ErrNoActiveInventory)

	input := newProduct(" Rice ", "10", "0", "0", nil)
	p, err := models.CreateProduct(ctx, store, &input)
	require.NoError(t, err)
	assert.Equal(t, "Rice", p.Name)
	assert.NotZero(t, p.ID)
	assert.False(t, p.FinalProducts.Valid)

	inv, err := models.GetInventory(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "Ana", inv.Seller)
	assert.Equal(t, "2024-03-05", inv.Date)
	assert.Equal(t, "18:30:00", inv.Time)
	require.Len(t, inv.Products, 1)
}

func TestCreateProductValidation(t *testing.T) {
	ctx := testContext()
	store := models.NewMemoryStore()

	cases := []struct {
		name   string
		mutate func(p *models.NewProduct)
		field  string
		rule   string
	}{
		{"blank name", func(p *models.NewProduct) { p.Name = "   " }, "name", models.RuleRequired},
		{"zero cost", func(p *models.NewProduct) { p.Cost = dec("0") }, "cost", models.RuleGreaterThanZero},
		{"negative price", func(p *models.NewProduct) { p.Price = dec("-1") }, "price", models.RuleGreaterThanZero},
		{"negative initial", func(p *models.NewProduct) { p.InitialProducts = dec("-1") }, "initial_products", models.RuleNegative},
		{"negative final", func(p *models.NewProduct) { p.FinalProducts = nullDec("-2") }, "final_products", models.RuleNegative},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := newProduct("Rice", "10", "0", "0", nil)
			tc.mutate(&input)
			_, err := models.CreateProduct(ctx, store, &input)
			requireValidation(t, err, tc.field, tc.rule)
		})
	}

	products, err := models.ListProducts(ctx, store)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCreateProductRejectsDuplicateNormalizedName(t *testing.T) {
	store, _ := seedStore(t, newProduct("Café Latte", "1", "0", "0", nil))
	input := newProduct("  cafe   LATTE!", "1", "0", "0", nil)
	_, err := models.CreateProduct(testContext(), store, &input)
	requireValidation(t, err, "name", models.RuleDuplicate)
}

func TestBulkCreateProducts(t *testing.T) {
	store, _ := seedStore(t, newProduct("Rice", "1", "0", "0", nil))
	ctx := testContext()

	result, err := models.BulkCreateProducts(ctx, store, []models.NewProduct{
		newProduct("Beans", "1", "0", "0", nil),
		newProduct("rice", "1", "0", "0", nil),
		newProduct("BEANS", "1", "0", "0", nil),
		newProduct("Salt", "1", "0", "0", nil),
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	assert.Equal(t, []string{"rice", "BEANS"}, result.Skipped)

	products, err := models.ListProducts(ctx, store)
	require.NoError(t, err)
	assert.Len(t, products, 3)
}

func TestBulkCreateProductsRejectsWholeBatch(t *testing.T) {
	store := models.NewMemoryStore()
	bad := newProduct("Beans", "1", "0", "0", nil)
	bad.Cost = dec("0")

	_, err := models.BulkCreateProducts(testContext(), store, []models.NewProduct{newProduct("Rice", "1", "0", "0", nil), bad})
	var schemaErr *models.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Len(t, schemaErr.Violations, 1)
	assert.Equal(t, "products[1].cost", schemaErr.Violations[0].Field)

	products, err := models.ListProducts(testContext(), store)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestUpdateProduct(t *testing.T) {
	store, created := seedStore(t,
		newProduct("Rice", "1", "0", "0", nil),
		newProduct("Beans", "1", "0", "0", nil),
	)
	ctx := testContext()
	id := created[0].ID

	price := dec("19.999")
	name := "Brown Rice"
	p, err := models.UpdateProduct(ctx, store, id, &models.ProductEdit{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "Brown Rice", p.Name)
	assertDecimal(t, "20", p.Price)
	assertDecimal(t, "10", p.Cost)

	taken := "beans"
	_, err = models.UpdateProduct(ctx, store, id, &models.ProductEdit{Name: &taken})
	requireValidation(t, err, "name", models.RuleDuplicate)

	zero := dec("0")
	_, err = models.UpdateProduct(ctx, store, id, &models.ProductEdit{Cost: &zero})
	requireValidation(t, err, "cost", models.RuleGreaterThanZero)

	_, err = models.UpdateProduct(ctx, store, 999, &models.ProductEdit{Name: &name})
	var ie *models.IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 999, ie.Id)
}

func TestAddIncomingStock(t *testing.T) {
	store, created := seedStore(t, newProduct("Rice", "10", "2", "0", nil))
	ctx := testContext()

	p, err := models.AddIncomingStock(ctx, store, created[0].ID, dec("3.5"))
	require.NoError(t, err)
	assertDecimal(t, "5.5", p.IncomingProducts)

	_, err = models.AddIncomingStock(ctx, store, created[0].ID, dec("0"))
	requireValidation(t, err, "incoming_products", models.RuleGreaterThanZero)
}

func TestStockCountStaysWithinAvailable(t *testing.T) {
	store, created := seedStore(t, newProduct("Rice", "28", "12", "0", nil))
	ctx := testContext()
	id := created[0].ID

	p, err := models.SetFinalCount(ctx, store, id, dec("38"))
	require.NoError(t, err)
	assertDecimal(t, "38", p.FinalProducts.Decimal)
	assertDecimal(t, "2", p.Sold())

	_, err = models.SetFinalCount(ctx, store, id, dec("40.01"))
	requireValidation(t, err, "final_products", models.RuleExceedsAvailable)
	_, err = models.SetFinalCount(ctx, store, id, dec("-1"))
	requireValidation(t, err, "final_products", models.RuleNegative)

	p, err = models.SetSoldCount(ctx, store, id, dec("15"))
	require.NoError(t, err)
	assertDecimal(t, "25", p.FinalProducts.Decimal)

	_, err = models.SetSoldCount(ctx, store, id, dec("41"))
	requireValidation(t, err, "sold", models.RuleExceedsAvailable)

	p, err = models.ClearFinalCount(ctx, store, id)
	require.NoError(t, err)
	assert.False(t, p.FinalProducts.Valid)
	assertDecimal(t, "0", p.Sold())
}

func TestDeleteProductsIsAllOrNothing(t *testing.T) {
	store, created := seedStore(t,
		newProduct("Rice", "1", "0", "0", nil),
		newProduct("Beans", "1", "0", "0", nil),
	)
	ctx := testContext()

	_, err := models.DeleteProducts(ctx, store, []int{created[0].ID, 404})
	var ie *models.IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "product", ie.Entity)
	assert.Equal(t, models.ErrorKindIntegrity, models.KindOf(err))

	products, err := models.ListProducts(ctx, store)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	n, err := models.DeleteProducts(ctx, store, []int{created[0].ID, created[0].ID, created[1].ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	err = models.DeleteProduct(ctx, store, created[0].ID)
	require.ErrorAs(t, err, &ie)
}

func TestGetProductNotFound(t *testing.T) {
	_, err := models.GetProduct(testContext(), models.NewMemoryStore(), 1)
	var ie *models.IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "product 1 not found", err.Error())
}

func TestQuantitiesOutsideColumnRangeAreRejected(t *testing.T) {
	ctx := testContext()
	huge := dec("1e200000000")

	input := newProduct("Rice", "28", "12", "0", nil)
	input.Cost = huge
	_, err := models.CreateProduct(ctx, models.NewMemoryStore(), &input)
	requireValidation(t, err, "cost", models.RuleOutOfRange)

	store, created := seedStore(t, newProduct("Rice", "28", "12", "4", nil))
	id := created[0].ID

	_, err = models.AddIncomingStock(ctx, store, id, huge)
	requireValidation(t, err, "incoming_products", models.RuleOutOfRange)
	_, err = models.AddIncomingStock(ctx, store, id, dec("999999999999999999"))
	requireValidation(t, err, "incoming_products", models.RuleOutOfRange)

	_, err = models.SetFinalCount(ctx, store, id, dec("1e-400000"))
	requireValidation(t, err, "final_products", models.RuleOutOfRange)
	_, err = models.SetSoldCount(ctx, store, id, huge)
	requireValidation(t, err, "sold", models.RuleOutOfRange)
	_, err = models.AdjustLosses(ctx, store, id, huge)
	requireValidation(t, err, "losses", models.RuleOutOfRange)

	edit := &models.ProductEdit{Price: &huge}
	_, err = models.UpdateProduct(ctx, store, id, edit)
	requireValidation(t, err, "price", models.RuleOutOfRange)

	p, err := models.GetProduct(ctx, store, id)
	require.NoError(t, err)
	assertDecimal(t, "12", p.IncomingProducts)
	assertDecimal(t, "4", p.Losses)
	assert.False(t, p.FinalProducts.Valid)
}

func TestLockedInventoryIsPrecondition(t *testing.T) {
	err := fmt.Errorf("rollover: %w", utils.ErrInventoryLocked)
	assert.Equal(t, models.ErrorKindPrecondition, models.KindOf(err))
}
