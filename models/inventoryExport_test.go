package models_test

import (
	"testing"

	"github.com/mmdatafocus/stockcycle_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func negativePayload() *models.ExportPayload {
	return &models.ExportPayload{
		Seller: "Ana",
		Date:   "2024-03-05",
		Time:   "10:00:00",
		Products: []models.ExportProduct{
			{Code: "A", Name: "Rice", Cost: dec("1"), Price: dec("2"), InitialProducts: dec("-3"), FinalProducts: nullDec("-1")},
			{Code: "B", Name: "Salt", Cost: dec("1"), Price: dec("2"), Losses: dec("-0.5")},
		},
	}
}

func TestDetectNegativeValues(t *testing.T) {
	found := models.DetectNegativeValues(negativePayload())
	require.Len(t, found, 3)
	assert.Equal(t, "initial_products", found[0].Field)
	assert.Equal(t, "final_products", found[1].Field)
	assert.Equal(t, "B", found[2].ProductCode)
	assertDecimal(t, "0.5", found[2].AbsoluteValue)

	// a null final count is not a negative value
	clean := &models.ExportPayload{Products: []models.ExportProduct{{Name: "Rice"}}}
	assert.Empty(t, models.DetectNegativeValues(clean))
	assert.NoError(t, models.CheckExportable(clean))
}

func TestCorrectNegativeValuesWorksOnCopy(t *testing.T) {
	original := negativePayload()
	corrected, err := models.CorrectNegativeValues(original, models.CorrectionAbs)
	require.NoError(t, err)
	assertDecimal(t, "3", corrected.Products[0].InitialProducts)
	assertDecimal(t, "1", corrected.Products[0].FinalProducts.Decimal)
	assertDecimal(t, "0.5", corrected.Products[1].Losses)
	assert.NoError(t, models.CheckExportable(corrected))

	assertDecimal(t, "-3", original.Products[0].InitialProducts)
	var negErr *models.NegativeValuesError
	require.ErrorAs(t, models.CheckExportable(original), &negErr)
	assert.Len(t, negErr.Values, 3)
}

func TestPrepareExportRoundsAndKeepsSeller(t *testing.T) {
	inv := &models.Inventory{
		ID:     1,
		Seller: "Ana",
		Date:   "2024-03-05",
		Time:   "10:00:00",
		Products: []models.Product{
			{ID: 4, Name: "Rice", Cost: dec("1.005"), Price: dec("2"), FinalProducts: nullDec("3.333")},
		},
	}
	payload := models.PrepareExport(inv, "")
	assert.Equal(t, "Ana", payload.Seller)
	require.NotNil(t, payload.Id)
	require.Len(t, payload.Products, 1)
	assertDecimal(t, "1.01", payload.Products[0].Cost)
	assertDecimal(t, "3.33", payload.Products[0].FinalProducts.Decimal)
	require.NotNil(t, payload.Products[0].Id)
	assert.Equal(t, 4, *payload.Products[0].Id)
	assert.Nil(t, payload.Products[0].CreatedAt)

	assert.Equal(t, "Bea", models.PrepareExport(inv, "Bea").Seller)
}

func TestExportActiveInventoryRequiresInventory(t *testing.T) {
	_, err := models.ExportActiveInventory(testContext(), models.NewMemoryStore(), "")
	assert.ErrorIs(t, err, models.ErrNoActiveInventory)
}
