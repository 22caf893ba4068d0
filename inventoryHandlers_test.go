package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/stockcycle_backend/config"
	"github.com/mmdatafocus/stockcycle_backend/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	fail bool
	last []byte
}

func (s *captureSink) Deliver(ctx context.Context, data []byte) error {
	if s.fail {
		return errors.New("bridge unavailable")
	}
	s.last = data
	return nil
}

func newTestAPI(t *testing.T, sink models.ExportSink) (*inventoryAPI, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	api := &inventoryAPI{
		sink:     sink,
		retryCfg: config.ExportRetryConfig{MaxAttempts: 1},
		logger:   logger,
	}
	return api, newRouter(api, logger)
}

func newReadyRouter(t *testing.T) *gin.Engine {
	t.Helper()
	api, r := newTestAPI(t, &captureSink{})
	api.setStore(models.NewMemoryStore())
	return r
}

func call(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-operator", "Ana")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

const riceJSON = `{"code":"R1","name":"Rice","unit":"kg","cost":10,"price":15,"initial_products":28,"incoming_products":12}`

func TestAPINotReadyUntilStoreIsSet(t *testing.T) {
	api, r := newTestAPI(t, &captureSink{})

	w := call(t, r, http.MethodGet, "/api/products", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = call(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	api.setStore(models.NewMemoryStore())
	w = call(t, r, http.MethodGet, "/api/products", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIEchoesCorrelationId(t *testing.T) {
	r := newReadyRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("x-correlation-id", "cid-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "cid-42", w.Header().Get("x-correlation-id"))

	w = call(t, r, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, w.Header().Get("x-correlation-id"))
}

func TestAPINoInventoryIsConflict(t *testing.T) {
	r := newReadyRouter(t)
	w := call(t, r, http.MethodGet, "/api/inventory", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "precondition", decodeBody(t, w)["kind"])
}

func TestAPIProductCountingCycle(t *testing.T) {
	r := newReadyRouter(t)

	w := call(t, r, http.MethodPost, "/api/products", riceJSON)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody(t, w)
	assert.Equal(t, float64(1), created["id"])
	assert.Equal(t, float64(40), created["available"])

	w = call(t, r, http.MethodPut, "/api/products/1/final", `{"quantity": 38}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decodeBody(t, w)["sold"])

	w = call(t, r, http.MethodPut, "/api/products/1/final", `{"quantity": 41}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "final_products", body["field"])
	assert.Equal(t, models.RuleExceedsAvailable, body["rule"])

	w = call(t, r, http.MethodPost, "/api/products/1/losses/evaluate", `{"quantity": 5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(33), decodeBody(t, w)["candidate_final"])

	w = call(t, r, http.MethodPost, "/api/products/1/losses/evaluate", `{"quantity": 39}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, models.RuleExceedsMaximum, decodeBody(t, w)["rule"])

	w = call(t, r, http.MethodPut, "/api/products/1/losses", `{"quantity": 5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	adjusted := decodeBody(t, w)
	assert.Equal(t, float64(33), adjusted["final_products"])
	assert.Equal(t, float64(2), adjusted["sold"])

	w = call(t, r, http.MethodGet, "/api/inventory", "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decodeBody(t, w)
	assert.Equal(t, "Ana", summary["seller"])
	metrics := summary["metrics"].(map[string]any)
	assert.Equal(t, float64(2), metrics["total_sold"])
	assert.Equal(t, float64(5), metrics["total_losses"])

	w = call(t, r, http.MethodDelete, "/api/products/1/final", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decodeBody(t, w)["final_products"])
}

func TestAPIErrorStatuses(t *testing.T) {
	r := newReadyRouter(t)
	require.Equal(t, http.StatusCreated, call(t, r, http.MethodPost, "/api/products", riceJSON).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   string
	}{
		{"duplicate name", http.MethodPost, "/api/products", `{"name":" rice ","cost":1,"price":2}`, http.StatusUnprocessableEntity, "validation"},
		{"missing product", http.MethodGet, "/api/products/9", "", http.StatusNotFound, "integrity"},
		{"bad id", http.MethodGet, "/api/products/abc", "", http.StatusBadRequest, "parse"},
		{"bad body", http.MethodPut, "/api/products/1/final", `{"quantity": "lots"}`, http.StatusBadRequest, "parse"},
		{"incoming must be positive", http.MethodPost, "/api/products/1/incoming", `{"quantity": 0}`, http.StatusUnprocessableEntity, "validation"},
		{"malformed import", http.MethodPost, "/api/inventory/import", `{"content":"{\"seller\": \"Ana\", \"products\" ]"}`, http.StatusBadRequest, "parse"},
		{"missing record", http.MethodDelete, "/api/records/3", "", http.StatusNotFound, "integrity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(t, r, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.kind, decodeBody(t, w)["kind"])
		})
	}
}

func TestAPIQuantityIsRequired(t *testing.T) {
	r := newReadyRouter(t)
	require.Equal(t, http.StatusCreated, call(t, r, http.MethodPost, "/api/products", riceJSON).Code)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPut, "/api/products/1/final"},
		{http.MethodPut, "/api/products/1/sold"},
		{http.MethodPut, "/api/products/1/losses"},
		{http.MethodPost, "/api/products/1/incoming"},
		{http.MethodPost, "/api/products/1/losses/evaluate"},
	}
	for _, route := range routes {
		for _, body := range []string{`{"quantity": null}`, `{}`} {
			t.Run(route.method+" "+route.path+" "+body, func(t *testing.T) {
				w := call(t, r, route.method, route.path, body)
				require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
				assert.Equal(t, "parse", decodeBody(t, w)["kind"])
			})
		}
	}

	w := call(t, r, http.MethodGet, "/api/products/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	product := decodeBody(t, w)
	assert.Nil(t, product["final_products"])
	assert.Equal(t, float64(0), product["losses"])
	assert.Equal(t, float64(12), product["incoming_products"])

	// zero is still a count
	w = call(t, r, http.MethodPut, "/api/products/1/final", `{"quantity": 0}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(0), decodeBody(t, w)["final_products"])
}

func TestAPIRejectsOutOfRangeQuantities(t *testing.T) {
	r := newReadyRouter(t)
	require.Equal(t, http.StatusCreated, call(t, r, http.MethodPost, "/api/products", riceJSON).Code)

	w := call(t, r, http.MethodPost, "/api/products/1/incoming", `{"quantity": 1e200000000}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, models.RuleOutOfRange, decodeBody(t, w)["rule"])

	content, err := json.Marshal(`{"seller":"Ana","products":[{"code":"R1","name":"Rice","unit":"kg","cost":1e200000000,"price":15,"initial_products":4,"incoming_products":0,"losses":0,"final_products":null}]}`)
	require.NoError(t, err)
	w = call(t, r, http.MethodPost, "/api/inventory/import", `{"content":`+string(content)+`}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestAPIImportBodyIsCapped(t *testing.T) {
	t.Setenv("IMPORT_MAX_BYTES", "256")
	r := newReadyRouter(t)

	content, err := json.Marshal(strings.Repeat(" ", 512) + `{"seller":"Ana","products":[]}`)
	require.NoError(t, err)
	w := call(t, r, http.MethodPost, "/api/inventory/import", `{"content":`+string(content)+`}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	assert.Equal(t, "parse", decodeBody(t, w)["kind"])
}

func TestAPIRolloverAndRecords(t *testing.T) {
	r := newReadyRouter(t)
	require.Equal(t, http.StatusCreated, call(t, r, http.MethodPost, "/api/products", riceJSON).Code)
	require.Equal(t, http.StatusOK, call(t, r, http.MethodPut, "/api/products/1/sold", `{"quantity": 7}`).Code)

	w := call(t, r, http.MethodPost, "/api/inventory/rollover", `{"dry_run": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = call(t, r, http.MethodGet, "/api/records", "")
	assert.Equal(t, "[]", w.Body.String())

	w = call(t, r, http.MethodPost, "/api/inventory/rollover", `{}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	record := decodeBody(t, w)
	assert.Equal(t, "Ana", record["seller"])

	w = call(t, r, http.MethodGet, "/api/records/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	metrics := decodeBody(t, w)["metrics"].(map[string]any)
	assert.Equal(t, float64(7), metrics["total_sold"])

	w = call(t, r, http.MethodGet, "/api/records/1/xlsx", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.XlsxContentType, w.Header().Get("Content-Type"))
	assert.NotZero(t, w.Body.Len())

	// the next cycle starts from the counted stock
	w = call(t, r, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, w.Code)
	var products []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	require.Len(t, products, 1)
	assert.Equal(t, float64(33), products[0]["initial_products"])
	assert.Nil(t, products[0]["final_products"])

	w = call(t, r, http.MethodDelete, "/api/records", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["deleted"])
}

func TestAPIImportPreviewThenConfirm(t *testing.T) {
	r := newReadyRouter(t)
	backup := `{"seller":"Bea","date":"2024-03-05","time":"10:00","products":[` +
		`{"code":"R1","name":"Rice","unit":"kg","cost":10,"price":15,"initial_products":4,"incoming_products":0,"losses":0,"final_products":null},` +
		`{"code":"R2","name":"RICE","unit":"kg","cost":10,"price":15,"initial_products":1,"incoming_products":0,"losses":0,"final_products":null}]}`
	content, err := json.Marshal(backup)
	require.NoError(t, err)

	w := call(t, r, http.MethodPost, "/api/inventory/import", `{"content":`+string(content)+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, false, body["confirmed"])
	preview := body["preview"].(map[string]any)
	assert.Equal(t, float64(1), preview["product_count"])
	assert.Equal(t, []any{"RICE"}, preview["skipped"])

	// nothing is written before confirmation
	assert.Equal(t, http.StatusConflict, call(t, r, http.MethodGet, "/api/inventory", "").Code)

	w = call(t, r, http.MethodPost, "/api/inventory/import", `{"confirm":true,"content":`+string(content)+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, r, http.MethodGet, "/api/inventory", "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decodeBody(t, w)
	assert.Equal(t, "Bea", summary["seller"])
	assert.Len(t, summary["products"], 1)
}

func TestAPIExport(t *testing.T) {
	sink := &captureSink{}
	api, r := newTestAPI(t, sink)
	api.setStore(models.NewMemoryStore())
	require.Equal(t, http.StatusCreated, call(t, r, http.MethodPost, "/api/products", riceJSON).Code)

	w := call(t, r, http.MethodPost, "/api/inventory/export/preview", `{"seller":"Bea"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "Bea", body["payload"].(map[string]any)["seller"])
	assert.Empty(t, body["negative_values"])

	w = call(t, r, http.MethodPost, "/api/inventory/export", `{}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotEmpty(t, sink.last)
	plan, err := models.PrepareImport(string(sink.last), "")
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Preview.ProductCount)

	sink.fail = true
	w = call(t, r, http.MethodPost, "/api/inventory/export", `{}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	failure := decodeBody(t, w)
	assert.Equal(t, "transport", failure["kind"])
	assert.Equal(t, float64(1), failure["attempts"])
}

func TestAPIInventoryXlsxAndSeller(t *testing.T) {
	r := newReadyRouter(t)
	require.Equal(t, http.StatusCreated, call(t, r, http.MethodPost, "/api/products", riceJSON).Code)

	w := call(t, r, http.MethodPut, "/api/inventory/seller", `{"seller":"Bea"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Bea", decodeBody(t, w)["seller"])

	w = call(t, r, http.MethodPut, "/api/inventory/seller", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, r, http.MethodGet, "/api/inventory/xlsx", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attachment; filename=inventory.xlsx", w.Header().Get("Content-Disposition"))
}

func TestAPIBulkCreateAndDelete(t *testing.T) {
	r := newReadyRouter(t)
	w := call(t, r, http.MethodPost, "/api/products/bulk", `[{"name":"Rice","cost":1,"price":2,"initial_products":3},{"name":"Beans","cost":1,"price":2},{"name":"rice","cost":1,"price":2}]`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	result := decodeBody(t, w)
	assert.Len(t, result["created"], 2)
	assert.Equal(t, []any{"rice"}, result["skipped"])

	w = call(t, r, http.MethodDelete, "/api/products", `{"ids":[1,2]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decodeBody(t, w)["deleted"])

	w = call(t, r, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	w = call(t, r, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
