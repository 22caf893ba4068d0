package workflow

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mmdatafocus/stockcycle_backend/config"
	"github.com/mmdatafocus/stockcycle_backend/models"
	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSinkDeliver(t *testing.T) {
	var body []byte
	var correlationId string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		correlationId = r.Header.Get("X-Correlation-Id")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ctx := utils.SetCorrelationIdInContext(context.Background(), "cid-1")
	err := (&HTTPSink{URL: srv.URL}).Deliver(ctx, []byte(`{"seller":"Ana"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"seller":"Ana"}`, string(body))
	assert.Equal(t, "cid-1", correlationId)
}

func TestHTTPSinkRetriedUntilHostAccepts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result, err := ProcessExportWorkflow(context.Background(), quietLogger(), &HTTPSink{URL: srv.URL, Client: srv.Client()},
		&models.ExportPayload{Seller: "Ana"}, config.ExportRetryConfig{MaxAttempts: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
}

func TestHTTPSinkRequiresURL(t *testing.T) {
	assert.Error(t, (&HTTPSink{}).Deliver(context.Background(), []byte("{}")))
}
