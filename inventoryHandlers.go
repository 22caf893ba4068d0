package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/stockcycle_backend/config"
	"github.com/mmdatafocus/stockcycle_backend/models"
	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/mmdatafocus/stockcycle_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const inventoryLockKey = "inventory:active"

type inventoryAPI struct {
	mu       sync.RWMutex
	store    models.Store
	sink     models.ExportSink
	retryCfg config.ExportRetryConfig
	logger   *logrus.Logger
}

func (a *inventoryAPI) setStore(store models.Store) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store = store
}

func (a *inventoryAPI) currentStore() models.Store {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.store
}

// ready answers 503 until the store is wired.
func (a *inventoryAPI) ready() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.currentStore() == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service is starting"})
			return
		}
		c.Next()
	}
}

func (a *inventoryAPI) register(r gin.IRouter) {
	r.GET("/inventory", a.getInventory)
	r.PUT("/inventory/seller", a.setSeller)
	r.GET("/inventory/xlsx", a.inventoryXlsx)
	r.POST("/inventory/rollover", a.rollover)
	r.POST("/inventory/export/preview", a.exportPreview)
	r.POST("/inventory/export", a.export)
	r.POST("/inventory/import", a.importInventory)

	r.GET("/products", a.listProducts)
	r.POST("/products", a.createProduct)
	r.POST("/products/bulk", a.bulkCreateProducts)
	r.DELETE("/products", a.deleteProducts)
	r.GET("/products/:id", a.getProduct)
	r.PUT("/products/:id", a.updateProduct)
	r.DELETE("/products/:id", a.deleteProduct)
	r.POST("/products/:id/incoming", a.addIncoming)
	r.PUT("/products/:id/final", a.setFinal)
	r.DELETE("/products/:id/final", a.clearFinal)
	r.PUT("/products/:id/sold", a.setSold)
	r.GET("/products/:id/losses", a.startLossAdjustment)
	r.POST("/products/:id/losses/evaluate", a.evaluateLosses)
	r.PUT("/products/:id/losses", a.adjustLosses)

	r.GET("/records", a.listRecords)
	r.DELETE("/records", a.deleteAllRecords)
	r.GET("/records/:id", a.getRecord)
	r.GET("/records/:id/xlsx", a.recordXlsx)
	r.DELETE("/records/:id", a.deleteRecord)
}

var errorStatus = map[models.ErrorKind]int{
	models.ErrorKindValidation:   http.StatusUnprocessableEntity,
	models.ErrorKindPrecondition: http.StatusConflict,
	models.ErrorKindIntegrity:    http.StatusNotFound,
	models.ErrorKindTransport:    http.StatusBadGateway,
	models.ErrorKindParse:        http.StatusBadRequest,
	models.ErrorKindInternal:     http.StatusInternalServerError,
}

// respondError writes err as a typed body. Internal errors are logged and never echoed.
func (a *inventoryAPI) respondError(c *gin.Context, funcName string, err error) {
	kind := models.KindOf(err)
	body := gin.H{"kind": kind, "error": err.Error()}

	var schemaErr *models.SchemaError
	var negativeErr *models.NegativeValuesError
	var validationErr *models.ValidationError
	var transportErr *models.TransportError
	switch {
	case errors.As(err, &schemaErr):
		body["violations"] = schemaErr.Violations
	case errors.As(err, &negativeErr):
		body["negative_values"] = negativeErr.Values
	case errors.As(err, &validationErr):
		body["field"] = validationErr.Field
		body["rule"] = validationErr.Rule
	case errors.As(err, &transportErr):
		body["attempts"] = transportErr.Attempts
	}

	if kind == models.ErrorKindInternal {
		config.LogError(a.logger, "inventoryHandlers.go", funcName, c.Request.URL.Path, nil, err)
		body["error"] = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(errorStatus[kind], body)
}

func (a *inventoryAPI) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"kind": models.ErrorKindParse, "error": "invalid request: " + err.Error()})
}

func pathId(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", c.Param("id"))
	}
	return id, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (a *inventoryAPI) getInventory(c *gin.Context) {
	summary, err := models.GetInventorySummary(c.Request.Context(), a.currentStore())
	if err != nil {
		a.respondError(c, "getInventory", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type sellerRequest struct {
	Seller string `json:"seller" binding:"required"`
}

func (a *inventoryAPI) setSeller(c *gin.Context) {
	var req sellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}
	inventory, err := models.SetInventorySeller(c.Request.Context(), a.currentStore(), req.Seller)
	if err != nil {
		a.respondError(c, "setSeller", err)
		return
	}
	c.JSON(http.StatusOK, inventory)
}

func (a *inventoryAPI) inventoryXlsx(c *gin.Context) {
	data, err := models.ExportInventoryXlsx(c.Request.Context(), a.currentStore())
	if err != nil {
		a.respondError(c, "inventoryXlsx", err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=inventory.xlsx")
	c.Data(http.StatusOK, models.XlsxContentType, data)
}

type rolloverRequest struct {
	Seller string `json:"seller"`
	DryRun bool   `json:"dry_run"`
}

func (a *inventoryAPI) rollover(c *gin.Context) {
	var req rolloverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}
	ctx, span := tracer.Start(c.Request.Context(), "inventory.rollover")
	store := a.currentStore()

	if req.DryRun {
		inventory, err := models.GetInventory(ctx, store)
		endSpan(span, err)
		if err != nil {
			a.respondError(c, "rollover", err)
			return
		}
		seller := req.Seller
		if seller == "" {
			seller, _ = utils.GetUserNameFromContext(ctx)
		}
		c.JSON(http.StatusOK, models.PlanRollover(inventory, seller, utils.NowFromContext(ctx)))
		return
	}

	var record *models.Record
	err := utils.WithInventoryLock(ctx, inventoryLockKey, "inventoryHandlers.go", "rollover", func() error {
		var err error
		record, err = models.RolloverInventory(ctx, store, req.Seller, utils.NowFromContext(ctx))
		return err
	})
	endSpan(span, err)
	if err != nil {
		a.respondError(c, "rollover", err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

type exportRequest struct {
	Seller string `json:"seller"`
	Mode   string `json:"mode"`
}

func (a *inventoryAPI) exportPreview(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}
	payload, err := models.ExportActiveInventory(c.Request.Context(), a.currentStore(), req.Seller)
	if err != nil {
		a.respondError(c, "exportPreview", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payload":         payload,
		"negative_values": models.DetectNegativeValues(payload),
	})
}

func (a *inventoryAPI) export(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}
	ctx, span := tracer.Start(c.Request.Context(), "inventory.export")
	result, err := workflow.ExportInventory(ctx, a.logger, a.currentStore(), a.sink, req.Seller, models.NegativeCorrectionMode(req.Mode), a.retryCfg)
	endSpan(span, err)
	if err != nil {
		a.respondError(c, "export", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type importRequest struct {
	Content string `json:"content" binding:"required"`
	Mode    string `json:"mode"`
	Confirm bool   `json:"confirm"`
}

// importInventory answers with the preview until the request carries confirm=true.
func (a *inventoryAPI) importInventory(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.ImportMaxBytes())
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"kind": models.ErrorKindParse, "error": fmt.Sprintf("import file exceeds %d bytes", tooLarge.Limit)})
			return
		}
		a.badRequest(c, err)
		return
	}
	ctx, span := tracer.Start(c.Request.Context(), "inventory.import")
	mode := models.NegativeCorrectionMode(req.Mode)

	if !req.Confirm {
		plan, err := models.PrepareImport(req.Content, mode)
		endSpan(span, err)
		if err != nil {
			a.respondError(c, "importInventory", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"confirmed": false, "preview": plan.Preview, "corrected": plan.Corrected})
		return
	}

	var inventory *models.Inventory
	err := utils.WithInventoryLock(ctx, inventoryLockKey, "inventoryHandlers.go", "importInventory", func() error {
		var err error
		inventory, err = models.ImportInventory(ctx, a.currentStore(), req.Content, mode, func(_ context.Context, _ models.ImportPreview) (bool, error) {
			return true, nil
		})
		return err
	})
	endSpan(span, err)
	if err != nil {
		a.respondError(c, "importInventory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmed": true, "inventory": inventory})
}

func (a *inventoryAPI) listProducts(c *gin.Context) {
	products, err := models.ListProducts(c.Request.Context(), a.currentStore())
	if err != nil {
		a.respondError(c, "listProducts", err)
		return
	}
	c.JSON(http.StatusOK, models.DeriveAll(products))
}

func (a *inventoryAPI) createProduct(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		a.badRequest(c, err)
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), a.currentStore(), &input)
	if err != nil {
		a.respondError(c, "createProduct", err)
		return
	}
	c.JSON(http.StatusCreated, models.DeriveMetrics(*product))
}

func (a *inventoryAPI) bulkCreateProducts(c *gin.Context) {
	var inputs []models.NewProduct
	if err := c.ShouldBindJSON(&inputs); err != nil {
		a.badRequest(c, err)
		return
	}
	result, err := models.BulkCreateProducts(c.Request.Context(), a.currentStore(), inputs)
	if err != nil {
		a.respondError(c, "bulkCreateProducts", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type idsRequest struct {
	Ids []int `json:"ids" binding:"required"`
}

func (a *inventoryAPI) deleteProducts(c *gin.Context) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}
	deleted, err := models.DeleteProducts(c.Request.Context(), a.currentStore(), req.Ids)
	if err != nil {
		a.respondError(c, "deleteProducts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (a *inventoryAPI) getProduct(c *gin.Context) {
	id, err := pathId(c)
	if err != nil {
		a.badRequest(c, err)
		return
	}
	product, err := models.GetProduct(c.Request.Context(), a.currentStore(), id)
	if err != nil {
		a.respondError(c, "getProduct", err)
		return
	}
	c.JSON(http.StatusOK, models.DeriveMetrics(*product))
}

func (a *inventoryAPI) updateProduct(c *gin.Context) {
	id, err := pathId(c)
	if err != nil {
		a.badRequest(c, err)
		return
	}
	var input models.ProductEdit
	if err := c.ShouldBindJSON(&input); err != nil {
		a.badRequest(c, err)
		return
	}
	product, err := models.UpdateProduct(c.Request.Context(), a.currentStore(), id, &input)
	if err != nil {
		a.respondError(c, "updateProduct", err)
		return
	}
	c.JSON(http.StatusOK, models.DeriveMetrics(*product))
}

func (a *inventoryAPI) deleteProduct(c *gin.Context) {
	id, err := pathId(c)
	if err != nil {
		a.badRequest(c, err)
		return
	}
	if err := models.DeleteProduct(c.Request.Context(), a.currentStore(), id); err != nil {
		a.respondError(c, "deleteProduct", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// quantityRequest needs an explicit number; a missing or null quantity is never read as zero.
type quantityRequest struct {
	Quantity *decimal.Decimal `json:"quantity" binding:"required"`
}

// productQuantityHandler binds {"quantity": n} and applies op to the product in the path.
func (a *inventoryAPI) productQuantityHandler(funcName string, op func(c *gin.Context, id int, qty decimal.Decimal) (*models.Product, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c)
		if err != nil {
			a.badRequest(c, err)
			return
		}
		var req quantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			a.badRequest(c, err)
			return
		}
		product, err := op(c, id, *req.Quantity)
		if err != nil {
			a.respondError(c, funcName, err)
			return
		}
		c.JSON(http.StatusOK, models.DeriveMetrics(*product))
	}
}

func (a *inventoryAPI) addIncoming(c *gin.Context) {
	a.productQuantityHandler("addIncoming", func(c *gin.Context, id int, qty decimal.Decimal) (*models.Product, error) {
		return models.AddIncomingStock(c.Request.Context(), a.currentStore(), id, qty)
	})(c)
}

func (a *inventoryAPI) setFinal(c *gin.Context) {
	a.productQuantityHandler("setFinal", func(c *gin.Context, id int, qty decimal.Decimal) (*models.Product, error) {
		return models.SetFinalCount(c.Request.Context(), a.currentStore(), id, qty)
	})(c)
}

func (a *inventoryAPI) setSold(c *gin.Context) {
	a.productQuantityHandler("setSold", func(c *gin.Context, id int, qty decimal.Decimal) (*models.Product, error) {
		return models.SetSoldCount(c.Request.Context(), a.currentStore(), id, qty)
	})(c)
}

func (a *inventoryAPI) adjustLosses(c *gin.Context) {
	a.productQuantityHandler("adjustLosses", func(c *gin.Context, id int, qty decimal.Decimal) (*models.Product, error) {
		return models.AdjustLosses(c.Request.Context(), a.currentStore(), id, qty)
	})(c)
}

func (a *inventoryAPI) clearFinal(c *gin.Context) {
	id, err := pathId(c)
	if err != nil {
		a.badRequest(c, err)
		return
	}
	product, err := models.ClearFinalCount(c.Request.Context(), a.currentStore(), id)
	if err != nil {
		a.respondError(c, "clearFinal", err)
		return
	}
	c.JSON(http.StatusOK, models.DeriveMetrics(*product))
}

func (a *inventoryAPI) startLossAdjustment(c *gin.Context) {
	id, err := pathId(c)
	if err != nil {
		a.badRequest(c, err)
		return
	}
	session, err := models.StartLossAdjustment(c.Request.Context(), a.currentStore(), id)
	if err != nil {
		a.respondError(c, "startLossAdjustment", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (a *inventoryAPI) evaluateLosses(c *gin.Context) {
	id, err := pathId(c)
	if err != nil {
		a.badRequest(c, err)
		return
	}
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}
	session, err := models.StartLossAdjustment(c.Request.Context(), a.currentStore(), id)
	if err != nil {
		a.respondError(c, "evaluateLosses", err)
		return
	}
	result, err := session.Evaluate(*req.Quantity)
	if err != nil {
		a.respondError(c, "evaluateLosses", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *inventoryAPI) listRecords(c *gin.Context) {
	records, err := models.ListRecords(c.Request.Context(), a.currentStore())
	if err != nil {
		a.respondError(c, "listRecords", err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (a *inventoryAPI) getRecord(c *gin.Context) {
	id, err := pathId(c)
	if err != nil {
		a.badRequest(c, err)
		return
	}
	summary, err := models.GetRecordSummary(c.Request.Context(), a.currentStore(), id)
	if err != nil {
		a.respondError(c, "getRecord", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (a *inventoryAPI) recordXlsx(c *gin.Context) {
	id, err := pathId(c)
	if err != nil {
		a.badRequest(c, err)
		return
	}
	data, err := models.ExportRecordXlsx(c.Request.Context(), a.currentStore(), id)
	if err != nil {
		a.respondError(c, "recordXlsx", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=record-%d.xlsx", id))
	c.Data(http.StatusOK, models.XlsxContentType, data)
}

func (a *inventoryAPI) deleteRecord(c *gin.Context) {
	id, err := pathId(c)
	if err != nil {
		a.badRequest(c, err)
		return
	}
	if err := models.DeleteRecord(c.Request.Context(), a.currentStore(), id); err != nil {
		a.respondError(c, "deleteRecord", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *inventoryAPI) deleteAllRecords(c *gin.Context) {
	deleted, err := models.DeleteAllRecords(c.Request.Context(), a.currentStore())
	if err != nil {
		a.respondError(c, "deleteAllRecords", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
