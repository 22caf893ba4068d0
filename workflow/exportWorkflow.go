package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/stockcycle_backend/config"
	"github.com/mmdatafocus/stockcycle_backend/models"
	"github.com/sirupsen/logrus"
)

type ExportResult struct {
	Attempts     int                         `json:"attempts"`
	Bytes        int                         `json:"bytes"`
	ProductCount int                         `json:"product_count"`
	Corrected    []models.NegativeValueError `json:"corrected"`
}

// ProcessExportWorkflow refuses payloads that still hold negative values, then hands the
// serialized payload to sink with a bounded number of attempts and a fixed pause between them.
func ProcessExportWorkflow(ctx context.Context, logger *logrus.Logger, sink models.ExportSink, payload *models.ExportPayload, cfg config.ExportRetryConfig) (*ExportResult, error) {
	if err := models.CheckExportable(payload); err != nil {
		return nil, err
	}

	data, err := models.EncodeExport(payload)
	if err != nil {
		config.LogError(logger, "exportWorkflow.go", "ProcessExportWorkflow", "EncodeExport", payload.Seller, err)
		return nil, err
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = sink.Deliver(ctx, data)
		if lastErr == nil {
			logger.WithFields(logrus.Fields{
				"module":   "exportWorkflow.go",
				"funcName": "ProcessExportWorkflow",
				"attempt":  attempt,
				"bytes":    len(data),
			}).Info("export delivered")
			return &ExportResult{
				Attempts:     attempt,
				Bytes:        len(data),
				ProductCount: len(payload.Products),
				Corrected:    []models.NegativeValueError{},
			}, nil
		}
		config.LogError(logger, "exportWorkflow.go", "ProcessExportWorkflow", "Deliver", attempt, lastErr)

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &models.TransportError{Attempts: attempt, Err: ctx.Err()}
		case <-time.After(cfg.Backoff):
		}
	}
	return nil, &models.TransportError{Attempts: maxAttempts, Err: lastErr}
}

// ExportInventory exports the live cycle. A non-empty mode corrects negative values first;
// without one, negatives stop the export.
func ExportInventory(ctx context.Context, logger *logrus.Logger, store models.Store, sink models.ExportSink, seller string, mode models.NegativeCorrectionMode, cfg config.ExportRetryConfig) (*ExportResult, error) {
	payload, err := models.ExportActiveInventory(ctx, store, seller)
	if err != nil {
		return nil, err
	}

	corrected := []models.NegativeValueError{}
	if mode != "" {
		corrected = models.DetectNegativeValues(payload)
		payload, err = models.CorrectNegativeValues(payload, mode)
		if err != nil {
			return nil, err
		}
	}

	result, err := ProcessExportWorkflow(ctx, logger, sink, payload, cfg)
	if err != nil {
		return nil, err
	}
	result.Corrected = corrected
	return result, nil
}
