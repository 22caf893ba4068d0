package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/stockcycle_backend/config"
	"github.com/mmdatafocus/stockcycle_backend/models"
	"github.com/mmdatafocus/stockcycle_backend/utils"
)

// HTTPSink POSTs the export to a host endpoint. Any non-2xx answer is a failed hand-off.
type HTTPSink struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSink) Deliver(ctx context.Context, data []byte) error {
	if s.URL == "" {
		return errors.New("EXPORT_HTTP_URL is required")
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		req.Header.Set("X-Correlation-Id", correlationId)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("export endpoint answered %s", resp.Status)
	}
	return nil
}

// PubSubSink publishes the export on a topic.
type PubSubSink struct {
	Topic string
}

func (s *PubSubSink) Deliver(ctx context.Context, data []byte) error {
	attributes := map[string]string{"kind": "inventory_export"}
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		attributes["correlation_id"] = correlationId
	}
	_, err := config.PublishWithResult(ctx, s.Topic, data, attributes)
	return err
}

// GCSSink stores each export as a new object under Prefix.
type GCSSink struct {
	Bucket string
	Prefix string
}

func (s *GCSSink) Deliver(ctx context.Context, data []byte) error {
	name := exportObjectName(utils.NowFromContext(ctx))
	if s.Prefix != "" {
		name = strings.TrimSuffix(s.Prefix, "/") + "/" + name
	}
	return utils.UploadBytesToGCS(ctx, s.Bucket, name, data, "application/json")
}

// FileSink writes the export to Path, or to a new file in Dir.
type FileSink struct {
	Path string
	Dir  string
}

func (s *FileSink) Deliver(ctx context.Context, data []byte) error {
	path := s.Path
	if path == "" {
		dir := s.Dir
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, exportObjectName(utils.NowFromContext(ctx)))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func exportObjectName(now time.Time) string {
	return fmt.Sprintf("inventory-%s-%s.json", now.Format("20060102-150405"), uuid.NewString()[:8])
}

// NewExportSinkFromEnv builds the sink named by EXPORT_SINK.
func NewExportSinkFromEnv() (models.ExportSink, error) {
	switch config.ExportSink() {
	case config.ExportSinkHTTP:
		return &HTTPSink{URL: os.Getenv("EXPORT_HTTP_URL")}, nil
	case config.ExportSinkPubSub:
		topic := os.Getenv("EXPORT_TOPIC")
		if topic == "" {
			return nil, errors.New("EXPORT_TOPIC is required for the pubsub sink")
		}
		return &PubSubSink{Topic: topic}, nil
	case config.ExportSinkGCS:
		return &GCSSink{Bucket: os.Getenv("GCS_BUCKET"), Prefix: os.Getenv("EXPORT_GCS_PREFIX")}, nil
	case config.ExportSinkFile:
		return &FileSink{Dir: os.Getenv("EXPORT_DIR")}, nil
	default:
		return nil, fmt.Errorf("unknown EXPORT_SINK %q", config.ExportSink())
	}
}
