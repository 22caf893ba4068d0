package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageBackendGorm   = "gorm"
	StorageBackendMemory = "memory"

	ExportSinkHTTP   = "http"
	ExportSinkPubSub = "pubsub"
	ExportSinkGCS    = "gcs"
	ExportSinkFile   = "file"
)

// StorageBackend selects the document store behind the API.
//
// Set via env:
// - STORAGE_BACKEND=gorm|memory (default gorm)
func StorageBackend() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STORAGE_BACKEND")))
	if v == "" {
		return StorageBackendGorm
	}
	return v
}

// UseInventoryCache wraps the store with the redis read-through cache.
//
// Set via env:
// - INVENTORY_CACHE=true
func UseInventoryCache() bool {
	return boolFromEnv("INVENTORY_CACHE")
}

// ExportSink names the transport used to hand exported inventories to the host.
//
// Set via env:
// - EXPORT_SINK=http|pubsub|gcs|file (default http)
func ExportSink() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("EXPORT_SINK")))
	if v == "" {
		return ExportSinkHTTP
	}
	return v
}

// ImportMaxBytes caps the body of an import request.
//
// Set via env:
// - IMPORT_MAX_BYTES (default 10 MiB)
func ImportMaxBytes() int64 {
	n := intFromEnv("IMPORT_MAX_BYTES", 10<<20)
	if n <= 0 {
		n = 10 << 20
	}
	return int64(n)
}

type ExportRetryConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

// GetExportRetryConfig reads the bounded retry policy of the export hand-off.
// The backoff is fixed between attempts.
//
// Set via env:
// - EXPORT_MAX_ATTEMPTS (default 3)
// - EXPORT_RETRY_BACKOFF_MS (default 500)
func GetExportRetryConfig() ExportRetryConfig {
	cfg := ExportRetryConfig{
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
	}
	if n := intFromEnv("EXPORT_MAX_ATTEMPTS", 0); n > 0 {
		cfg.MaxAttempts = n
	}
	if v := strings.TrimSpace(os.Getenv("EXPORT_RETRY_BACKOFF_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Backoff = time.Duration(n) * time.Millisecond
		}
	}
	return cfg
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
