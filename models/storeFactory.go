package models

import (
	"os"
	"strings"

	"github.com/mmdatafocus/stockcycle_backend/config"
	"github.com/sirupsen/logrus"
)

// OpenStoreFromEnv builds the store selected by STORAGE_BACKEND, connecting the database
// when needed. INVENTORY_CACHE=true puts the redis cache in front.
func OpenStoreFromEnv(logger *logrus.Logger) (Store, error) {
	var store Store
	switch config.StorageBackend() {
	case config.StorageBackendMemory:
		logger.WithFields(logrus.Fields{"field": "storage"}).Warn("STORAGE_BACKEND=memory; data is lost on restart")
		store = NewMemoryStore()
	default:
		config.ConnectDatabaseWithRetry()
		db := config.GetDB()
		// IMPORTANT: AutoMigrate can run DDL that blocks tables; allow running it as a separate job.
		if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
			if err := MigrateTable(db); err != nil {
				return nil, err
			}
		} else {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
		}
		store = NewGormStore(db)
	}

	if config.UseInventoryCache() {
		store = NewCachedStore(store, nil)
	}
	return store, nil
}
