package utils

import (
	"os"
	"strconv"
	"time"
)

const (
	CacheKeyInventory  = "Inventory:Active"
	CacheKeyRecordList = "Record:List"
)

// GetCacheLifespan reads CACHE_LIFESPAN in minutes (default 60).
func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		lifespan = 60
	}
	return time.Duration(lifespan) * time.Minute
}

// CacheKeyRecord is the key of one cached record snapshot.
func CacheKeyRecord(id int) string {
	return "Record:" + strconv.Itoa(id)
}
