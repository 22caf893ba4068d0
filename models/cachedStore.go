package models

import (
	"context"

	"github.com/mmdatafocus/stockcycle_backend/config"
	"github.com/mmdatafocus/stockcycle_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// CachedStore caches the inventory header and records in redis on top of another Store.
// Every write clears the affected keys; cache failures are logged and never fail the call.
type CachedStore struct {
	Store
	client *redis.Client
}

// NewCachedStore caches through client, or through the global redis client when nil.
// Until redis is connected every call passes straight to inner.
func NewCachedStore(inner Store, client *redis.Client) *CachedStore {
	return &CachedStore{Store: inner, client: client}
}

func (s *CachedStore) redis() *redis.Client {
	if s.client != nil {
		return s.client
	}
	return config.GetRedisDB()
}

func (s *CachedStore) logCacheError(funcName string, key string, err error) {
	config.LogError(config.GetLogger(), "CachedStore", funcName, "redis cache", key, err)
}

func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := config.RemoveRedisKey(ctx, s.redis(), keys...); err != nil {
		s.logCacheError("invalidate", keys[0], err)
	}
}

func (s *CachedStore) GetInventory(ctx context.Context) (*Inventory, error) {
	var cached Inventory
	found, err := config.GetRedisObject(ctx, s.redis(), utils.CacheKeyInventory, &cached)
	if err != nil {
		s.logCacheError("GetInventory", utils.CacheKeyInventory, err)
	}
	if found {
		return &cached, nil
	}
	inventory, err := s.Store.GetInventory(ctx)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, s.redis(), utils.CacheKeyInventory, inventory, utils.GetCacheLifespan()); err != nil {
		s.logCacheError("GetInventory", utils.CacheKeyInventory, err)
	}
	return inventory, nil
}

func (s *CachedStore) PutInventory(ctx context.Context, inventory *Inventory) error {
	if err := s.Store.PutInventory(ctx, inventory); err != nil {
		return err
	}
	s.invalidate(ctx, utils.CacheKeyInventory)
	return nil
}

func (s *CachedStore) ClearInventory(ctx context.Context) error {
	if err := s.Store.ClearInventory(ctx); err != nil {
		return err
	}
	s.invalidate(ctx, utils.CacheKeyInventory)
	return nil
}

func (s *CachedStore) ListRecords(ctx context.Context) ([]Record, error) {
	var cached []Record
	found, err := config.GetRedisObject(ctx, s.redis(), utils.CacheKeyRecordList, &cached)
	if err != nil {
		s.logCacheError("ListRecords", utils.CacheKeyRecordList, err)
	}
	if found {
		return cached, nil
	}
	records, err := s.Store.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, s.redis(), utils.CacheKeyRecordList, records, utils.GetCacheLifespan()); err != nil {
		s.logCacheError("ListRecords", utils.CacheKeyRecordList, err)
	}
	return records, nil
}

func (s *CachedStore) GetRecord(ctx context.Context, id int) (*Record, error) {
	key := utils.CacheKeyRecord(id)
	var cached Record
	found, err := config.GetRedisObject(ctx, s.redis(), key, &cached)
	if err != nil {
		s.logCacheError("GetRecord", key, err)
	}
	if found {
		return &cached, nil
	}
	record, err := s.Store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	// records are immutable, so the snapshot stays valid until deleted
	if err := config.SetRedisObject(ctx, s.redis(), key, record, utils.GetCacheLifespan()); err != nil {
		s.logCacheError("GetRecord", key, err)
	}
	return record, nil
}

func (s *CachedStore) AddRecord(ctx context.Context, record *Record) error {
	if err := s.Store.AddRecord(ctx, record); err != nil {
		return err
	}
	s.invalidate(ctx, utils.CacheKeyRecordList)
	return nil
}

func (s *CachedStore) DeleteRecord(ctx context.Context, id int) error {
	if err := s.Store.DeleteRecord(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, utils.CacheKeyRecordList, utils.CacheKeyRecord(id))
	return nil
}

func (s *CachedStore) DeleteAllRecords(ctx context.Context) (int, error) {
	records, err := s.Store.ListRecords(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.Store.DeleteAllRecords(ctx)
	if err != nil {
		return 0, err
	}
	keys := []string{utils.CacheKeyRecordList}
	for _, r := range records {
		keys = append(keys, utils.CacheKeyRecord(r.ID))
	}
	s.invalidate(ctx, keys...)
	return n, nil
}

// product writes touch the inventory header in the same flow, so the header key goes too
func (s *CachedStore) AdjustLosses(ctx context.Context, id int, losses decimal.Decimal, final decimal.Decimal) (*Product, error) {
	p, err := s.Store.AdjustLosses(ctx, id, losses, final)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, utils.CacheKeyInventory)
	return p, nil
}

// Transaction reads and writes through the inner store uncached and clears the cache after commit.
func (s *CachedStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if err := s.Store.Transaction(ctx, fn); err != nil {
		return err
	}
	s.invalidate(ctx, utils.CacheKeyInventory, utils.CacheKeyRecordList)
	return nil
}
