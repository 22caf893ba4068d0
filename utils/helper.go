package utils

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/stockcycle_backend/config"
	"github.com/sirupsen/logrus"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02 15:04:05",
}

var timeLayouts = []string{
	TimeLayout,
	"15:04",
	"3:04 PM",
	"3:04:05 PM",
	"03:04 PM",
	"3:04 pm",
	"3:04:05 pm",
	time.RFC3339,
}

// FormatCycleDate and FormatCycleTime give the date/time strings stored on inventories and records.
func FormatCycleDate(t time.Time) string {
	return t.Format(DateLayout)
}

func FormatCycleTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// NormalizeDate rewrites any recognised date into DateLayout.
// Unrecognised text is kept trimmed; dates are display data, not keys.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(DateLayout)
		}
	}
	return raw
}

// NormalizeTime rewrites any recognised time of day into TimeLayout.
func NormalizeTime(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(TimeLayout)
		}
	}
	return raw
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	if len(defaults) > 0 {
		return defaults[0]
	}
	return zero
}

// WithInventoryLock runs fn holding the redis lock for lockKey.
// When another process holds the lock fn does not run and ErrInventoryLocked is returned.
// Without a reachable redis fn runs unlocked; stores serialize writes themselves.
func WithInventoryLock(ctx context.Context, lockKey string, moduleName string, functionName string, fn func() error) error {
	return withLock(ctx, config.GetRedisLock(), lockKey, moduleName, functionName, fn)
}

func withLock(ctx context.Context, locker *redislock.Client, lockKey string, moduleName string, functionName string, fn func() error) error {
	logger := config.GetLogger()

	var lock *redislock.Lock
	if locker == nil {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": functionName,
			"lock":     lockKey,
		}).Warn("redis lock not ready; proceeding without redis lock")
	} else {
		var err error
		lock, err = locker.Obtain(ctx, "lock:"+lockKey, 30*time.Second, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			logger.WithFields(logrus.Fields{
				"module":   moduleName,
				"funcName": functionName,
				"lock":     lockKey,
			}).Warn("redis lock is held elsewhere")
			return ErrInventoryLocked
		} else if err != nil {
			config.LogError(logger, moduleName, functionName, "Error obtaining redis lock", lockKey, err)
			lock = nil
		}
	}
	defer func() {
		if lock == nil {
			return
		}
		if releaseErr := lock.Release(ctx); releaseErr != nil {
			config.LogError(logger, moduleName, functionName, "failed to release redis lock", lockKey, releaseErr)
		}
	}()

	return fn()
}
