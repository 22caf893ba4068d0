package utils

import (
	"context"
	"time"

	"github.com/mmdatafocus/stockcycle_backend/appctx"
)

var (
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyNow           = appctx.ContextKeyNow
)

// GetUserNameFromContext returns the operator acting in this flow; used as the default seller.
func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// NowFromContext returns the clock pinned in ctx, or time.Now when none is set.
// Tests pin the clock so rollover and import timestamps are reproducible.
func NowFromContext(ctx context.Context) time.Time {
	if v, ok := ctx.Value(ContextKeyNow).(time.Time); ok && !v.IsZero() {
		return v
	}
	return time.Now()
}

func SetNowInContext(ctx context.Context, now time.Time) context.Context {
	return appctx.Set(ctx, ContextKeyNow, now)
}
