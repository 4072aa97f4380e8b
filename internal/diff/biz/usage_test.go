package biz

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/revdiff/internal/diff/store"
	"github.com/kart-io/revdiff/internal/model"
	"github.com/kart-io/revdiff/pkg/cache"
)

// newBizTestFactory opens a per-test in-memory database. The shared-cache DSN
// keeps the database alive across pooled connections.
func newBizTestFactory(t *testing.T) store.Factory {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	factory, err := store.NewFactoryWithDB(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = factory.Close() })
	return factory
}

func TestUsageTracker_HourlyWindowRollover(t *testing.T) {
	factory := newBizTestFactory(t)

	current := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	tracker := NewUsageTracker(factory.Usage(), cache.NewMemoryStore(0),
		RateLimits{Daily: 100, Hourly: 1}, time.Minute, WithTrackerClock(clock))

	ctx := context.Background()
	require.NoError(t, tracker.LogUsage(ctx, &model.UsageEvent{
		UserID:        "u1",
		OperationType: model.OperationVersionComparison,
		Success:       true,
	}))

	// Same hour: the single hourly slot is spent.
	current = time.Date(2026, 8, 28, 10, 59, 0, 0, time.UTC)
	require.False(t, tracker.CheckRateLimit(ctx, "u1", model.OperationVersionComparison))

	// Next hour: the event at 10:30 falls outside the window.
	current = time.Date(2026, 8, 28, 11, 1, 0, 0, time.UTC)
	require.True(t, tracker.CheckRateLimit(ctx, "u1", model.OperationVersionComparison))
}

func TestUsageTracker_DailyWindowRollover(t *testing.T) {
	factory := newBizTestFactory(t)

	current := time.Date(2026, 8, 28, 0, 30, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	tracker := NewUsageTracker(factory.Usage(), cache.NewMemoryStore(0),
		RateLimits{Daily: 1, Hourly: 100}, time.Minute, WithTrackerClock(clock))

	ctx := context.Background()
	require.NoError(t, tracker.LogUsage(ctx, &model.UsageEvent{
		UserID:        "u1",
		OperationType: model.OperationVersionComparison,
		Success:       true,
	}))

	current = time.Date(2026, 8, 28, 23, 59, 0, 0, time.UTC)
	require.False(t, tracker.CheckRateLimit(ctx, "u1", model.OperationVersionComparison))

	current = time.Date(2026, 8, 29, 0, 1, 0, 0, time.UTC)
	require.True(t, tracker.CheckRateLimit(ctx, "u1", model.OperationVersionComparison))
}

func TestUsageTracker_PerOperationSubLimit(t *testing.T) {
	factory := newBizTestFactory(t)

	current := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	tracker := NewUsageTracker(factory.Usage(), cache.NewMemoryStore(0),
		RateLimits{Daily: 100, Hourly: 100}, time.Minute,
		WithTrackerClock(func() time.Time { return current }))
	tracker.ApplyLimitSettings(SetOperationLimit{Operation: model.OperationSummaryRegen, Limit: 1})

	ctx := context.Background()
	require.NoError(t, tracker.LogUsage(ctx, &model.UsageEvent{
		UserID:        "u1",
		OperationType: model.OperationSummaryRegen,
		Success:       true,
	}))

	current = current.Add(10 * time.Minute)
	require.False(t, tracker.CheckRateLimit(ctx, "u1", model.OperationSummaryRegen))
	require.True(t, tracker.CheckRateLimit(ctx, "u1", model.OperationVersionComparison))
}

// failingUsageStore errors on every query. Rate limiting must fail open.
type failingUsageStore struct {
	store.UsageStore
}

func (f *failingUsageStore) CountByUserSince(_ context.Context, _ string, _ time.Time) (int64, error) {
	return 0, errors.New("database offline")
}

func TestUsageTracker_FailsOpenOnQueryError(t *testing.T) {
	tracker := NewUsageTracker(&failingUsageStore{}, cache.NewMemoryStore(0),
		RateLimits{Daily: 1, Hourly: 1}, time.Minute)

	if !tracker.CheckRateLimit(context.Background(), "u1", model.OperationVersionComparison) {
		t.Error("rate limiter must allow the request when the count query fails")
	}
}

func TestUsageTracker_Snapshot(t *testing.T) {
	factory := newBizTestFactory(t)

	current := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	tracker := NewUsageTracker(factory.Usage(), cache.NewMemoryStore(0),
		RateLimits{Daily: 1000, Hourly: 100}, time.Minute,
		WithTrackerClock(func() time.Time { return current }))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.NoError(t, tracker.LogUsage(ctx, &model.UsageEvent{
			UserID:        "u1",
			OperationType: model.OperationVersionComparison,
			EstimatedCost: decimal.RequireFromString("0.010"),
			Success:       true,
		}))
	}

	snapshot, err := tracker.GetRateLimitSnapshot(ctx, "u1")
	require.NoError(t, err)

	require.Equal(t, int64(2), snapshot.DailyUsed)
	require.Equal(t, int64(2), snapshot.HourlyUsed)
	require.Equal(t, 1000, snapshot.DailyLimit)
	require.True(t, snapshot.CostToday.Equal(decimal.RequireFromString("0.020")))
	require.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), snapshot.ResetsAt)
}

func TestApplyLimitSettings(t *testing.T) {
	tracker := NewUsageTracker(&failingUsageStore{}, cache.NewMemoryStore(0),
		RateLimits{Daily: 1000, Hourly: 100}, time.Minute)

	tracker.ApplyLimitSettings(
		SetDailyLimit{Limit: 50},
		SetHourlyLimit{Limit: 10},
		SetOperationLimit{Operation: model.OperationSummaryRegen, Limit: 5},
	)

	limits := tracker.Limits()
	require.Equal(t, 50, limits.Daily)
	require.Equal(t, 10, limits.Hourly)
	require.Equal(t, 5, limits.PerOperation[model.OperationSummaryRegen])

	// The returned copy must not alias internal state.
	limits.PerOperation[model.OperationSummaryRegen] = 99
	require.Equal(t, 5, tracker.Limits().PerOperation[model.OperationSummaryRegen])
}
