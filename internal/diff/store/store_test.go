package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/revdiff/internal/model"
)

func newTestFactory(t *testing.T) Factory {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	factory, err := NewFactoryWithDB(db)
	require.NoError(t, err)
	return factory
}

func sampleComparison(doc, from, to string) *model.Comparison {
	return &model.Comparison{
		ID:            fmt.Sprintf("cmp-%s-%s-%s", doc, from, to),
		DocumentID:    doc,
		FromVersionID: from,
		ToVersionID:   to,
		ChangeSummary: "Reworded the introduction",
		ChangeType:    model.ChangeTypeContentModification,
		Significance:  model.SignificanceLow,
		AIModel:       "gpt-4o-mini",
		EstimatedCost: decimal.NewFromFloat(0.000150),
		GeneratedAt:   time.Now().UTC(),
	}
}

func TestComparisonCreateOrGet(t *testing.T) {
	factory := newTestFactory(t)
	defer func() { _ = factory.Close() }()
	ctx := context.Background()
	cmps := factory.Comparisons()

	first := sampleComparison("doc-1", "v1", "v2")
	got, created, err := cmps.CreateOrGet(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, first.ID, got.ID)

	// Second insert for the same identity triple must yield the winner's row.
	second := sampleComparison("doc-1", "v1", "v2")
	second.ID = "cmp-loser"
	got, created, err = cmps.CreateOrGet(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, got.ID)

	count, list, err := cmps.ListByDocument(ctx, "doc-1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Len(t, list, 1)
}

func TestComparisonGetByPair(t *testing.T) {
	factory := newTestFactory(t)
	defer func() { _ = factory.Close() }()
	ctx := context.Background()
	cmps := factory.Comparisons()

	_, _, err := cmps.CreateOrGet(ctx, sampleComparison("doc-1", "v1", "v2"))
	require.NoError(t, err)

	got, err := cmps.GetByPair(ctx, "doc-1", "v1", "v2")
	require.NoError(t, err)
	assert.Equal(t, "Reworded the introduction", got.ChangeSummary)

	_, err = cmps.GetByPair(ctx, "doc-1", "v2", "v3")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestComparisonDelete(t *testing.T) {
	factory := newTestFactory(t)
	defer func() { _ = factory.Close() }()
	ctx := context.Background()
	cmps := factory.Comparisons()

	cmp := sampleComparison("doc-1", "v1", "v2")
	_, _, err := cmps.CreateOrGet(ctx, cmp)
	require.NoError(t, err)

	require.NoError(t, cmps.Delete(ctx, cmp.ID))
	assert.ErrorIs(t, cmps.Delete(ctx, cmp.ID), gorm.ErrRecordNotFound)

	_, err = cmps.Get(ctx, cmp.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func appendEvent(t *testing.T, us UsageStore, id, user string, at time.Time, success, cached bool, cost float64, tokens int) {
	t.Helper()
	err := us.Append(context.Background(), &model.UsageEvent{
		ID:              id,
		UserID:          user,
		OperationType:   model.OperationVersionComparison,
		Model:           "gpt-4o-mini",
		TokensUsed:      tokens,
		EstimatedCost:   decimal.NewFromFloat(cost),
		ResponseTime:    100,
		Success:         success,
		ServedFromCache: cached,
		CreatedAt:       at,
	})
	require.NoError(t, err)
}

func TestUsageCountsAndCost(t *testing.T) {
	factory := newTestFactory(t)
	defer func() { _ = factory.Close() }()
	ctx := context.Background()
	us := factory.Usage()

	now := time.Now().UTC()
	appendEvent(t, us, "evt-1", "alice", now.Add(-30*time.Minute), true, false, 0.0003, 2000)
	appendEvent(t, us, "evt-2", "alice", now.Add(-2*time.Hour), true, false, 0.0002, 1000)
	appendEvent(t, us, "evt-3", "bob", now.Add(-10*time.Minute), true, true, 0, 0)

	hourAgo := now.Add(-time.Hour)
	count, err := us.CountByUserSince(ctx, "alice", hourAgo)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = us.CountByUserSince(ctx, "alice", now.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	cost, err := us.SumCostByUserSince(ctx, "alice", now.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.NewFromFloat(0.0005)), "got %s", cost)

	cost, err = us.SumCostByUserSince(ctx, "carol", hourAgo)
	require.NoError(t, err)
	assert.True(t, cost.IsZero())

	count, err = us.CountByUserOperationSince(ctx, "alice", model.OperationVersionComparison, now.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestUsageAggregate(t *testing.T) {
	factory := newTestFactory(t)
	defer func() { _ = factory.Close() }()
	ctx := context.Background()
	us := factory.Usage()

	now := time.Now().UTC()
	appendEvent(t, us, "evt-1", "alice", now.Add(-30*time.Minute), true, false, 0.0003, 2000)
	appendEvent(t, us, "evt-2", "alice", now.Add(-20*time.Minute), false, false, 0, 0)
	appendEvent(t, us, "evt-3", "alice", now.Add(-10*time.Minute), true, true, 0, 0)

	agg, err := us.Aggregate(ctx, UsageQuery{
		UserID: "alice",
		From:   now.Add(-time.Hour),
		To:     now.Add(time.Minute),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), agg.TotalOperations)
	assert.Equal(t, int64(2), agg.SuccessfulOperations)
	assert.Equal(t, int64(1), agg.FailedOperations)
	assert.Equal(t, int64(1), agg.CacheHits)
	assert.Equal(t, int64(2000), agg.TotalTokens)
	assert.True(t, agg.TotalCost.Equal(decimal.NewFromFloat(0.0003)), "got %s", agg.TotalCost)
	assert.Equal(t, int64(3), agg.ByOperationType[model.OperationVersionComparison])
	assert.Equal(t, int64(3), agg.ByModel["gpt-4o-mini"])
}

func TestUsageDailySeries(t *testing.T) {
	factory := newTestFactory(t)
	defer func() { _ = factory.Close() }()
	ctx := context.Background()
	us := factory.Usage()

	day1 := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)
	appendEvent(t, us, "evt-1", "alice", day1, true, false, 0.0001, 500)
	appendEvent(t, us, "evt-2", "alice", day1.Add(time.Hour), true, false, 0.0002, 900)
	appendEvent(t, us, "evt-3", "alice", day2, true, false, 0.0004, 1800)

	series, err := us.DailySeries(ctx, UsageQuery{
		UserID: "alice",
		From:   day1.Add(-time.Hour),
		To:     day2.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, int64(2), series[0].Operations)
	assert.True(t, series[0].Cost.Equal(decimal.NewFromFloat(0.0003)), "got %s", series[0].Cost)
	assert.Equal(t, int64(1), series[1].Operations)
}

func TestUsageMostExpensive(t *testing.T) {
	factory := newTestFactory(t)
	defer func() { _ = factory.Close() }()
	ctx := context.Background()
	us := factory.Usage()

	now := time.Now().UTC()
	appendEvent(t, us, "evt-cheap", "alice", now.Add(-30*time.Minute), true, false, 0.0001, 500)
	appendEvent(t, us, "evt-dear", "alice", now.Add(-20*time.Minute), true, false, 0.0009, 6000)

	events, err := us.MostExpensive(ctx, UsageQuery{
		From: now.Add(-time.Hour),
		To:   now.Add(time.Minute),
	}, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-dear", events[0].ID)
}

func TestVersionStore(t *testing.T) {
	factory := newTestFactory(t)
	defer func() { _ = factory.Close() }()
	ctx := context.Background()
	vs := factory.Versions()

	for i := 1; i <= 3; i++ {
		require.NoError(t, vs.Create(ctx, &model.DocumentVersion{
			ID:            fmt.Sprintf("v%d", i),
			DocumentID:    "doc-1",
			VersionNumber: i,
			StoragePath:   fmt.Sprintf("docs/doc-1/v%d.md", i),
			FileType:      "md",
		}))
	}

	got, err := vs.Get(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, 2, got.VersionNumber)

	list, err := vs.ListByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 1, list[0].VersionNumber)

	prev, latest, err := vs.LatestPair(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", prev.ID)
	assert.Equal(t, "v3", latest.ID)

	_, _, err = vs.LatestPair(ctx, "doc-none")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
