package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/revdiff/internal/diff/store"
	"github.com/kart-io/revdiff/internal/model"
	"github.com/kart-io/revdiff/pkg/cache"
)

// Trend is the direction of a numeric time series.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Stats cache TTLs, chosen by volatility and query cost.
const (
	userStatsTTL     = 15 * time.Minute
	systemStatsTTL   = 15 * time.Minute
	trendTTL         = 30 * time.Minute
	mostExpensiveTTL = time.Hour
	errorRateTTL     = 15 * time.Minute
)

// TrendDirection classifies a series by comparing the mean of its first half
// against the mean of its second half. Changes within ±10% are Stable.
func TrendDirection(series []float64) Trend {
	if len(series) < 2 {
		return TrendStable
	}

	half := len(series) / 2
	firstMean := mean(series[:half])
	secondMean := mean(series[half:])

	if firstMean == 0 {
		return TrendStable
	}
	percentChange := (secondMean - firstMean) / firstMean * 100

	switch {
	case percentChange > 10:
		return TrendIncreasing
	case percentChange < -10:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// TrendReport combines a daily usage series with its direction.
type TrendReport struct {
	From            time.Time         `json:"from"`
	To              time.Time         `json:"to"`
	Series          []store.DailyUsage `json:"series"`
	OperationsTrend Trend             `json:"operations_trend"`
	CostTrend       Trend             `json:"cost_trend"`
}

// ErrorRateReport summarizes failure ratios over a range.
type ErrorRateReport struct {
	TotalOperations  int64   `json:"total_operations"`
	FailedOperations int64   `json:"failed_operations"`
	ErrorRate        float64 `json:"error_rate"`
}

// StatsService aggregates the usage log into cached reports.
type StatsService struct {
	usage store.UsageStore
	cache cache.Store
}

// NewStatsService creates a StatsService.
func NewStatsService(usage store.UsageStore, cacheStore cache.Store) *StatsService {
	return &StatsService{usage: usage, cache: cacheStore}
}

func rangeSuffix(from, to time.Time) string {
	return fmt.Sprintf("%d:%d", from.Unix(), to.Unix())
}

// cachedAggregate serves an aggregate from cache, computing and caching it on
// a miss. Cache failures degrade to a direct query.
func (s *StatsService) cachedAggregate(ctx context.Context, key string, ttl time.Duration, q store.UsageQuery) (*store.UsageAggregate, error) {
	var cached store.UsageAggregate
	if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
		return &cached, nil
	}

	agg, err := s.usage.Aggregate(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.cache, key, agg, ttl); err != nil {
		logger.Warnw("Failed to cache usage aggregate", "key", key, "err", err)
	}
	return agg, nil
}

// UserStats aggregates one user's usage over a range.
func (s *StatsService) UserStats(ctx context.Context, userID string, from, to time.Time) (*store.UsageAggregate, error) {
	key := userStatsPrefix(userID) + "agg:" + rangeSuffix(from, to)
	return s.cachedAggregate(ctx, key, userStatsTTL, store.UsageQuery{UserID: userID, From: from, To: to})
}

// SystemStats aggregates all usage over a range.
func (s *StatsService) SystemStats(ctx context.Context, from, to time.Time) (*store.UsageAggregate, error) {
	key := keyPrefixSysStats + "agg:" + rangeSuffix(from, to)
	return s.cachedAggregate(ctx, key, systemStatsTTL, store.UsageQuery{From: from, To: to})
}

// Trends computes the daily operation/cost series for a range and classifies
// both directions.
func (s *StatsService) Trends(ctx context.Context, userID string, from, to time.Time) (*TrendReport, error) {
	key := keyPrefixSysStats + "trend:" + userID + ":" + rangeSuffix(from, to)
	if userID != "" {
		key = userStatsPrefix(userID) + "trend:" + rangeSuffix(from, to)
	}

	var cached TrendReport
	if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
		return &cached, nil
	}

	series, err := s.usage.DailySeries(ctx, store.UsageQuery{UserID: userID, From: from, To: to})
	if err != nil {
		return nil, err
	}

	opSeries := make([]float64, len(series))
	costSeries := make([]float64, len(series))
	for i, day := range series {
		opSeries[i] = float64(day.Operations)
		costSeries[i], _ = day.Cost.Float64()
	}

	report := &TrendReport{
		From:            from,
		To:              to,
		Series:          series,
		OperationsTrend: TrendDirection(opSeries),
		CostTrend:       TrendDirection(costSeries),
	}
	if err := cache.SetJSON(ctx, s.cache, key, report, trendTTL); err != nil {
		logger.Warnw("Failed to cache trend report", "key", key, "err", err)
	}
	return report, nil
}

// MostExpensive returns the costliest operations in a range.
func (s *StatsService) MostExpensive(ctx context.Context, from, to time.Time, limit int) ([]*model.UsageEvent, error) {
	key := fmt.Sprintf("%sexpensive:%s:%d", keyPrefixSysStats, rangeSuffix(from, to), limit)

	var cached []*model.UsageEvent
	if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
		return cached, nil
	}

	events, err := s.usage.MostExpensive(ctx, store.UsageQuery{From: from, To: to}, limit)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.cache, key, events, mostExpensiveTTL); err != nil {
		logger.Warnw("Failed to cache expensive operations", "key", key, "err", err)
	}
	return events, nil
}

// ErrorRate reports the failure ratio over a range.
func (s *StatsService) ErrorRate(ctx context.Context, from, to time.Time) (*ErrorRateReport, error) {
	key := keyPrefixSysStats + "errors:" + rangeSuffix(from, to)

	var cached ErrorRateReport
	if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
		return &cached, nil
	}

	agg, err := s.usage.Aggregate(ctx, store.UsageQuery{From: from, To: to})
	if err != nil {
		return nil, err
	}

	report := &ErrorRateReport{
		TotalOperations:  agg.TotalOperations,
		FailedOperations: agg.FailedOperations,
	}
	if agg.TotalOperations > 0 {
		report.ErrorRate = float64(agg.FailedOperations) / float64(agg.TotalOperations)
	}
	if err := cache.SetJSON(ctx, s.cache, key, report, errorRateTTL); err != nil {
		logger.Warnw("Failed to cache error-rate report", "key", key, "err", err)
	}
	return report, nil
}
