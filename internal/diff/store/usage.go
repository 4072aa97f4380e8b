package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kart-io/revdiff/internal/model"
)

type usage struct {
	db *gorm.DB
}

func newUsage(db *gorm.DB) *usage {
	return &usage{db}
}

// Append writes one usage event. Events are never updated afterwards.
func (u *usage) Append(ctx context.Context, event *model.UsageEvent) error {
	return u.db.WithContext(ctx).Create(event).Error
}

// CountByUserSince counts events for the user created at or after since.
func (u *usage) CountByUserSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := u.db.WithContext(ctx).Model(&model.UsageEvent{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	return count, err
}

// SumCostByUserSince totals estimated cost for the user since the cutoff.
func (u *usage) SumCostByUserSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := u.db.WithContext(ctx).Model(&model.UsageEvent{}).
		Select("SUM(estimated_cost)").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// CountByUserOperationSince counts events for one operation type.
func (u *usage) CountByUserOperationSince(ctx context.Context, userID, operationType string, since time.Time) (int64, error) {
	var count int64
	err := u.db.WithContext(ctx).Model(&model.UsageEvent{}).
		Where("user_id = ? AND operation_type = ? AND created_at >= ?", userID, operationType, since).
		Count(&count).Error
	return count, err
}

func (u *usage) scoped(ctx context.Context, q UsageQuery) *gorm.DB {
	query := u.db.WithContext(ctx).Model(&model.UsageEvent{}).
		Where("created_at >= ? AND created_at < ?", q.From, q.To)
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}
	return query
}

// Aggregate computes counts, tokens, cost and breakdowns over a range.
func (u *usage) Aggregate(ctx context.Context, q UsageQuery) (*UsageAggregate, error) {
	agg := &UsageAggregate{
		TotalCost:       decimal.Zero,
		ByOperationType: make(map[string]int64),
		ByModel:         make(map[string]int64),
	}

	var totals struct {
		Total       int64
		Successful  int64
		CacheHits   int64
		TotalTokens int64
		TotalCost   decimal.NullDecimal
		AvgResponse *float64
	}
	err := u.scoped(ctx, q).
		Select("COUNT(*) AS total, " +
			"SUM(CASE WHEN success THEN 1 ELSE 0 END) AS successful, " +
			"SUM(CASE WHEN served_from_cache THEN 1 ELSE 0 END) AS cache_hits, " +
			"SUM(tokens_used) AS total_tokens, " +
			"SUM(estimated_cost) AS total_cost, " +
			"AVG(response_time_ms) AS avg_response").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	agg.TotalOperations = totals.Total
	agg.SuccessfulOperations = totals.Successful
	agg.FailedOperations = totals.Total - totals.Successful
	agg.CacheHits = totals.CacheHits
	agg.TotalTokens = totals.TotalTokens
	if totals.TotalCost.Valid {
		agg.TotalCost = totals.TotalCost.Decimal
	}
	if totals.AvgResponse != nil {
		agg.AvgResponseTimeMs = *totals.AvgResponse
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var byOp []bucket
	if err := u.scoped(ctx, q).
		Select("operation_type AS key, COUNT(*) AS count").
		Group("operation_type").
		Scan(&byOp).Error; err != nil {
		return nil, err
	}
	for _, b := range byOp {
		agg.ByOperationType[b.Key] = b.Count
	}

	var byModel []bucket
	if err := u.scoped(ctx, q).
		Select("model AS key, COUNT(*) AS count").
		Group("model").
		Scan(&byModel).Error; err != nil {
		return nil, err
	}
	for _, b := range byModel {
		if b.Key == "" {
			continue
		}
		agg.ByModel[b.Key] = b.Count
	}

	return agg, nil
}

// DailySeries returns per-day operation counts and costs, ascending by day.
// Aggregated in Go since date bucketing SQL differs across the supported
// drivers.
func (u *usage) DailySeries(ctx context.Context, q UsageQuery) ([]DailyUsage, error) {
	var rows []struct {
		CreatedAt     time.Time
		EstimatedCost decimal.Decimal
	}
	err := u.scoped(ctx, q).
		Select("created_at, estimated_cost").
		Order("created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var series []DailyUsage
	for _, row := range rows {
		day := row.CreatedAt.UTC().Truncate(24 * time.Hour)
		if len(series) == 0 || !series[len(series)-1].Day.Equal(day) {
			series = append(series, DailyUsage{Day: day, Cost: decimal.Zero})
		}
		last := &series[len(series)-1]
		last.Operations++
		last.Cost = last.Cost.Add(row.EstimatedCost)
	}
	return series, nil
}

// MostExpensive returns the highest-cost events in a range.
func (u *usage) MostExpensive(ctx context.Context, q UsageQuery, limit int) ([]*model.UsageEvent, error) {
	var events []*model.UsageEvent
	err := u.scoped(ctx, q).
		Order("estimated_cost DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

var _ UsageStore = (*usage)(nil)
