// Package store provides the persistence layer for the comparison pipeline:
// comparison rows, the append-only usage log and version metadata.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kart-io/revdiff/internal/model"
)

// Factory defines the factory interface for creating stores.
type Factory interface {
	Comparisons() ComparisonStore
	Usage() UsageStore
	Versions() VersionStore
	Close() error
}

// ComparisonStore defines comparison row storage. Version IDs in every method
// are expected to be order-normalized by the caller.
type ComparisonStore interface {
	// CreateOrGet inserts the comparison. When a concurrent writer already
	// inserted a row for the same identity triple, the existing row is
	// returned instead and created is false.
	CreateOrGet(ctx context.Context, cmp *model.Comparison) (result *model.Comparison, created bool, err error)

	Get(ctx context.Context, id string) (*model.Comparison, error)
	GetByPair(ctx context.Context, documentID, fromVersionID, toVersionID string) (*model.Comparison, error)
	ListByDocument(ctx context.Context, documentID string, offset, limit int) (int64, []*model.Comparison, error)
	Delete(ctx context.Context, id string) error
}

// UsageQuery scopes a usage aggregation.
type UsageQuery struct {
	UserID string // empty means system-wide
	From   time.Time
	To     time.Time
}

// UsageAggregate is the result of a usage aggregation over a date range.
type UsageAggregate struct {
	TotalOperations      int64            `json:"total_operations"`
	SuccessfulOperations int64            `json:"successful_operations"`
	FailedOperations     int64            `json:"failed_operations"`
	CacheHits            int64            `json:"cache_hits"`
	TotalTokens          int64            `json:"total_tokens"`
	TotalCost            decimal.Decimal  `json:"total_cost"`
	AvgResponseTimeMs    float64          `json:"avg_response_time_ms"`
	ByOperationType      map[string]int64 `json:"by_operation_type"`
	ByModel              map[string]int64 `json:"by_model"`
}

// DailyUsage is one day of a usage time series.
type DailyUsage struct {
	Day        time.Time       `json:"day"`
	Operations int64           `json:"operations"`
	Cost       decimal.Decimal `json:"cost"`
}

// UsageStore defines the append-only usage event log.
type UsageStore interface {
	Append(ctx context.Context, event *model.UsageEvent) error

	// CountByUserSince counts events for the user with created_at >= since.
	CountByUserSince(ctx context.Context, userID string, since time.Time) (int64, error)

	// SumCostByUserSince totals estimated cost for the user since the cutoff.
	SumCostByUserSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error)

	// CountByUserOperationSince counts events for one operation type.
	CountByUserOperationSince(ctx context.Context, userID, operationType string, since time.Time) (int64, error)

	// Aggregate computes counts, tokens, cost and breakdowns over a range.
	Aggregate(ctx context.Context, q UsageQuery) (*UsageAggregate, error)

	// DailySeries returns per-day operation counts and costs over a range,
	// ordered by day ascending. Days without events are omitted.
	DailySeries(ctx context.Context, q UsageQuery) ([]DailyUsage, error)

	// MostExpensive returns the highest-cost events in a range.
	MostExpensive(ctx context.Context, q UsageQuery, limit int) ([]*model.UsageEvent, error)
}

// VersionStore defines version metadata storage.
type VersionStore interface {
	Create(ctx context.Context, version *model.DocumentVersion) error
	Get(ctx context.Context, id string) (*model.DocumentVersion, error)
	ListByDocument(ctx context.Context, documentID string) ([]*model.DocumentVersion, error)
	LatestPair(ctx context.Context, documentID string) (previous, latest *model.DocumentVersion, err error)
}
