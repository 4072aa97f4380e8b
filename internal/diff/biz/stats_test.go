package biz

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kart-io/revdiff/internal/diff/store"
	"github.com/kart-io/revdiff/internal/model"
	"github.com/kart-io/revdiff/pkg/cache"
)

func TestTrendDirection(t *testing.T) {
	cases := []struct {
		name   string
		series []float64
		want   Trend
	}{
		{"flat", []float64{10, 10, 10, 10}, TrendStable},
		{"increasing", []float64{10, 10, 20, 20}, TrendIncreasing},
		{"decreasing", []float64{20, 20, 10, 10}, TrendDecreasing},
		{"single point", []float64{5}, TrendStable},
		{"empty", nil, TrendStable},
		{"zero baseline", []float64{0, 0, 5, 5}, TrendStable},
		{"within threshold", []float64{100, 100, 105, 105}, TrendStable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TrendDirection(tc.series); got != tc.want {
				t.Errorf("TrendDirection(%v) = %v, want %v", tc.series, got, tc.want)
			}
		})
	}
}

// stubUsageStore counts aggregate queries so tests can observe cache hits.
type stubUsageStore struct {
	store.UsageStore

	aggregateCalls int
	aggregate      *store.UsageAggregate
	series         []store.DailyUsage
}

func (s *stubUsageStore) Aggregate(_ context.Context, _ store.UsageQuery) (*store.UsageAggregate, error) {
	s.aggregateCalls++
	return s.aggregate, nil
}

func (s *stubUsageStore) DailySeries(_ context.Context, _ store.UsageQuery) ([]store.DailyUsage, error) {
	return s.series, nil
}

func (s *stubUsageStore) MostExpensive(_ context.Context, _ store.UsageQuery, limit int) ([]*model.UsageEvent, error) {
	return nil, nil
}

func TestStatsService_UserStatsCached(t *testing.T) {
	stub := &stubUsageStore{
		aggregate: &store.UsageAggregate{
			TotalOperations:      10,
			SuccessfulOperations: 9,
			FailedOperations:     1,
			TotalCost:            decimal.RequireFromString("0.015"),
		},
	}
	svc := NewStatsService(stub, cache.NewMemoryStore(0))

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	first, err := svc.UserStats(context.Background(), "u1", from, to)
	if err != nil {
		t.Fatalf("UserStats returned error: %v", err)
	}
	second, err := svc.UserStats(context.Background(), "u1", from, to)
	if err != nil {
		t.Fatalf("UserStats returned error: %v", err)
	}

	if stub.aggregateCalls != 1 {
		t.Errorf("expected 1 aggregate query, got %d", stub.aggregateCalls)
	}
	if first.TotalOperations != second.TotalOperations || !first.TotalCost.Equal(second.TotalCost) {
		t.Error("cached aggregate differs from the computed one")
	}
}

func TestStatsService_Trends(t *testing.T) {
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	stub := &stubUsageStore{
		series: []store.DailyUsage{
			{Day: day, Operations: 10, Cost: decimal.RequireFromString("0.010")},
			{Day: day.AddDate(0, 0, 1), Operations: 10, Cost: decimal.RequireFromString("0.010")},
			{Day: day.AddDate(0, 0, 2), Operations: 30, Cost: decimal.RequireFromString("0.001")},
			{Day: day.AddDate(0, 0, 3), Operations: 30, Cost: decimal.RequireFromString("0.001")},
		},
	}
	svc := NewStatsService(stub, cache.NewMemoryStore(0))

	report, err := svc.Trends(context.Background(), "", day, day.AddDate(0, 0, 4))
	if err != nil {
		t.Fatalf("Trends returned error: %v", err)
	}

	if report.OperationsTrend != TrendIncreasing {
		t.Errorf("expected increasing operations trend, got %v", report.OperationsTrend)
	}
	if report.CostTrend != TrendDecreasing {
		t.Errorf("expected decreasing cost trend, got %v", report.CostTrend)
	}
	if len(report.Series) != 4 {
		t.Errorf("expected 4 days in the series, got %d", len(report.Series))
	}
}

func TestStatsService_ErrorRate(t *testing.T) {
	stub := &stubUsageStore{
		aggregate: &store.UsageAggregate{TotalOperations: 8, FailedOperations: 2},
	}
	svc := NewStatsService(stub, cache.NewMemoryStore(0))

	report, err := svc.ErrorRate(context.Background(), time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("ErrorRate returned error: %v", err)
	}
	if report.ErrorRate != 0.25 {
		t.Errorf("expected error rate 0.25, got %v", report.ErrorRate)
	}
}
