package biz

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/shopspring/decimal"

	"github.com/kart-io/revdiff/internal/diff/store"
	"github.com/kart-io/revdiff/internal/model"
	"github.com/kart-io/revdiff/pkg/cache"
	"github.com/kart-io/revdiff/pkg/id"
)

// RateLimits holds the per-user operation budgets.
type RateLimits struct {
	Daily        int            `json:"daily"`
	Hourly       int            `json:"hourly"`
	PerOperation map[string]int `json:"per_operation,omitempty"`
}

// LimitCommand is a typed rate-limit settings change. Using a closed set of
// command types keeps invalid combinations unrepresentable.
type LimitCommand interface {
	applyTo(*RateLimits)
}

// SetDailyLimit replaces the daily budget.
type SetDailyLimit struct{ Limit int }

func (c SetDailyLimit) applyTo(l *RateLimits) { l.Daily = c.Limit }

// SetHourlyLimit replaces the hourly budget.
type SetHourlyLimit struct{ Limit int }

func (c SetHourlyLimit) applyTo(l *RateLimits) { l.Hourly = c.Limit }

// SetOperationLimit sets an hourly sub-limit for one operation type.
type SetOperationLimit struct {
	Operation string
	Limit     int
}

func (c SetOperationLimit) applyTo(l *RateLimits) {
	if l.PerOperation == nil {
		l.PerOperation = make(map[string]int)
	}
	l.PerOperation[c.Operation] = c.Limit
}

// RateLimitSnapshot reports a user's current standing against the limits.
type RateLimitSnapshot struct {
	UserID       string          `json:"user_id"`
	DailyUsed    int64           `json:"daily_used"`
	DailyLimit   int             `json:"daily_limit"`
	HourlyUsed   int64           `json:"hourly_used"`
	HourlyLimit  int             `json:"hourly_limit"`
	PerOperation map[string]int  `json:"per_operation,omitempty"`
	CostToday    decimal.Decimal `json:"cost_today"`
	ResetsAt     time.Time       `json:"resets_at"`
}

// UsageTracker appends usage events, enforces sliding-window rate limits and
// serves rate-limit snapshots. The rate-limit check fails open: an internal
// query error must never block a legitimate user.
type UsageTracker struct {
	usage       store.UsageStore
	cache       cache.Store
	snapshotTTL time.Duration

	mu     sync.RWMutex
	limits RateLimits

	now func() time.Time
}

// UsageTrackerOption configures a UsageTracker.
type UsageTrackerOption func(*UsageTracker)

// WithTrackerClock overrides the time source. Intended for tests.
func WithTrackerClock(now func() time.Time) UsageTrackerOption {
	return func(t *UsageTracker) {
		t.now = now
	}
}

// NewUsageTracker creates a UsageTracker.
func NewUsageTracker(usage store.UsageStore, cacheStore cache.Store, limits RateLimits, snapshotTTL time.Duration, opts ...UsageTrackerOption) *UsageTracker {
	t := &UsageTracker{
		usage:       usage,
		cache:       cacheStore,
		snapshotTTL: snapshotTTL,
		limits:      limits,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ApplyLimitSettings applies the given settings commands atomically.
func (t *UsageTracker) ApplyLimitSettings(commands ...LimitCommand) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, cmd := range commands {
		cmd.applyTo(&t.limits)
	}
}

// Limits returns a copy of the current limit configuration.
func (t *UsageTracker) Limits() RateLimits {
	t.mu.RLock()
	defer t.mu.RUnlock()

	copied := t.limits
	if t.limits.PerOperation != nil {
		copied.PerOperation = make(map[string]int, len(t.limits.PerOperation))
		for op, limit := range t.limits.PerOperation {
			copied.PerOperation[op] = limit
		}
	}
	return copied
}

// LogUsage appends the event and invalidates every cached statistic derived
// from that user, so the next snapshot or stats read sees the new event.
func (t *UsageTracker) LogUsage(ctx context.Context, event *model.UsageEvent) error {
	if event.ID == "" {
		event.ID = id.NewULID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = t.now().UTC()
	}

	if err := t.usage.Append(ctx, event); err != nil {
		return err
	}

	if event.UserID != "" {
		if _, err := t.cache.RemoveByPrefix(ctx, userStatsPrefix(event.UserID)); err != nil {
			logger.Warnw("Failed to invalidate user stats cache", "user", event.UserID, "err", err)
		}
		if err := t.cache.Remove(ctx, snapshotKey(event.UserID)); err != nil {
			logger.Warnw("Failed to invalidate rate-limit snapshot", "user", event.UserID, "err", err)
		}
	}
	if _, err := t.cache.RemoveByPrefix(ctx, keyPrefixSysStats); err != nil {
		logger.Warnw("Failed to invalidate system stats cache", "err", err)
	}
	return nil
}

// CheckRateLimit reports whether the user may perform one more operation of
// the given type. Fails open on any underlying query error.
func (t *UsageTracker) CheckRateLimit(ctx context.Context, userID, operationType string) bool {
	limits := t.Limits()
	now := t.now().UTC()
	dayStart := startOfDay(now)
	hourStart := now.Truncate(time.Hour)

	dailyCount, err := t.usage.CountByUserSince(ctx, userID, dayStart)
	if err != nil {
		logger.Warnw("Rate limit daily count failed, allowing request", "user", userID, "err", err)
		return true
	}
	hourlyCount, err := t.usage.CountByUserSince(ctx, userID, hourStart)
	if err != nil {
		logger.Warnw("Rate limit hourly count failed, allowing request", "user", userID, "err", err)
		return true
	}

	if dailyCount >= int64(limits.Daily) || hourlyCount >= int64(limits.Hourly) {
		return false
	}

	if opLimit, ok := limits.PerOperation[operationType]; ok {
		opCount, err := t.usage.CountByUserOperationSince(ctx, userID, operationType, hourStart)
		if err != nil {
			logger.Warnw("Rate limit operation count failed, allowing request", "user", userID, "operation", operationType, "err", err)
			return true
		}
		if opCount >= int64(opLimit) {
			return false
		}
	}
	return true
}

// GetRateLimitSnapshot returns the user's current usage standing. Snapshots
// are cached briefly since they are read far more often than they change.
func (t *UsageTracker) GetRateLimitSnapshot(ctx context.Context, userID string) (*RateLimitSnapshot, error) {
	key := snapshotKey(userID)

	var cached RateLimitSnapshot
	if err := cache.GetJSON(ctx, t.cache, key, &cached); err == nil {
		return &cached, nil
	}

	limits := t.Limits()
	now := t.now().UTC()
	dayStart := startOfDay(now)
	hourStart := now.Truncate(time.Hour)

	dailyCount, err := t.usage.CountByUserSince(ctx, userID, dayStart)
	if err != nil {
		return nil, err
	}
	hourlyCount, err := t.usage.CountByUserSince(ctx, userID, hourStart)
	if err != nil {
		return nil, err
	}
	costToday, err := t.usage.SumCostByUserSince(ctx, userID, dayStart)
	if err != nil {
		return nil, err
	}

	snapshot := &RateLimitSnapshot{
		UserID:       userID,
		DailyUsed:    dailyCount,
		DailyLimit:   limits.Daily,
		HourlyUsed:   hourlyCount,
		HourlyLimit:  limits.Hourly,
		PerOperation: limits.PerOperation,
		CostToday:    costToday,
		ResetsAt:     dayStart.Add(24 * time.Hour),
	}

	if err := cache.SetJSON(ctx, t.cache, key, snapshot, t.snapshotTTL); err != nil {
		logger.Warnw("Failed to cache rate-limit snapshot", "user", userID, "err", err)
	}
	return snapshot, nil
}

// startOfDay returns midnight UTC of t's day.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
