package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/revdiff/internal/diff/biz"
	"github.com/kart-io/revdiff/internal/diff/metrics"
	"github.com/kart-io/revdiff/pkg/errors"
	"github.com/kart-io/revdiff/pkg/response"
)

// defaultStatsWindow is used when the caller gives no explicit range.
const defaultStatsWindow = 30 * 24 * time.Hour

// UsageHandler handles usage accounting and statistics requests.
type UsageHandler struct {
	tracker *biz.UsageTracker
	stats   *biz.StatsService
}

// NewUsageHandler creates a UsageHandler.
func NewUsageHandler(tracker *biz.UsageTracker, stats *biz.StatsService) *UsageHandler {
	return &UsageHandler{tracker: tracker, stats: stats}
}

// Limits returns a user's current rate-limit standing.
func (h *UsageHandler) Limits(c *gin.Context) {
	snapshot, err := h.tracker.GetRateLimitSnapshot(c.Request.Context(), c.Param("user"))
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, snapshot)
}

// UserStats returns one user's usage aggregate over a range.
func (h *UsageHandler) UserStats(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		response.Fail(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	agg, err := h.stats.UserStats(c.Request.Context(), c.Param("user"), from, to)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, agg)
}

// SystemStats returns the system-wide usage aggregate plus runtime counters.
func (h *UsageHandler) SystemStats(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		response.Fail(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	agg, err := h.stats.SystemStats(c.Request.Context(), from, to)
	if err != nil {
		response.FailWithError(c, err)
		return
	}

	errorRate, err := h.stats.ErrorRate(c.Request.Context(), from, to)
	if err != nil {
		response.FailWithError(c, err)
		return
	}

	response.OK(c, gin.H{
		"usage":      agg,
		"error_rate": errorRate,
		"runtime":    metrics.GetDiffMetrics().Stats(),
	})
}

// Trends returns the daily usage series with direction classification.
// An optional ?user= scopes the series to one user.
func (h *UsageHandler) Trends(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		response.Fail(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	report, err := h.stats.Trends(c.Request.Context(), c.Query("user"), from, to)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, report)
}

// MostExpensive returns the costliest operations in a range.
func (h *UsageHandler) MostExpensive(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		response.Fail(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	limit := queryInt(c, "limit", 10)
	if limit < 1 || limit > 100 {
		limit = 10
	}

	events, err := h.stats.MostExpensive(c.Request.Context(), from, to, limit)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, events)
}

// Metrics renders Prometheus text format.
func (h *UsageHandler) Metrics(c *gin.Context) {
	c.String(200, metrics.GetDiffMetrics().Export("revdiff", "diff"))
}

// parseRange reads optional RFC3339 `from`/`to` query parameters, defaulting
// to the last 30 days.
func parseRange(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.Add(-defaultStatsWindow)
	to := now

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}
	return from, to, nil
}
