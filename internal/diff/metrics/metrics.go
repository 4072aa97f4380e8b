// Package metrics collects business metrics for the comparison service.
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DiffMetrics holds comparison pipeline counters.
type DiffMetrics struct {
	// Comparison request counters.
	comparisonsTotal  uint64
	comparisonsErrors uint64

	// Cache tier hits. A miss on every tier ends in an AI call.
	cacheHitsComparison uint64
	cacheHitsAIResult   uint64
	cacheMisses         uint64

	// Extraction counters.
	extractionsTotal  uint64
	extractionsErrors uint64

	// AI gateway counters.
	aiCallsTotal    uint64
	aiCallsDuration float64 // seconds
	aiCallsErrors   uint64
	aiTokensUsed    uint64

	// Regeneration worker counters.
	regenJobsTotal  uint64
	regenJobsErrors uint64

	startTime  time.Time
	durationMu sync.Mutex
}

var (
	globalDiffMetrics *DiffMetrics
	diffMetricsOnce   sync.Once
)

// GetDiffMetrics returns the global metrics instance.
func GetDiffMetrics() *DiffMetrics {
	diffMetricsOnce.Do(func() {
		globalDiffMetrics = &DiffMetrics{
			startTime: time.Now(),
		}
	})
	return globalDiffMetrics
}

// CacheTier identifies which cache tier served a comparison.
type CacheTier int

const (
	CacheTierNone CacheTier = iota
	CacheTierComparison
	CacheTierAIResult
)

// RecordComparison records one comparison request outcome.
func (m *DiffMetrics) RecordComparison(tier CacheTier, err error) {
	atomic.AddUint64(&m.comparisonsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.comparisonsErrors, 1)
		return
	}
	switch tier {
	case CacheTierComparison:
		atomic.AddUint64(&m.cacheHitsComparison, 1)
	case CacheTierAIResult:
		atomic.AddUint64(&m.cacheHitsAIResult, 1)
	default:
		atomic.AddUint64(&m.cacheMisses, 1)
	}
}

// RecordExtraction records one text extraction.
func (m *DiffMetrics) RecordExtraction(err error) {
	atomic.AddUint64(&m.extractionsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.extractionsErrors, 1)
	}
}

// RecordAICall records one gateway call.
func (m *DiffMetrics) RecordAICall(duration time.Duration, tokens int, err error) {
	atomic.AddUint64(&m.aiCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.aiCallsErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.aiCallsDuration += duration.Seconds()
	m.durationMu.Unlock()

	if tokens > 0 {
		atomic.AddUint64(&m.aiTokensUsed, uint64(tokens))
	}
}

// RecordRegenJob records one background regeneration job.
func (m *DiffMetrics) RecordRegenJob(err error) {
	atomic.AddUint64(&m.regenJobsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.regenJobsErrors, 1)
	}
}

// Export renders Prometheus text format.
func (m *DiffMetrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	counter := func(name, help string, value uint64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, value))
	}

	counter("comparisons_total", "Total comparison requests.", atomic.LoadUint64(&m.comparisonsTotal))
	counter("comparisons_errors_total", "Failed comparison requests.", atomic.LoadUint64(&m.comparisonsErrors))
	counter("cache_hits_comparison_total", "Comparisons served from the comparison cache.", atomic.LoadUint64(&m.cacheHitsComparison))
	counter("cache_hits_ai_result_total", "Comparisons served from the content-addressed result cache.", atomic.LoadUint64(&m.cacheHitsAIResult))
	counter("cache_misses_total", "Comparisons that required an AI call.", atomic.LoadUint64(&m.cacheMisses))

	hits := atomic.LoadUint64(&m.cacheHitsComparison) + atomic.LoadUint64(&m.cacheHitsAIResult)
	total := hits + atomic.LoadUint64(&m.cacheMisses)
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	sb.WriteString(fmt.Sprintf("# HELP %s_cache_hit_rate Cache hit rate (0-1).\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_cache_hit_rate gauge\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_cache_hit_rate %.4f\n\n", prefix, hitRate))

	counter("extractions_total", "Total text extractions.", atomic.LoadUint64(&m.extractionsTotal))
	counter("extractions_errors_total", "Failed text extractions.", atomic.LoadUint64(&m.extractionsErrors))

	counter("ai_calls_total", "Total AI gateway calls.", atomic.LoadUint64(&m.aiCallsTotal))
	counter("ai_calls_errors_total", "Failed AI gateway calls.", atomic.LoadUint64(&m.aiCallsErrors))
	counter("ai_tokens_used_total", "Total tokens consumed.", atomic.LoadUint64(&m.aiTokensUsed))

	m.durationMu.Lock()
	aiDuration := m.aiCallsDuration
	m.durationMu.Unlock()
	sb.WriteString(fmt.Sprintf("# HELP %s_ai_calls_duration_seconds_total Total AI call duration.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_ai_calls_duration_seconds_total counter\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_ai_calls_duration_seconds_total %.6f\n\n", prefix, aiDuration))

	counter("regen_jobs_total", "Total background regeneration jobs.", atomic.LoadUint64(&m.regenJobsTotal))
	counter("regen_jobs_errors_total", "Failed background regeneration jobs.", atomic.LoadUint64(&m.regenJobsErrors))

	uptime := time.Since(m.startTime).Seconds()
	sb.WriteString(fmt.Sprintf("# HELP %s_uptime_seconds Service uptime in seconds.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_uptime_seconds gauge\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_uptime_seconds %.2f\n\n", prefix, uptime))

	return sb.String()
}

// Stats returns the current counters for the stats API.
func (m *DiffMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	aiDuration := m.aiCallsDuration
	m.durationMu.Unlock()

	aiTotal := atomic.LoadUint64(&m.aiCallsTotal)
	avgAIDuration := 0.0
	if aiTotal > 0 {
		avgAIDuration = aiDuration / float64(aiTotal)
	}

	hits := atomic.LoadUint64(&m.cacheHitsComparison) + atomic.LoadUint64(&m.cacheHitsAIResult)
	total := hits + atomic.LoadUint64(&m.cacheMisses)
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return map[string]interface{}{
		"comparisons": map[string]interface{}{
			"total":  atomic.LoadUint64(&m.comparisonsTotal),
			"errors": atomic.LoadUint64(&m.comparisonsErrors),
		},
		"cache": map[string]interface{}{
			"hits_comparison": atomic.LoadUint64(&m.cacheHitsComparison),
			"hits_ai_result":  atomic.LoadUint64(&m.cacheHitsAIResult),
			"misses":          atomic.LoadUint64(&m.cacheMisses),
			"hit_rate":        hitRate,
		},
		"extraction": map[string]interface{}{
			"total":  atomic.LoadUint64(&m.extractionsTotal),
			"errors": atomic.LoadUint64(&m.extractionsErrors),
		},
		"ai": map[string]interface{}{
			"calls_total":         aiTotal,
			"total_duration_secs": aiDuration,
			"avg_duration_secs":   avgAIDuration,
			"errors":              atomic.LoadUint64(&m.aiCallsErrors),
			"tokens_used":         atomic.LoadUint64(&m.aiTokensUsed),
		},
		"regeneration": map[string]interface{}{
			"jobs_total": atomic.LoadUint64(&m.regenJobsTotal),
			"errors":     atomic.LoadUint64(&m.regenJobsErrors),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset clears all counters. Test helper.
func (m *DiffMetrics) Reset() {
	atomic.StoreUint64(&m.comparisonsTotal, 0)
	atomic.StoreUint64(&m.comparisonsErrors, 0)
	atomic.StoreUint64(&m.cacheHitsComparison, 0)
	atomic.StoreUint64(&m.cacheHitsAIResult, 0)
	atomic.StoreUint64(&m.cacheMisses, 0)
	atomic.StoreUint64(&m.extractionsTotal, 0)
	atomic.StoreUint64(&m.extractionsErrors, 0)
	atomic.StoreUint64(&m.aiCallsTotal, 0)
	atomic.StoreUint64(&m.aiCallsErrors, 0)
	atomic.StoreUint64(&m.aiTokensUsed, 0)
	atomic.StoreUint64(&m.regenJobsTotal, 0)
	atomic.StoreUint64(&m.regenJobsErrors, 0)

	m.durationMu.Lock()
	m.aiCallsDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
