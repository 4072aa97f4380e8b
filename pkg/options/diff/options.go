// Package diff provides configuration options for the comparison pipeline:
// cache TTL tiers, per-user rate limits and the regeneration worker pool.
package diff

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Options defines comparison pipeline configuration.
type Options struct {
	// VersionMetadataTTL is the cache TTL for version metadata lookups.
	VersionMetadataTTL time.Duration `json:"version-metadata-ttl" mapstructure:"version-metadata-ttl"`

	// ExtractedContentTTL is the cache TTL for extracted version text.
	ExtractedContentTTL time.Duration `json:"extracted-content-ttl" mapstructure:"extracted-content-ttl"`

	// AIResultTTL is the cache TTL for content-addressed AI results.
	AIResultTTL time.Duration `json:"ai-result-ttl" mapstructure:"ai-result-ttl"`

	// ComparisonTTL is the cache TTL for assembled comparison records.
	ComparisonTTL time.Duration `json:"comparison-ttl" mapstructure:"comparison-ttl"`

	// StatsSnapshotTTL is the cache TTL for the usage snapshot consulted by
	// the rate limiter.
	StatsSnapshotTTL time.Duration `json:"stats-snapshot-ttl" mapstructure:"stats-snapshot-ttl"`

	// DailyLimit is the default per-user comparison limit per rolling day.
	DailyLimit int `json:"daily-limit" mapstructure:"daily-limit"`

	// HourlyLimit is the default per-user comparison limit per rolling hour.
	HourlyLimit int `json:"hourly-limit" mapstructure:"hourly-limit"`

	// RegenWorkers is the size of the background regeneration worker pool.
	RegenWorkers int `json:"regen-workers" mapstructure:"regen-workers"`

	// MaxPromptChars caps the per-version content included in the AI prompt.
	MaxPromptChars int `json:"max-prompt-chars" mapstructure:"max-prompt-chars"`

	// StorageRoot is the directory holding stored version files.
	StorageRoot string `json:"storage-root" mapstructure:"storage-root"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		VersionMetadataTTL:  time.Hour,
		ExtractedContentTTL: 2 * time.Hour,
		AIResultTTL:         7 * 24 * time.Hour,
		ComparisonTTL:       24 * time.Hour,
		StatsSnapshotTTL:    5 * time.Minute,
		DailyLimit:          1000,
		HourlyLimit:         100,
		RegenWorkers:        4,
		MaxPromptChars:      2000,
		StorageRoot:         "./data/versions",
	}
}

// AddFlags adds flags for comparison pipeline options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&o.VersionMetadataTTL, "diff.version-metadata-ttl", o.VersionMetadataTTL, "Cache TTL for version metadata")
	fs.DurationVar(&o.ExtractedContentTTL, "diff.extracted-content-ttl", o.ExtractedContentTTL, "Cache TTL for extracted version content")
	fs.DurationVar(&o.AIResultTTL, "diff.ai-result-ttl", o.AIResultTTL, "Cache TTL for content-addressed AI results")
	fs.DurationVar(&o.ComparisonTTL, "diff.comparison-ttl", o.ComparisonTTL, "Cache TTL for assembled comparison records")
	fs.DurationVar(&o.StatsSnapshotTTL, "diff.stats-snapshot-ttl", o.StatsSnapshotTTL, "Cache TTL for the rate limiter usage snapshot")
	fs.IntVar(&o.DailyLimit, "diff.daily-limit", o.DailyLimit, "Default per-user comparisons per rolling day")
	fs.IntVar(&o.HourlyLimit, "diff.hourly-limit", o.HourlyLimit, "Default per-user comparisons per rolling hour")
	fs.IntVar(&o.RegenWorkers, "diff.regen-workers", o.RegenWorkers, "Background regeneration worker pool size")
	fs.IntVar(&o.MaxPromptChars, "diff.max-prompt-chars", o.MaxPromptChars, "Per-version content cap in the AI prompt")
	fs.StringVar(&o.StorageRoot, "diff.storage-root", o.StorageRoot, "Directory holding stored version files")
}

// Validate validates the comparison pipeline options.
func (o *Options) Validate() error {
	if o.DailyLimit <= 0 {
		return fmt.Errorf("diff.daily-limit must be positive")
	}
	if o.HourlyLimit <= 0 {
		return fmt.Errorf("diff.hourly-limit must be positive")
	}
	if o.HourlyLimit > o.DailyLimit {
		return fmt.Errorf("diff.hourly-limit cannot exceed diff.daily-limit")
	}
	if o.RegenWorkers <= 0 {
		return fmt.Errorf("diff.regen-workers must be positive")
	}
	if o.MaxPromptChars <= 0 {
		return fmt.Errorf("diff.max-prompt-chars must be positive")
	}
	if o.StorageRoot == "" {
		return fmt.Errorf("diff.storage-root is required")
	}
	return nil
}
