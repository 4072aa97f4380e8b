// Package model provides data models for the revdiff service.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ChangeType is a bitset describing the nature of a diff.
type ChangeType int

const (
	// ChangeTypeAddition marks added content.
	ChangeTypeAddition ChangeType = 1 << iota
	// ChangeTypeDeletion marks removed content.
	ChangeTypeDeletion
	// ChangeTypeStructural marks structural or formatting changes.
	ChangeTypeStructural
	// ChangeTypeContentModification is the base flag set on every comparison.
	ChangeTypeContentModification
)

// Has reports whether all flags in mask are set.
func (t ChangeType) Has(mask ChangeType) bool {
	return t&mask == mask
}

// String returns a comma-joined list of set flags.
func (t ChangeType) String() string {
	var parts []string
	if t.Has(ChangeTypeAddition) {
		parts = append(parts, "addition")
	}
	if t.Has(ChangeTypeDeletion) {
		parts = append(parts, "deletion")
	}
	if t.Has(ChangeTypeStructural) {
		parts = append(parts, "structural")
	}
	if t.Has(ChangeTypeContentModification) {
		parts = append(parts, "content_modification")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// Significance is the ordinal severity of a detected change.
// Higher values are more severe.
type Significance int

const (
	SignificanceLow Significance = iota + 1
	SignificanceMedium
	SignificanceHigh
	SignificanceCritical
)

// String implements fmt.Stringer.
func (s Significance) String() string {
	switch s {
	case SignificanceLow:
		return "low"
	case SignificanceMedium:
		return "medium"
	case SignificanceHigh:
		return "high"
	case SignificanceCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Comparison is one computed diff between two versions of one document.
// Version IDs are order-normalized (FromVersionID < ToVersionID) before any
// lookup, store or cache operation, so the uniqueness constraint and the
// cache identity always agree. Rows are immutable after creation.
type Comparison struct {
	ID            string `json:"id" gorm:"primaryKey;type:varchar(64)"`
	DocumentID    string `json:"document_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_comparison_identity,priority:1;index:idx_comparison_document"`
	FromVersionID string `json:"from_version_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_comparison_identity,priority:2"`
	ToVersionID   string `json:"to_version_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_comparison_identity,priority:3"`

	ChangeSummary   string          `json:"change_summary" gorm:"type:text;not null"`
	DetailedChanges string          `json:"detailed_changes,omitempty" gorm:"type:text"`
	ChangeType      ChangeType      `json:"change_type" gorm:"not null;default:0"`
	Significance    Significance    `json:"significance" gorm:"not null;default:2;index:idx_comparison_significance"`
	AIModel         string          `json:"ai_model" gorm:"type:varchar(128);not null"`
	ConfidenceScore float64         `json:"confidence_score,omitempty"`
	ProcessingTime  int64           `json:"processing_time_ms" gorm:"column:processing_time_ms"`
	TokensUsed      int             `json:"tokens_used,omitempty"`
	EstimatedCost   decimal.Decimal `json:"estimated_cost" gorm:"type:decimal(12,6)"`
	GeneratedAt     time.Time       `json:"generated_at" gorm:"index:idx_comparison_generated_at"`
	CreatedAt       time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for Comparison.
func (Comparison) TableName() string {
	return "diff_comparisons"
}
