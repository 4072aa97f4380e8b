package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation types recorded in the usage log.
const (
	OperationVersionComparison = "VersionComparison"
	OperationSummaryRegen      = "SummaryRegeneration"
)

// UsageEvent is one append-only accounting record for one AI-consuming
// operation. Events are never updated or deleted by this service; they feed
// both billing analytics and rate-limit window counting.
type UsageEvent struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID        string          `json:"user_id" gorm:"type:varchar(64);not null;index:idx_usage_user;index:idx_usage_user_created,priority:1"`
	OperationType string          `json:"operation_type" gorm:"type:varchar(64);not null;index:idx_usage_operation"`
	Model         string          `json:"model" gorm:"type:varchar(128);index:idx_usage_model"`
	TokensUsed    int             `json:"tokens_used"`
	EstimatedCost decimal.Decimal `json:"estimated_cost" gorm:"type:decimal(12,6)"`
	ResponseTime  int64           `json:"response_time_ms" gorm:"column:response_time_ms"`
	Success       bool            `json:"success" gorm:"not null"`
	ErrorMessage  string          `json:"error_message,omitempty" gorm:"type:varchar(512)"`

	DocumentID      string `json:"document_id,omitempty" gorm:"type:varchar(64)"`
	InputSize       int    `json:"input_size"`
	OutputSize      int    `json:"output_size"`
	ServedFromCache bool   `json:"served_from_cache"`

	// Audit fields, optional.
	IPAddress string `json:"ip_address,omitempty" gorm:"type:varchar(64)"`
	UserAgent string `json:"user_agent,omitempty" gorm:"type:varchar(256)"`
	Metadata  string `json:"metadata,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_usage_created;index:idx_usage_user_created,priority:2"`
}

// TableName specifies the table name for UsageEvent.
func (UsageEvent) TableName() string {
	return "diff_usage_events"
}
