package model

import (
	"time"
)

// DocumentVersion is one historical version of a document. The raw file lives
// in external storage at StoragePath; this row carries the metadata the
// comparison pipeline needs.
type DocumentVersion struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	DocumentID    string    `json:"document_id" gorm:"type:varchar(64);not null;index:idx_version_document"`
	VersionNumber int       `json:"version_number" gorm:"not null"`
	StoragePath   string    `json:"storage_path" gorm:"type:varchar(512);not null"`
	FileType      string    `json:"file_type" gorm:"type:varchar(32)"`
	ContentHash   string    `json:"content_hash,omitempty" gorm:"type:varchar(64);index"`
	Size          int64     `json:"size"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for DocumentVersion.
func (DocumentVersion) TableName() string {
	return "diff_document_versions"
}
