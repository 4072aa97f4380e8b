package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/kart-io/revdiff/internal/model"
)

type versions struct {
	db *gorm.DB
}

func newVersions(db *gorm.DB) *versions {
	return &versions{db}
}

// Create stores a version metadata row.
func (v *versions) Create(ctx context.Context, version *model.DocumentVersion) error {
	return v.db.WithContext(ctx).Create(version).Error
}

// Get retrieves a version by ID.
func (v *versions) Get(ctx context.Context, id string) (*model.DocumentVersion, error) {
	var version model.DocumentVersion
	if err := v.db.WithContext(ctx).Where("id = ?", id).First(&version).Error; err != nil {
		return nil, err
	}
	return &version, nil
}

// ListByDocument lists a document's versions ordered by version number.
func (v *versions) ListByDocument(ctx context.Context, documentID string) ([]*model.DocumentVersion, error) {
	var list []*model.DocumentVersion
	err := v.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("version_number ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// LatestPair returns the two most recent versions of a document. Returns
// gorm.ErrRecordNotFound when the document has fewer than two versions.
func (v *versions) LatestPair(ctx context.Context, documentID string) (*model.DocumentVersion, *model.DocumentVersion, error) {
	var latest []*model.DocumentVersion
	err := v.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("version_number DESC").
		Limit(2).
		Find(&latest).Error
	if err != nil {
		return nil, nil, err
	}
	if len(latest) < 2 {
		return nil, nil, gorm.ErrRecordNotFound
	}
	return latest[1], latest[0], nil
}

var _ VersionStore = (*versions)(nil)
