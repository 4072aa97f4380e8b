package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/kart-io/revdiff/internal/model"
)

type comparisons struct {
	db *gorm.DB
}

func newComparisons(db *gorm.DB) *comparisons {
	return &comparisons{db}
}

// CreateOrGet inserts the comparison row. A unique-violation from a
// concurrent writer is treated as a benign race: the winner's row is
// re-queried and returned.
func (c *comparisons) CreateOrGet(ctx context.Context, cmp *model.Comparison) (*model.Comparison, bool, error) {
	err := c.db.WithContext(ctx).Create(cmp).Error
	if err == nil {
		return cmp, true, nil
	}
	if !isDuplicateKey(err) {
		return nil, false, err
	}

	winner, getErr := c.GetByPair(ctx, cmp.DocumentID, cmp.FromVersionID, cmp.ToVersionID)
	if getErr != nil {
		return nil, false, errors.Join(err, getErr)
	}
	return winner, false, nil
}

// Get retrieves a comparison by ID.
func (c *comparisons) Get(ctx context.Context, id string) (*model.Comparison, error) {
	var cmp model.Comparison
	if err := c.db.WithContext(ctx).Where("id = ?", id).First(&cmp).Error; err != nil {
		return nil, err
	}
	return &cmp, nil
}

// GetByPair retrieves a comparison by its identity triple.
func (c *comparisons) GetByPair(ctx context.Context, documentID, fromVersionID, toVersionID string) (*model.Comparison, error) {
	var cmp model.Comparison
	err := c.db.WithContext(ctx).
		Where("document_id = ? AND from_version_id = ? AND to_version_id = ?", documentID, fromVersionID, toVersionID).
		First(&cmp).Error
	if err != nil {
		return nil, err
	}
	return &cmp, nil
}

// ListByDocument lists comparisons for a document, newest first.
func (c *comparisons) ListByDocument(ctx context.Context, documentID string, offset, limit int) (int64, []*model.Comparison, error) {
	var count int64
	var list []*model.Comparison

	query := c.db.WithContext(ctx).Model(&model.Comparison{}).Where("document_id = ?", documentID)
	if err := query.Count(&count).Error; err != nil {
		return 0, nil, err
	}

	err := query.Order("generated_at DESC").Offset(offset).Limit(limit).Find(&list).Error
	if err != nil {
		return 0, nil, err
	}
	return count, list, nil
}

// Delete removes a comparison row. Returns gorm.ErrRecordNotFound when no row
// matched.
func (c *comparisons) Delete(ctx context.Context, id string) error {
	result := c.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Comparison{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// isDuplicateKey reports whether err is a unique-constraint violation.
// TranslateError maps most drivers to gorm.ErrDuplicatedKey; the message
// check covers sqlite builds where translation is incomplete.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

var _ ComparisonStore = (*comparisons)(nil)
