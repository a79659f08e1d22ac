package repository

import (
	"context"
	"fmt"

	"github.com/revlyhq/revly-backend/models"
	"gorm.io/gorm"
)

// FeedbackEntryRepositoryImpl implements FeedbackEntryRepository using GORM
type FeedbackEntryRepositoryImpl struct {
	*BaseRepository[models.FeedbackEntry]
}

// NewFeedbackEntryRepository creates a new feedback entry repository instance
func NewFeedbackEntryRepository(db *gorm.DB) FeedbackEntryRepository {
	return &FeedbackEntryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.FeedbackEntry](db),
	}
}

// DeleteByTenant removes every feedback entry of a tenant (bulk clear)
func (r *FeedbackEntryRepositoryImpl) DeleteByTenant(ctx context.Context, tenantID string) error {
	db := r.getDB(ctx)

	if err := db.Where("tenant_id = ?", tenantID).Delete(&models.FeedbackEntry{}).Error; err != nil {
		return fmt.Errorf("failed to delete feedback entries for tenant %s: %w", tenantID, err)
	}

	return nil
}
