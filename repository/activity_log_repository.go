package repository

import (
	"context"
	"fmt"

	"github.com/revlyhq/revly-backend/models"
	"gorm.io/gorm"
)

// ActivityLogRepositoryImpl implements ActivityLogRepository using GORM.
// The table is append-only; there are deliberately no update or delete methods.
type ActivityLogRepositoryImpl struct {
	*BaseRepository[models.ActivityLog]
}

// NewActivityLogRepository creates a new activity log repository instance
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &ActivityLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ActivityLog](db),
	}
}

// ByTenant returns the newest activity records for a tenant
func (r *ActivityLogRepositoryImpl) ByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.ActivityLog, error) {
	db := r.getDB(ctx)

	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var entries []*models.ActivityLog
	err := db.
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list activity log for tenant %s: %w", tenantID, err)
	}

	return entries, nil
}
