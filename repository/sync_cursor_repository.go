package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/revlyhq/revly-backend/models"
	"github.com/revlyhq/revly-backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncCursorRepositoryImpl implements SyncCursorRepository using GORM
type SyncCursorRepositoryImpl struct {
	*BaseRepository[models.SyncCursor]
}

// NewSyncCursorRepository creates a new sync cursor repository instance
func NewSyncCursorRepository(db *gorm.DB) SyncCursorRepository {
	return &SyncCursorRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SyncCursor](db),
	}
}

// ByTenant returns the tenant's cursor, or nil when no poll has run yet
func (r *SyncCursorRepositoryImpl) ByTenant(ctx context.Context, tenantID string) (*models.SyncCursor, error) {
	db := r.getDB(ctx)

	var cursor models.SyncCursor
	err := db.Where("tenant_id = ?", tenantID).First(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find sync cursor for tenant %s: %w", tenantID, err)
	}

	return &cursor, nil
}

// Advance moves the watermark forward. A cursor already past `to` is left
// untouched so the watermark never moves backwards outside of Reset.
func (r *SyncCursorRepositoryImpl) Advance(ctx context.Context, tenantID string, to time.Time) error {
	db := r.getDB(ctx)

	to = utils.TimeToUTC(to)
	cursor := models.SyncCursor{
		TenantID:       tenantID,
		LastRemoteSync: &to,
		UpdatedAt:      utils.UTCNow(),
	}

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_remote_sync": gorm.Expr("GREATEST(COALESCE(sync_cursors.last_remote_sync, ?), ?)", to, to),
			"updated_at":       cursor.UpdatedAt,
		}),
	}).Create(&cursor).Error
	if err != nil {
		return fmt.Errorf("failed to advance sync cursor for tenant %s: %w", tenantID, err)
	}

	return nil
}

// Reset clears the watermark (bulk clear)
func (r *SyncCursorRepositoryImpl) Reset(ctx context.Context, tenantID string) error {
	db := r.getDB(ctx)

	err := db.Model(&models.SyncCursor{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]any{
			"last_remote_sync": nil,
			"updated_at":       utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to reset sync cursor for tenant %s: %w", tenantID, err)
	}

	return nil
}
