package repository

import (
	"context"
	"time"

	"github.com/revlyhq/revly-backend/models"
)

// CustomerRepository persists the per-tenant customer collection
type CustomerRepository interface {
	ByTenant(ctx context.Context, tenantID string) ([]*models.Customer, error)
	ByID(ctx context.Context, tenantID, id string) (*models.Customer, error)
	Save(ctx context.Context, customer *models.Customer) error
	SaveBatch(ctx context.Context, customers []*models.Customer) error
	UpdateStatus(ctx context.Context, tenantID, id string, status models.CustomerStatus) error
	Delete(ctx context.Context, tenantID, id string) error
}

// FeedbackEntryRepository persists immutable feedback entries
type FeedbackEntryRepository interface {
	Save(ctx context.Context, entry *models.FeedbackEntry) error
	SaveBatch(ctx context.Context, entries []*models.FeedbackEntry) error
	DeleteByTenant(ctx context.Context, tenantID string) error
}

// ActivityLogRepository appends to and reads the audit trail
type ActivityLogRepository interface {
	Save(ctx context.Context, entry *models.ActivityLog) error
	ByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.ActivityLog, error)
}

// SyncCursorRepository persists the per-tenant remote sync watermark
type SyncCursorRepository interface {
	ByTenant(ctx context.Context, tenantID string) (*models.SyncCursor, error)
	Advance(ctx context.Context, tenantID string, to time.Time) error
	Reset(ctx context.Context, tenantID string) error
}
