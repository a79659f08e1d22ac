package models

import (
	"time"
)

// SyncCursor is the per-tenant watermark bounding incremental remote feedback
// fetches. LastRemoteSync is nil until the first poll completes, advances
// monotonically after every poll attempt (success or failure), and is reset to
// nil only by the bulk-clear operation so purged remote entries are not
// silently resurrected by the next poll.
type SyncCursor struct {
	TenantID       string     `gorm:"primaryKey;size:64" json:"tenant_id"`
	LastRemoteSync *time.Time `json:"last_remote_sync,omitempty"`
	UpdatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SyncCursor) TableName() string {
	return "sync_cursors"
}
