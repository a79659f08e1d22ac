package models

import (
	"time"

	"github.com/lib/pq"
)

// ActivityLog is the platform's only audit trail. Rows are append-only: every
// status transition, feedback arrival and queue event produces one record, and
// nothing ever updates or deletes them.
type ActivityLog struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	TenantID     string         `gorm:"size:64;not null;index:idx_activity_tenant_id" json:"tenant_id"`
	CustomerID   *string        `gorm:"size:64;index:idx_activity_customer_id" json:"customer_id,omitempty"`
	CustomerName string         `gorm:"size:255" json:"customer_name"`
	Action       string         `gorm:"size:64;not null;index:idx_activity_action" json:"action"`
	Description  *string        `gorm:"type:text" json:"description,omitempty"`
	CustomerIDs  pq.StringArray `gorm:"type:text[]" json:"customer_ids,omitempty"`
	Success      *bool          `gorm:"default:true;index:idx_activity_success" json:"success"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time      `gorm:"default:CURRENT_TIMESTAMP;index:idx_activity_created_at" json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_log"
}

// Activity action constants
const (
	ActivityActionRequestQueued    = "request_queued"
	ActivityActionRequestSent      = "request_sent"
	ActivityActionRequestFailed    = "request_failed"
	ActivityActionRequestSkipped   = "request_skipped"
	ActivityActionSendDenied       = "send_denied"
	ActivityActionLinkClicked      = "link_clicked"
	ActivityActionReviewReceived   = "review_received"
	ActivityActionFeedbackRecorded = "feedback_recorded"
	ActivityActionFeedbackCleared  = "feedback_cleared"
)
