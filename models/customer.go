// Package models contains domain entities and business models for the reputation platform
package models

import (
	"time"

	"github.com/revlyhq/revly-backend/utils"
)

// CustomerStatus represents a customer's position in the review-request lifecycle
type CustomerStatus string

const (
	CustomerStatusPending  CustomerStatus = "pending"
	CustomerStatusSent     CustomerStatus = "sent"
	CustomerStatusClicked  CustomerStatus = "clicked"
	CustomerStatusReviewed CustomerStatus = "reviewed"
	CustomerStatusFailed   CustomerStatus = "failed"
)

func (s CustomerStatus) String() string {
	return string(s)
}

func (s CustomerStatus) Valid() bool {
	switch s {
	case CustomerStatusPending, CustomerStatusSent, CustomerStatusClicked,
		CustomerStatusReviewed, CustomerStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the lifecycle is complete; no further review
// requests are ever queued for a terminal customer.
func (s CustomerStatus) Terminal() bool {
	return s == CustomerStatusReviewed
}

// CanTransitionTo reports whether the lifecycle permits moving from s to target.
// The forward path is pending → sent → clicked → reviewed. Resending is allowed
// from pending, sent, and failed; a customer who already clicked is not
// re-solicited. Failed is reachable from any non-terminal state on delivery
// error or missing contact info.
func (s CustomerStatus) CanTransitionTo(target CustomerStatus) bool {
	if s.Terminal() {
		return false
	}
	switch target {
	case CustomerStatusSent:
		return s == CustomerStatusPending || s == CustomerStatusSent || s == CustomerStatusFailed
	case CustomerStatusClicked:
		return s == CustomerStatusSent
	case CustomerStatusReviewed:
		return s == CustomerStatusClicked
	case CustomerStatusFailed:
		return true
	}
	return false
}

type Customer struct {
	ID       string         `gorm:"primaryKey;size:64" json:"id"`
	TenantID string         `gorm:"primaryKey;size:64;index:idx_customers_tenant_id;uniqueIndex:uk_customers_tenant_phone,priority:1" json:"tenant_id"`
	Name     string         `gorm:"size:255;not null" json:"name"`
	Phone    string         `gorm:"size:20;uniqueIndex:uk_customers_tenant_phone,priority:2" json:"phone"`
	Status   CustomerStatus `gorm:"size:16;not null;default:'pending';index:idx_customers_status" json:"status"`
	AddedAt  time.Time      `gorm:"not null;index:idx_customers_added_at" json:"added_at"`

	// Feedback is kept in insertion order; order matters for display, not identity
	Feedback []FeedbackEntry `gorm:"foreignKey:CustomerID,TenantID;references:ID,TenantID" json:"feedback,omitempty"`
}

func (Customer) TableName() string {
	return "customers"
}

// IsUnattributed reports whether this is the reserved pseudo-customer that
// collects feedback which could not be attributed to any known customer.
func (c *Customer) IsUnattributed() bool {
	return c.ID == utils.UnattributedCustomerID
}

