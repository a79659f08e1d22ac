package models

import (
	"time"
)

// Subscription status values reported by the billing service
const (
	SubscriptionStatusActive = "active"
)

// CreditProfile is the cached shadow of the tenant's credit ledger. The
// authoritative state lives in the billing service; this copy is kept in redis
// with a short TTL and is allowed to be stale. RemainingCredits is nil when the
// plan is unlimited or the balance is unknown.
type CreditProfile struct {
	Status           string    `json:"status"`
	RemainingCredits *int64    `json:"remaining_credits,omitempty"`
	HasPlan          bool      `json:"has_plan"`
	FetchedAt        time.Time `json:"fetched_at"`
}

// Active reports whether the subscription is in good standing
func (p *CreditProfile) Active() bool {
	return p.Status == SubscriptionStatusActive
}

// HasCredits reports whether at least one send credit remains.
// A nil balance means unlimited or unknown and does not block a send.
func (p *CreditProfile) HasCredits() bool {
	return p.RemainingCredits == nil || *p.RemainingCredits > 0
}
