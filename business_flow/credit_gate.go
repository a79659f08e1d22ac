package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/revlyhq/revly-backend/app/services"
	"github.com/revlyhq/revly-backend/models"
	"github.com/revlyhq/revly-backend/utils"
)

// Admission is the credit gate's verdict for one send attempt
type Admission struct {
	Allowed    bool
	DenyReason string
	Profile    *models.CreditProfile
}

// CreditGate decides whether a tenant may send a review request right now.
// The cached profile is only ever used to affirm a send; any doubtful cache
// state falls through to the billing service, and a billing outage fails
// open so a flaky billing dependency cannot silently stop all outreach.
type CreditGate struct {
	billing  services.BillingService
	cache    services.ProfileCache
	cacheTTL time.Duration
	logger   *log.Logger
}

// NewCreditGate creates a new credit gate
func NewCreditGate(billing services.BillingService, cache services.ProfileCache, cacheTTL time.Duration, logger *log.Logger) *CreditGate {
	if logger == nil {
		logger = log.Default()
	}
	return &CreditGate{
		billing:  billing,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Admit evaluates one send attempt for a tenant
func (g *CreditGate) Admit(ctx context.Context, tenantID string) Admission {
	if cached := g.cachedProfile(ctx, tenantID); cached != nil {
		if cached.Active() && cached.HasCredits() {
			return Admission{Allowed: true, Profile: cached}
		}
		// A stale cache must never deny on its own; re-check billing.
	}

	profile, err := g.billing.FetchProfile(ctx, tenantID)
	if err != nil {
		g.logger.Printf("[credit-gate] billing unreachable for tenant %s, failing open: %v", tenantID, err)
		return Admission{Allowed: true}
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, tenantID, profile, g.cacheTTL); err != nil {
			g.logger.Printf("[credit-gate] failed to cache profile for tenant %s: %v", tenantID, err)
		}
	}

	if !profile.Active() {
		return Admission{Allowed: false, DenyReason: utils.DenyReasonSubscriptionInactive, Profile: profile}
	}
	if !profile.HasCredits() {
		return Admission{Allowed: false, DenyReason: utils.DenyReasonSMSLimitReached, Profile: profile}
	}
	return Admission{Allowed: true, Profile: profile}
}

// Observe folds a credit balance reported by the delivery gateway back into
// the cached profile, so the fast path tracks spend between billing fetches.
func (g *CreditGate) Observe(ctx context.Context, tenantID string, remaining *int64) {
	if remaining == nil || g.cache == nil {
		return
	}

	profile := g.cachedProfile(ctx, tenantID)
	if profile == nil {
		return
	}
	profile.RemainingCredits = remaining
	profile.FetchedAt = utils.UTCNow()
	if err := g.cache.Set(ctx, tenantID, profile, g.cacheTTL); err != nil {
		g.logger.Printf("[credit-gate] failed to refresh cached credits for tenant %s: %v", tenantID, err)
	}
}

func (g *CreditGate) cachedProfile(ctx context.Context, tenantID string) *models.CreditProfile {
	if g.cache == nil {
		return nil
	}
	profile, err := g.cache.Get(ctx, tenantID)
	if err != nil {
		g.logger.Printf("[credit-gate] cache read failed for tenant %s: %v", tenantID, err)
		return nil
	}
	return profile
}
