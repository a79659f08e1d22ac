package businessflow

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revlyhq/revly-backend/app/services"
	"github.com/revlyhq/revly-backend/models"
	"github.com/revlyhq/revly-backend/utils"
)

func newGateEnv() (*CreditGate, *services.MockBillingService, *services.MemoryProfileCache) {
	billing := services.NewMockBillingService()
	cache := services.NewMemoryProfileCache()
	gate := NewCreditGate(billing, cache, time.Minute, log.New(io.Discard, "", 0))
	return gate, billing, cache
}

func activeProfile(credits *int64) *models.CreditProfile {
	return &models.CreditProfile{
		Status:           models.SubscriptionStatusActive,
		RemainingCredits: credits,
		HasPlan:          true,
		FetchedAt:        utils.UTCNow(),
	}
}

func TestAdmitActiveWithCredits(t *testing.T) {
	gate, billing, _ := newGateEnv()
	billing.SetProfile(testTenant, activeProfile(utils.ToPtr(int64(5))))

	admission := gate.Admit(context.Background(), testTenant)
	assert.True(t, admission.Allowed)
	assert.Empty(t, admission.DenyReason)
}

func TestAdmitUnlimitedPlan(t *testing.T) {
	gate, billing, _ := newGateEnv()
	billing.SetProfile(testTenant, activeProfile(nil))

	admission := gate.Admit(context.Background(), testTenant)
	assert.True(t, admission.Allowed)
}

func TestAdmitDeniesInactiveSubscription(t *testing.T) {
	gate, billing, _ := newGateEnv()
	billing.SetProfile(testTenant, &models.CreditProfile{Status: "past_due", HasPlan: true, FetchedAt: utils.UTCNow()})

	admission := gate.Admit(context.Background(), testTenant)
	assert.False(t, admission.Allowed)
	assert.Equal(t, utils.DenyReasonSubscriptionInactive, admission.DenyReason)
}

func TestAdmitDeniesExhaustedCredits(t *testing.T) {
	gate, billing, _ := newGateEnv()
	billing.SetProfile(testTenant, activeProfile(utils.ToPtr(int64(0))))

	admission := gate.Admit(context.Background(), testTenant)
	assert.False(t, admission.Allowed)
	assert.Equal(t, utils.DenyReasonSMSLimitReached, admission.DenyReason)
}

func TestAdmitFailsOpenOnBillingOutage(t *testing.T) {
	gate, billing, _ := newGateEnv()
	billing.Err = assert.AnError

	admission := gate.Admit(context.Background(), testTenant)
	assert.True(t, admission.Allowed)
}

func TestAdmitAffirmsFromCacheWithoutBillingCall(t *testing.T) {
	gate, billing, cache := newGateEnv()
	require.NoError(t, cache.Set(context.Background(), testTenant, activeProfile(utils.ToPtr(int64(5))), time.Minute))
	billing.Err = assert.AnError

	admission := gate.Admit(context.Background(), testTenant)
	assert.True(t, admission.Allowed)
	assert.Equal(t, 0, billing.Calls)
}

func TestAdmitNeverDeniesFromCacheAlone(t *testing.T) {
	gate, billing, cache := newGateEnv()
	// Stale cached denial, but billing says the tenant is fine now.
	require.NoError(t, cache.Set(context.Background(), testTenant, activeProfile(utils.ToPtr(int64(0))), time.Minute))
	billing.SetProfile(testTenant, activeProfile(utils.ToPtr(int64(100))))

	admission := gate.Admit(context.Background(), testTenant)
	assert.True(t, admission.Allowed)
	assert.Equal(t, 1, billing.Calls)
}

func TestAdmitRefreshesCacheFromBilling(t *testing.T) {
	gate, billing, cache := newGateEnv()
	billing.SetProfile(testTenant, activeProfile(utils.ToPtr(int64(5))))

	_ = gate.Admit(context.Background(), testTenant)

	cached, err := cache.Get(context.Background(), testTenant)
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.NotNil(t, cached.RemainingCredits)
	assert.Equal(t, int64(5), *cached.RemainingCredits)
}

func TestObserveFoldsGatewayBalanceIntoCache(t *testing.T) {
	gate, billing, cache := newGateEnv()
	billing.SetProfile(testTenant, activeProfile(utils.ToPtr(int64(5))))
	require.True(t, gate.Admit(context.Background(), testTenant).Allowed)

	// The gateway reports the balance hit zero; the fast path must stop
	// affirming and fall back to billing on the next attempt.
	gate.Observe(context.Background(), testTenant, utils.ToPtr(int64(0)))

	cached, err := cache.Get(context.Background(), testTenant)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.False(t, cached.HasCredits())

	before := billing.Calls
	_ = gate.Admit(context.Background(), testTenant)
	assert.Equal(t, before+1, billing.Calls)
}

func TestObserveIgnoresUnknownBalance(t *testing.T) {
	gate, _, cache := newGateEnv()
	require.NoError(t, cache.Set(context.Background(), testTenant, activeProfile(utils.ToPtr(int64(5))), time.Minute))

	gate.Observe(context.Background(), testTenant, nil)

	cached, err := cache.Get(context.Background(), testTenant)
	require.NoError(t, err)
	require.NotNil(t, cached.RemainingCredits)
	assert.Equal(t, int64(5), *cached.RemainingCredits)
}
