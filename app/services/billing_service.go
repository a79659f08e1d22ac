package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/revlyhq/revly-backend/config"
	"github.com/revlyhq/revly-backend/models"
	"github.com/revlyhq/revly-backend/utils"
)

// BillingService exposes the subscription and credit state of a tenant.
// It is the authoritative source the credit gate falls back to when the
// cached profile cannot affirm a send.
type BillingService interface {
	FetchProfile(ctx context.Context, tenantID string) (*models.CreditProfile, error)
}

// BillingServiceImpl implements BillingService against the billing HTTP API
type BillingServiceImpl struct {
	config *config.BillingConfig
	client *http.Client
}

// billingProfileResponse represents the profile payload from the billing API
type billingProfileResponse struct {
	SubscriptionStatus string `json:"subscriptionStatus"`
	RemainingCredits   *int64 `json:"remainingCredits"`
	HasPlan            bool   `json:"hasPlan"`
}

// NewBillingService creates a new billing service instance
func NewBillingService(cfg *config.BillingConfig) BillingService {
	return &BillingServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// FetchProfile retrieves the tenant's current subscription and credit profile
func (s *BillingServiceImpl) FetchProfile(ctx context.Context, tenantID string) (*models.CreditProfile, error) {
	url := fmt.Sprintf("%s/api/v1/tenants/%s/profile", s.config.BaseURL, tenantID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch billing profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("billing API returned status %d", resp.StatusCode)
	}

	var payload billingProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode billing profile: %w", err)
	}

	return &models.CreditProfile{
		Status:           payload.SubscriptionStatus,
		RemainingCredits: payload.RemainingCredits,
		HasPlan:          payload.HasPlan,
		FetchedAt:        utils.UTCNow(),
	}, nil
}

// MockBillingService implements BillingService for testing
type MockBillingService struct {
	mu       sync.Mutex
	Profiles map[string]*models.CreditProfile
	Err      error
	Calls    int
}

// NewMockBillingService creates a new mock billing service
func NewMockBillingService() *MockBillingService {
	return &MockBillingService{
		Profiles: make(map[string]*models.CreditProfile),
	}
}

func (m *MockBillingService) FetchProfile(ctx context.Context, tenantID string) (*models.CreditProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if p, ok := m.Profiles[tenantID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, fmt.Errorf("no billing profile for tenant %s", tenantID)
}

// SetProfile registers a profile for a tenant
func (m *MockBillingService) SetProfile(tenantID string, profile *models.CreditProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Profiles[tenantID] = profile
}
