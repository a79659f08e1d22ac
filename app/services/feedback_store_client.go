package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/revlyhq/revly-backend/config"
)

// RemoteFeedback is one feedback record as reported by the remote feedback store
type RemoteFeedback struct {
	ID        string    `json:"id"`
	Phone     *string   `json:"phone,omitempty"`
	Text      string    `json:"text"`
	Sentiment string    `json:"sentiment"`
	Rating    *int      `json:"rating,omitempty"`
	Date      time.Time `json:"date"`
}

// FeedbackStoreClient talks to the remote feedback store the poller syncs from
type FeedbackStoreClient interface {
	// QuerySince returns feedback of one sentiment observed at or after `since`.
	// A nil `since` asks for the full history.
	QuerySince(ctx context.Context, tenantID, sentiment string, since *time.Time) ([]RemoteFeedback, error)
	// Purge deletes every remote record of the tenant
	Purge(ctx context.Context, tenantID string) error
}

// FeedbackStoreClientImpl implements FeedbackStoreClient over HTTP
type FeedbackStoreClientImpl struct {
	config *config.FeedbackStoreConfig
	client *http.Client
}

// NewFeedbackStoreClient creates a new feedback store client instance
func NewFeedbackStoreClient(cfg *config.FeedbackStoreConfig) FeedbackStoreClient {
	return &FeedbackStoreClientImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// QuerySince fetches one sentiment stream from the remote store
func (c *FeedbackStoreClientImpl) QuerySince(ctx context.Context, tenantID, sentiment string, since *time.Time) ([]RemoteFeedback, error) {
	q := url.Values{}
	q.Set("tenant", tenantID)
	q.Set("sentiment", sentiment)
	if since != nil {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}

	endpoint := fmt.Sprintf("%s/api/v1/feedback?%s", c.config.BaseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("x-api-key", c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feedback store returned status %d", resp.StatusCode)
	}

	var records []RemoteFeedback
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode feedback store response: %w", err)
	}

	return records, nil
}

// Purge deletes the tenant's remote feedback history
func (c *FeedbackStoreClientImpl) Purge(ctx context.Context, tenantID string) error {
	endpoint := fmt.Sprintf("%s/api/v1/feedback?tenant=%s", c.config.BaseURL, url.QueryEscape(tenantID))
	req, err := http.NewRequestWithContext(ctx, "DELETE", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("x-api-key", c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to purge feedback store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("feedback store purge returned status %d", resp.StatusCode)
	}

	return nil
}

// MockFeedbackStoreClient implements FeedbackStoreClient for testing
type MockFeedbackStoreClient struct {
	mu      sync.Mutex
	Records map[string][]RemoteFeedback // keyed by tenant ID
	Err     error
	Purged  []string
}

// NewMockFeedbackStoreClient creates a new mock feedback store client
func NewMockFeedbackStoreClient() *MockFeedbackStoreClient {
	return &MockFeedbackStoreClient{
		Records: make(map[string][]RemoteFeedback),
	}
}

func (m *MockFeedbackStoreClient) QuerySince(ctx context.Context, tenantID, sentiment string, since *time.Time) ([]RemoteFeedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	var out []RemoteFeedback
	for _, r := range m.Records[tenantID] {
		if r.Sentiment != sentiment {
			continue
		}
		if since != nil && r.Date.Before(*since) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *MockFeedbackStoreClient) Purge(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	delete(m.Records, tenantID)
	m.Purged = append(m.Purged, tenantID)
	return nil
}

// AddRecord appends a remote record for a tenant
func (m *MockFeedbackStoreClient) AddRecord(tenantID string, record RemoteFeedback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records[tenantID] = append(m.Records[tenantID], record)
}
