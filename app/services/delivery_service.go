// Package services provides external service integrations and technical concerns like delivery, billing, and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/revlyhq/revly-backend/config"
	"github.com/revlyhq/revly-backend/utils"
)

// DeliveryResult describes the outcome of one review-request message
type DeliveryResult struct {
	Accepted         bool
	FailureReason    string
	RemainingCredits *int64
}

// DeliveryService sends review-request messages through the SMS gateway
type DeliveryService interface {
	Send(ctx context.Context, recipient, message string) (*DeliveryResult, error)
}

// DeliveryServiceImpl implements DeliveryService against the gateway HTTP API
type DeliveryServiceImpl struct {
	config *config.DeliveryConfig
	client *http.Client
}

// deliveryRequest represents the request payload for the gateway API
type deliveryRequest struct {
	SrcNum         string `json:"srcNum"`
	Recipient      string `json:"recipient"`
	Body           string `json:"body"`
	RetryCount     int    `json:"retryCount"`
	ValidityPeriod int    `json:"validityPeriod"`
}

// deliveryResponse represents the message result from the gateway API
type deliveryResponse struct {
	MessageID        int64  `json:"messageId"`
	Recipient        string `json:"recipient"`
	Status           string `json:"status"`
	StatusCode       int    `json:"statusCode"`
	RemainingCredits *int64 `json:"remainingCredits,omitempty"`
}

// NewDeliveryService creates a new delivery service instance
func NewDeliveryService(cfg *config.DeliveryConfig) DeliveryService {
	return &DeliveryServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Send submits a single message to the gateway. A rejected message is not an
// error at this layer; the caller decides what a non-accepted result means.
func (s *DeliveryServiceImpl) Send(ctx context.Context, recipient, message string) (*DeliveryResult, error) {
	body := deliveryRequest{
		SrcNum:         s.config.SourceNumber,
		Recipient:      recipient,
		Body:           message,
		RetryCount:     s.config.RetryCount,
		ValidityPeriod: s.config.ValidityPeriod,
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal delivery request: %w", err)
	}

	url := fmt.Sprintf("https://%s/api/v1/send", s.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send delivery request: %w", err)
	}
	defer resp.Body.Close()

	var result deliveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode delivery response: %w", err)
	}

	if result.StatusCode != 200 || result.Status != "ACCEPTED" {
		return &DeliveryResult{
			Accepted:         false,
			FailureReason:    fmt.Sprintf("%s (%d)", result.Status, result.StatusCode),
			RemainingCredits: result.RemainingCredits,
		}, nil
	}

	return &DeliveryResult{
		Accepted:         true,
		RemainingCredits: result.RemainingCredits,
	}, nil
}

// MockDeliveryService implements DeliveryService for testing
type MockDeliveryService struct {
	mu           sync.Mutex
	SentMessages []MockDeliveredMessage

	// FailFor marks recipients whose sends come back rejected
	FailFor map[string]string
	// Err is returned verbatim when set (simulates gateway unreachable)
	Err error
	// RemainingCredits is echoed on every accepted result when set
	RemainingCredits *int64
}

// MockDeliveredMessage represents a message captured by the mock
type MockDeliveredMessage struct {
	Recipient string
	Message   string
	SentAt    time.Time
}

// NewMockDeliveryService creates a new mock delivery service
func NewMockDeliveryService() *MockDeliveryService {
	return &MockDeliveryService{
		SentMessages: make([]MockDeliveredMessage, 0),
		FailFor:      make(map[string]string),
	}
}

func (m *MockDeliveryService) Send(ctx context.Context, recipient, message string) (*DeliveryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if reason, ok := m.FailFor[recipient]; ok {
		return &DeliveryResult{Accepted: false, FailureReason: reason}, nil
	}

	m.SentMessages = append(m.SentMessages, MockDeliveredMessage{
		Recipient: recipient,
		Message:   message,
		SentAt:    utils.UTCNow(),
	})
	return &DeliveryResult{Accepted: true, RemainingCredits: m.RemainingCredits}, nil
}

// GetSentMessages returns all messages captured so far
func (m *MockDeliveryService) GetSentMessages() []MockDeliveredMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockDeliveredMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}

// ClearSentMessages clears the captured messages list
func (m *MockDeliveryService) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = make([]MockDeliveredMessage, 0)
}
