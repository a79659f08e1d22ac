package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/revlyhq/revly-backend/app/services"
	"github.com/revlyhq/revly-backend/models"
	"github.com/revlyhq/revly-backend/utils"
)

// NewTestCustomer builds a customer fixture in Pending status
func NewTestCustomer(tenantID, id, name, phone string) *models.Customer {
	return &models.Customer{
		ID:       id,
		TenantID: tenantID,
		Name:     name,
		Phone:    phone,
		Status:   models.CustomerStatusPending,
		AddedAt:  utils.UTCNow(),
	}
}

// NewTestFeedbackEntry builds a local feedback entry fixture
func NewTestFeedbackEntry(tenantID, customerID, text string, sentiment models.FeedbackSentiment, date time.Time) models.FeedbackEntry {
	return models.FeedbackEntry{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		CustomerID: customerID,
		Text:       text,
		Sentiment:  sentiment,
		Date:       utils.TimeToUTC(date),
		Source:     models.FeedbackSourceLocal,
	}
}

// NewRemoteFeedback builds a remote store record fixture
func NewRemoteFeedback(id, phone, text, sentiment string, date time.Time) services.RemoteFeedback {
	var p *string
	if phone != "" {
		p = &phone
	}
	return services.RemoteFeedback{
		ID:        id,
		Phone:     p,
		Text:      text,
		Sentiment: sentiment,
		Date:      date,
	}
}

// SeedCustomers stores n numbered customers ("c1".."cN") for a tenant and
// returns their IDs
func SeedCustomers(repo *FakeCustomerRepository, tenantID string, n int) []string {
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("c%d", i)
		c := NewTestCustomer(tenantID, id, fmt.Sprintf("Customer %d", i), fmt.Sprintf("+1555010%04d", i))
		_ = repo.Save(context.TODO(), c)
		ids = append(ids, id)
	}
	return ids
}
