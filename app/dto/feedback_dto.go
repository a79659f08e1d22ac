package dto

import (
	"time"

	"github.com/revlyhq/revly-backend/models"
)

// SubmitFeedbackRequest is a feedback entry arriving through our own API
type SubmitFeedbackRequest struct {
	CustomerID *string    `json:"customer_id,omitempty" validate:"omitempty,max=64"`
	Phone      *string    `json:"phone,omitempty" validate:"omitempty,max=32"`
	Text       string     `json:"text" validate:"required,max=4096"`
	Sentiment  string     `json:"sentiment" validate:"required,oneof=positive negative"`
	Rating     *int       `json:"rating,omitempty" validate:"omitempty,gte=1,lte=5"`
	Date       *time.Time `json:"date,omitempty"`
}

// FeedbackEntryDTO is one feedback entry in API responses
type FeedbackEntryDTO struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Text       string    `json:"text"`
	Sentiment  string    `json:"sentiment"`
	Date       time.Time `json:"date"`
	Phone      *string   `json:"phone,omitempty"`
	Rating     *int      `json:"rating,omitempty"`
	Source     string    `json:"source"`
}

// ToFeedbackEntryDTO converts a feedback entry model to its API shape
func ToFeedbackEntryDTO(entry models.FeedbackEntry) FeedbackEntryDTO {
	return FeedbackEntryDTO{
		ID:         entry.ID,
		CustomerID: entry.CustomerID,
		Text:       entry.Text,
		Sentiment:  string(entry.Sentiment),
		Date:       entry.Date,
		Phone:      entry.Phone,
		Rating:     entry.Rating,
		Source:     string(entry.Source),
	}
}
