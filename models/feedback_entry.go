package models

import (
	"strings"
	"time"
)

// FeedbackSentiment classifies a feedback record
type FeedbackSentiment string

const (
	FeedbackSentimentPositive FeedbackSentiment = "positive"
	FeedbackSentimentNegative FeedbackSentiment = "negative"
)

func (s FeedbackSentiment) String() string {
	return string(s)
}

func (s FeedbackSentiment) Valid() bool {
	return s == FeedbackSentimentPositive || s == FeedbackSentimentNegative
}

// AllSentiments lists the tracked sentiment categories in poll order
func AllSentiments() []FeedbackSentiment {
	return []FeedbackSentiment{FeedbackSentimentPositive, FeedbackSentimentNegative}
}

// FeedbackSource records which write path produced an entry
type FeedbackSource string

const (
	FeedbackSourceLocal  FeedbackSource = "local"
	FeedbackSourceRemote FeedbackSource = "remote"
)

// FeedbackEntry is a single piece of customer feedback. Entries are immutable
// after creation and are removed only by the bulk-clear operation.
type FeedbackEntry struct {
	ID         string            `gorm:"primaryKey;size:64" json:"id"`
	TenantID   string            `gorm:"primaryKey;size:64;index:idx_feedback_tenant_id" json:"tenant_id"`
	CustomerID string            `gorm:"size:64;not null;index:idx_feedback_customer_id" json:"customer_id"`
	Text       string            `gorm:"type:text;not null" json:"text"`
	Sentiment  FeedbackSentiment `gorm:"size:16;not null;index:idx_feedback_sentiment" json:"sentiment"`
	Date       time.Time         `gorm:"not null;index:idx_feedback_date" json:"date"`
	Phone      *string           `gorm:"size:20" json:"phone,omitempty"`
	Rating     *int              `json:"rating,omitempty"`
	Source     FeedbackSource    `gorm:"size:16;not null;default:'local'" json:"source"`
	Position   int               `gorm:"not null;default:0" json:"-"`
}

func (FeedbackEntry) TableName() string {
	return "feedback_entries"
}

// PhoneOrEmpty returns the entry's phone number, or "" when absent
func (e *FeedbackEntry) PhoneOrEmpty() string {
	if e.Phone == nil {
		return ""
	}
	return *e.Phone
}

// Malformed reports whether the record is unusable and must be dropped.
// A record without text carries no content to merge or display; phone is
// optional because unattributable entries still land in the shared bucket.
func (e FeedbackEntry) Malformed() bool {
	return strings.TrimSpace(e.Text) == ""
}
