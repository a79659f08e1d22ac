package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeedbackSentimentValid(t *testing.T) {
	assert.True(t, FeedbackSentimentPositive.Valid())
	assert.True(t, FeedbackSentimentNegative.Valid())
	assert.False(t, FeedbackSentiment("neutral").Valid())
	assert.False(t, FeedbackSentiment("").Valid())
}

func TestFeedbackEntryMalformed(t *testing.T) {
	assert.True(t, (FeedbackEntry{Text: ""}).Malformed())
	assert.True(t, (FeedbackEntry{Text: "   \t\n"}).Malformed())
	assert.False(t, (FeedbackEntry{Text: "ok"}).Malformed())
}

func TestFeedbackEntryPhoneOrEmpty(t *testing.T) {
	phone := "+15550100001"
	assert.Equal(t, phone, (&FeedbackEntry{Phone: &phone}).PhoneOrEmpty())
	assert.Equal(t, "", (&FeedbackEntry{}).PhoneOrEmpty())
}
