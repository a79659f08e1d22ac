package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/revlyhq/revly-backend/utils"
)

func TestCustomerStatusValid(t *testing.T) {
	for _, s := range []CustomerStatus{
		CustomerStatusPending, CustomerStatusSent, CustomerStatusClicked,
		CustomerStatusReviewed, CustomerStatusFailed,
	} {
		assert.True(t, s.Valid(), "status %s", s)
	}
	assert.False(t, CustomerStatus("archived").Valid())
	assert.False(t, CustomerStatus("").Valid())
}

func TestCustomerStatusTerminal(t *testing.T) {
	assert.True(t, CustomerStatusReviewed.Terminal())
	assert.False(t, CustomerStatusPending.Terminal())
	assert.False(t, CustomerStatusFailed.Terminal())
}

func TestCustomerStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		from    CustomerStatus
		to      CustomerStatus
		allowed bool
	}{
		{CustomerStatusPending, CustomerStatusSent, true},
		{CustomerStatusPending, CustomerStatusFailed, true},
		{CustomerStatusPending, CustomerStatusClicked, false},
		{CustomerStatusPending, CustomerStatusReviewed, false},
		{CustomerStatusSent, CustomerStatusClicked, true},
		{CustomerStatusSent, CustomerStatusSent, true}, // resend
		{CustomerStatusSent, CustomerStatusFailed, true},
		{CustomerStatusSent, CustomerStatusReviewed, false},
		{CustomerStatusClicked, CustomerStatusReviewed, true},
		{CustomerStatusClicked, CustomerStatusFailed, true},
		{CustomerStatusClicked, CustomerStatusSent, false}, // no re-solicit after a click
		{CustomerStatusFailed, CustomerStatusSent, true}, // retry
		{CustomerStatusFailed, CustomerStatusFailed, true},
		{CustomerStatusFailed, CustomerStatusClicked, false},
		// Reviewed is terminal; nothing leaves it.
		{CustomerStatusReviewed, CustomerStatusSent, false},
		{CustomerStatusReviewed, CustomerStatusClicked, false},
		{CustomerStatusReviewed, CustomerStatusFailed, false},
		{CustomerStatusReviewed, CustomerStatusReviewed, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCustomerIsUnattributed(t *testing.T) {
	bucket := &Customer{ID: utils.UnattributedCustomerID}
	assert.True(t, bucket.IsUnattributed())

	regular := &Customer{ID: "c1"}
	assert.False(t, regular.IsUnattributed())
}
