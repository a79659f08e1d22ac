package utils

import (
	"time"
)

// Feedback reconciliation constants
const (
	// DuplicateWindow is the temporal tolerance within which two feedback
	// records with the same fingerprint are treated as one physical event
	// (optimistic local echo + remote poll of the same submission).
	DuplicateWindow = 10 * time.Minute

	// UnattributedCustomerID is the reserved ID of the per-tenant
	// pseudo-customer that holds feedback no known customer matches.
	UnattributedCustomerID = "unattributed"

	// UnattributedCustomerName is the display name of the pseudo-customer.
	UnattributedCustomerName = "Unattributed feedback"
)

// Send queue constants
const (
	// SendBatchSize is the number of pending recipients drained per batch.
	SendBatchSize = 10

	// MaxPendingSends caps the send queue depth; enqueue beyond this is rejected.
	MaxPendingSends = 10000
)

// Credit gate denial reasons, surfaced verbatim to the caller
const (
	DenyReasonSubscriptionInactive = "Subscription not active"
	DenyReasonSMSLimitReached      = "SMS limit reached"
)

// Cache key fragments
const (
	CreditProfileCacheKey = "credit-profile"
)

// ContextKey is the type used for request-scoped context values
type ContextKey string

// Request context keys
const (
	RequestIDKey  ContextKey = "request_id"
	EndpointKey   ContextKey = "endpoint"
	CancelFuncKey ContextKey = "cancel_func"
)
