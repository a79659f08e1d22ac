// Package businessflow contains the core business logic for feedback
// attribution, remote reconciliation, and the review-request send pipeline.
package businessflow

import (
	"errors"
	"fmt"

	"github.com/revlyhq/revly-backend/models"
)

// Business flow error constants
var (
	// Customer-related errors
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrUnattributedReadOnly  = errors.New("the unattributed bucket cannot receive review requests")
	ErrSessionClosed         = errors.New("tenant session is closed")

	// Feedback-related errors
	ErrEmptyFeedbackText = errors.New("feedback text is required")
	ErrInvalidSentiment  = errors.New("sentiment must be positive or negative")

	// Cursor errors
	ErrCursorMovedBackwards = errors.New("sync cursor cannot move backwards")
)

// BusinessError wraps a lower-level error with a stable code and a
// user-presentable message
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// QueueFullError reports a rejected enqueue against a full send queue
type QueueFullError struct {
	Capacity int
	Pending  int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("send queue is full: %d pending, capacity %d", e.Pending, e.Capacity)
}

// TransitionError reports a lifecycle transition the status machine forbids
type TransitionError struct {
	CustomerID string
	From       models.CustomerStatus
	To         models.CustomerStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("customer %s cannot move from %s to %s", e.CustomerID, e.From, e.To)
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsUnattributedReadOnly(err error) bool {
	return errors.Is(err, ErrUnattributedReadOnly)
}

func IsSessionClosed(err error) bool {
	return errors.Is(err, ErrSessionClosed)
}

func IsEmptyFeedbackText(err error) bool {
	return errors.Is(err, ErrEmptyFeedbackText)
}

func IsInvalidSentiment(err error) bool {
	return errors.Is(err, ErrInvalidSentiment)
}

func IsQueueFull(err error) bool {
	var qf *QueueFullError
	return errors.As(err, &qf)
}

func IsInvalidTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
