package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/revlyhq/revly-backend/app/services"
	"github.com/revlyhq/revly-backend/models"
	"github.com/revlyhq/revly-backend/utils"
)

// EnqueueSend queues review requests for the given customers. The whole
// batch is accepted or rejected: an unknown ID, the unattributed bucket, or
// a full queue fails the call without enqueuing anything.
func (s *Session) EnqueueSend(ctx context.Context, customerIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if len(customerIDs) == 0 {
		return nil
	}

	for _, id := range customerIDs {
		c, ok := s.byID[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrCustomerNotFound, id)
		}
		if c.IsUnattributed() {
			return ErrUnattributedReadOnly
		}
	}

	if len(s.queue)+len(customerIDs) > s.deps.Queue.MaxPending {
		return &QueueFullError{Capacity: s.deps.Queue.MaxPending, Pending: len(s.queue)}
	}

	s.queue = append(s.queue, customerIDs...)
	s.logActivity(ctx, nil, "", models.ActivityActionRequestQueued, utils.ToPtr(fmt.Sprintf("%d review requests queued", len(customerIDs))), pq.StringArray(customerIDs), utils.ToPtr(true), nil)

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// QueueDepth returns the number of requests waiting to be sent
func (s *Session) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// DrainOnce removes one batch from the queue head and processes it. The
// batch leaves the queue before any send happens, so a crash mid-batch
// loses requests rather than double-sending them. Cancellation is honored
// only at the batch boundary: a cancelled context leaves the queue intact,
// and a batch already taken runs to completion. Returns how many requests
// were taken off the queue.
func (s *Session) DrainOnce(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrSessionClosed
	}
	n := s.deps.Queue.BatchSize
	if n > len(s.queue) {
		n = len(s.queue)
	}
	batch := make([]string, n)
	copy(batch, s.queue[:n])
	s.queue = s.queue[n:]
	s.mu.Unlock()

	for i, id := range batch {
		s.processSend(ctx, id)
		if i < len(batch)-1 {
			time.Sleep(s.deps.Queue.ItemDelay)
		}
	}
	return len(batch), nil
}

// processSend runs one review request end to end: credit gate, link token,
// gateway delivery, then the resulting lifecycle transition
func (s *Session) processSend(ctx context.Context, customerID string) {
	s.mu.Lock()
	c, ok := s.byID[customerID]
	if !ok {
		s.mu.Unlock()
		return
	}
	// Snapshot what the send needs; the actual delivery happens unlocked.
	name, phone, status := c.Name, c.Phone, c.Status
	s.mu.Unlock()

	if status == models.CustomerStatusReviewed {
		s.logActivity(ctx, &customerID, name, models.ActivityActionRequestSkipped, utils.ToPtr("Customer already left a review"), nil, utils.ToPtr(true), nil)
		return
	}
	if NormalizePhone(phone) == "" {
		s.failSend(ctx, customerID, "Missing phone number")
		return
	}

	// A denial is not a delivery failure: the customer keeps their current
	// status so the request can be retried once the subscription recovers.
	admission := s.deps.Gate.Admit(ctx, s.tenantID)
	if !admission.Allowed {
		s.logActivity(ctx, &customerID, name, models.ActivityActionSendDenied, utils.ToPtr(admission.DenyReason), nil, utils.ToPtr(false), utils.ToPtr(admission.DenyReason))
		s.publish(services.EventSendDenied, customerID, admission.DenyReason)
		return
	}

	token, err := s.deps.Links.Issue(s.tenantID, customerID)
	if err != nil {
		s.deps.Logger.Printf("[session %s] link token issue failed for %s: %v", s.tenantID, customerID, err)
		s.failSend(ctx, customerID, "Could not generate review link")
		return
	}
	message := fmt.Sprintf(s.deps.MessageTemplate, name, s.deps.Links.ReviewURL(token))

	result, err := s.deps.Delivery.Send(ctx, phone, message)
	if err != nil {
		s.deps.Logger.Printf("[session %s] delivery failed for %s: %v", s.tenantID, customerID, err)
		s.failSend(ctx, customerID, "Gateway unreachable")
		return
	}
	if !result.Accepted {
		s.failSend(ctx, customerID, result.FailureReason)
		return
	}

	s.deps.Gate.Observe(ctx, s.tenantID, result.RemainingCredits)
	if err := s.applyTransition(ctx, customerID, models.CustomerStatusSent, models.ActivityActionRequestSent, utils.ToPtr("Review request sent")); err != nil {
		s.deps.Logger.Printf("[session %s] sent transition failed for %s: %v", s.tenantID, customerID, err)
	}
}

func (s *Session) failSend(ctx context.Context, customerID, reason string) {
	if err := s.applyTransition(ctx, customerID, models.CustomerStatusFailed, models.ActivityActionRequestFailed, utils.ToPtr(reason)); err != nil {
		s.deps.Logger.Printf("[session %s] failed transition for %s: %v", s.tenantID, customerID, err)
	}
}

// DrainLoop services the send queue until the context is cancelled. It
// sleeps between batches so a large campaign trickles out instead of
// hammering the gateway.
func (s *Session) DrainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		for {
			if s.QueueDepth() == 0 {
				break
			}
			if _, err := s.DrainOnce(ctx); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.deps.Queue.BatchDelay):
			}
		}
	}
}
