package businessflow

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/revlyhq/revly-backend/app/services"
	"github.com/revlyhq/revly-backend/models"
	"github.com/revlyhq/revly-backend/repository"
	"github.com/revlyhq/revly-backend/utils"
)

// ReconcileResult summarizes one reconciliation pass
type ReconcileResult struct {
	Accepted   int
	Duplicates int
	Malformed  int
	Known      int
}

// ReconcileRemote folds a batch of remote feedback records into the tenant's
// state. The pass is idempotent: records whose ID is already stored are
// skipped, and records that fingerprint-match an existing entry (or an
// earlier record in the same batch) inside the duplicate window are
// collapsed onto the copy observed first. Malformed records are dropped.
//
// Accepted entries are routed like local submissions; a customer in Clicked
// status whose feedback arrives through reconciliation moves to Reviewed.
func (s *Session) ReconcileRemote(ctx context.Context, records []services.RemoteFeedback) (*ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	result := &ReconcileResult{}
	var accepted []*models.FeedbackEntry
	var acceptedTargets []*models.Customer
	var duplicateIDs []string
	bucketCreated := false

	for _, record := range records {
		if _, ok := s.knownFeedback[record.ID]; ok {
			result.Known++
			continue
		}

		sentiment := models.FeedbackSentiment(record.Sentiment)
		if (models.FeedbackEntry{Text: record.Text}).Malformed() || !sentiment.Valid() {
			result.Malformed++
			continue
		}

		date := utils.TimeToUTC(record.Date)
		phone := ""
		if record.Phone != nil {
			phone = *record.Phone
		}
		fp := Fingerprint(phone, record.Text)
		if s.duplicateLocked(fp, date) {
			// First observed copy wins. The ID is remembered only after the
			// pass persists, so a failed save does not orphan the record.
			duplicateIDs = append(duplicateIDs, record.ID)
			result.Duplicates++
			continue
		}

		target, created, err := s.routeLocked(ctx, nil, record.Phone)
		if err != nil {
			return nil, err
		}
		bucketCreated = bucketCreated || created

		entry := &models.FeedbackEntry{
			ID:         record.ID,
			TenantID:   s.tenantID,
			CustomerID: target.ID,
			Text:       record.Text,
			Sentiment:  sentiment,
			Date:       date,
			Phone:      record.Phone,
			Rating:     record.Rating,
			Source:     models.FeedbackSourceRemote,
			Position:   len(target.Feedback),
		}
		target.Feedback = append(target.Feedback, *entry)
		s.rememberLocked(entry)
		accepted = append(accepted, entry)
		acceptedTargets = append(acceptedTargets, target)
		result.Accepted++
	}

	if len(accepted) > 0 {
		err := repository.WithTransaction(ctx, s.deps.DB, func(txCtx context.Context) error {
			if bucketCreated {
				if bucket, ok := s.byID[utils.UnattributedCustomerID]; ok {
					if err := s.deps.Customers.Save(txCtx, bucket); err != nil {
						return err
					}
				}
			}
			return s.deps.Feedback.SaveBatch(txCtx, accepted)
		})
		if err != nil {
			// Unwind the in-memory mutations so a later pass over the same
			// records is not rejected as known or duplicate. Entries were
			// appended at each customer's tail, so reverse order truncates.
			for i := len(accepted) - 1; i >= 0; i-- {
				target := acceptedTargets[i]
				target.Feedback = target.Feedback[:len(target.Feedback)-1]
				s.forgetLocked(accepted[i])
			}
			if bucketCreated {
				s.unindexBucketLocked()
			}
			return nil, NewBusinessError("RECONCILE_SAVE_FAILED", "Failed to persist reconciled feedback", err)
		}
	}

	for _, id := range duplicateIDs {
		s.knownFeedback[id] = struct{}{}
	}
	if len(accepted) == 0 {
		return result, nil
	}

	ids := make(pq.StringArray, 0, len(accepted))
	for i, entry := range accepted {
		ids = append(ids, entry.CustomerID)
		target := acceptedTargets[i]
		s.publish(services.EventFeedbackArrived, target.ID, string(entry.Sentiment))
		if target.Status == models.CustomerStatusClicked {
			if err := s.transitionLocked(ctx, target, models.CustomerStatusReviewed, models.ActivityActionReviewReceived, utils.ToPtr("Feedback received after link click")); err != nil {
				s.deps.Logger.Printf("[session %s] review transition failed for %s: %v", s.tenantID, target.ID, err)
			}
		}
	}
	s.logActivity(ctx, nil, "", models.ActivityActionFeedbackRecorded, utils.ToPtr(fmt.Sprintf("%d remote feedback entries reconciled", result.Accepted)), ids, utils.ToPtr(true), nil)

	return result, nil
}
