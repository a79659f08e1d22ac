package businessflow

import (
	"context"

	"github.com/revlyhq/revly-backend/models"
	"github.com/revlyhq/revly-backend/utils"
)

// routeLocked attributes a feedback entry to a customer. Resolution order:
//
//  1. explicit customer ID
//  2. normalized phone match
//  3. the unattributed bucket, created lazily and pinned to the head of
//     the collection
//
// Returns the target plus whether the bucket was created by this call, in
// which case the caller must persist it in the same transaction as the
// entry. Caller holds the session mutex.
func (s *Session) routeLocked(ctx context.Context, customerID, phone *string) (*models.Customer, bool, error) {
	if customerID != nil {
		c, ok := s.byID[*customerID]
		if !ok {
			return nil, false, ErrCustomerNotFound
		}
		return c, false, nil
	}

	if phone != nil {
		if key := NormalizePhone(*phone); key != "" {
			if c, ok := s.byPhone[key]; ok {
				return c, false, nil
			}
		}
	}

	if bucket, ok := s.byID[utils.UnattributedCustomerID]; ok {
		return bucket, false, nil
	}

	bucket := &models.Customer{
		ID:       utils.UnattributedCustomerID,
		TenantID: s.tenantID,
		Name:     utils.UnattributedCustomerName,
		Status:   models.CustomerStatusPending,
		AddedAt:  utils.UTCNow(),
	}
	s.customers = append([]*models.Customer{bucket}, s.customers...)
	s.byID[bucket.ID] = bucket
	return bucket, true, nil
}
