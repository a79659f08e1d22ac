// Package testing provides in-memory repository fakes and fixtures for
// exercising the business flows without a database
package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/revlyhq/revly-backend/models"
	"github.com/revlyhq/revly-backend/utils"
)

// FakeCustomerRepository is an in-memory CustomerRepository
type FakeCustomerRepository struct {
	mu        sync.Mutex
	customers map[string]*models.Customer // key: tenantID + "/" + id

	SaveErr error
}

// NewFakeCustomerRepository creates an empty fake customer repository
func NewFakeCustomerRepository() *FakeCustomerRepository {
	return &FakeCustomerRepository{
		customers: make(map[string]*models.Customer),
	}
}

func customerKey(tenantID, id string) string {
	return tenantID + "/" + id
}

func (r *FakeCustomerRepository) ByTenant(ctx context.Context, tenantID string) ([]*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Customer
	for _, c := range r.customers {
		if c.TenantID == tenantID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *FakeCustomerRepository) ByID(ctx context.Context, tenantID, id string) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.customers[customerKey(tenantID, id)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *FakeCustomerRepository) Save(ctx context.Context, customer *models.Customer) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *customer
	r.customers[customerKey(customer.TenantID, customer.ID)] = &cp
	return nil
}

func (r *FakeCustomerRepository) SaveBatch(ctx context.Context, customers []*models.Customer) error {
	for _, c := range customers {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *FakeCustomerRepository) UpdateStatus(ctx context.Context, tenantID, id string, status models.CustomerStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.customers[customerKey(tenantID, id)]
	if !ok {
		return fmt.Errorf("customer %s not found for status update", id)
	}
	c.Status = status
	return nil
}

func (r *FakeCustomerRepository) Delete(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.customers, customerKey(tenantID, id))
	return nil
}

// Status reports the stored status, for asserting persisted transitions
func (r *FakeCustomerRepository) Status(tenantID, id string) models.CustomerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.customers[customerKey(tenantID, id)]; ok {
		return c.Status
	}
	return ""
}

// FakeFeedbackEntryRepository is an in-memory FeedbackEntryRepository
type FakeFeedbackEntryRepository struct {
	mu      sync.Mutex
	Entries []*models.FeedbackEntry

	SaveErr error
}

// NewFakeFeedbackEntryRepository creates an empty fake feedback repository
func NewFakeFeedbackEntryRepository() *FakeFeedbackEntryRepository {
	return &FakeFeedbackEntryRepository{}
}

func (r *FakeFeedbackEntryRepository) Save(ctx context.Context, entry *models.FeedbackEntry) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	r.Entries = append(r.Entries, &cp)
	return nil
}

func (r *FakeFeedbackEntryRepository) SaveBatch(ctx context.Context, entries []*models.FeedbackEntry) error {
	for _, e := range entries {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *FakeFeedbackEntryRepository) DeleteByTenant(ctx context.Context, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.Entries[:0]
	for _, e := range r.Entries {
		if e.TenantID != tenantID {
			kept = append(kept, e)
		}
	}
	r.Entries = kept
	return nil
}

// Count returns the number of stored entries for a tenant
func (r *FakeFeedbackEntryRepository) Count(tenantID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.Entries {
		if e.TenantID == tenantID {
			n++
		}
	}
	return n
}

// FakeActivityLogRepository is an in-memory ActivityLogRepository
type FakeActivityLogRepository struct {
	mu      sync.Mutex
	Entries []*models.ActivityLog
}

// NewFakeActivityLogRepository creates an empty fake activity repository
func NewFakeActivityLogRepository() *FakeActivityLogRepository {
	return &FakeActivityLogRepository{}
}

func (r *FakeActivityLogRepository) Save(ctx context.Context, entry *models.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	cp.ID = uint(len(r.Entries) + 1)
	r.Entries = append(r.Entries, &cp)
	return nil
}

func (r *FakeActivityLogRepository) ByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.ActivityLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.ActivityLog
	for i := len(r.Entries) - 1; i >= 0; i-- {
		if r.Entries[i].TenantID == tenantID {
			cp := *r.Entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Actions lists recorded action names in order, for asserting audit trails
func (r *FakeActivityLogRepository) Actions(tenantID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, e := range r.Entries {
		if e.TenantID == tenantID {
			out = append(out, e.Action)
		}
	}
	return out
}

// FakeSyncCursorRepository is an in-memory SyncCursorRepository
type FakeSyncCursorRepository struct {
	mu      sync.Mutex
	cursors map[string]*time.Time
}

// NewFakeSyncCursorRepository creates an empty fake cursor repository
func NewFakeSyncCursorRepository() *FakeSyncCursorRepository {
	return &FakeSyncCursorRepository{
		cursors: make(map[string]*time.Time),
	}
}

func (r *FakeSyncCursorRepository) ByTenant(ctx context.Context, tenantID string) (*models.SyncCursor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.cursors[tenantID]
	if !ok {
		return nil, nil
	}
	return &models.SyncCursor{TenantID: tenantID, LastRemoteSync: t, UpdatedAt: utils.UTCNow()}, nil
}

func (r *FakeSyncCursorRepository) Advance(ctx context.Context, tenantID string, to time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	to = utils.TimeToUTC(to)
	if cur, ok := r.cursors[tenantID]; ok && cur != nil && cur.After(to) {
		return nil
	}
	r.cursors[tenantID] = &to
	return nil
}

func (r *FakeSyncCursorRepository) Reset(ctx context.Context, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cursors[tenantID] = nil
	return nil
}
