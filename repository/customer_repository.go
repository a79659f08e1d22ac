package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/revlyhq/revly-backend/models"
	"gorm.io/gorm"
)

// CustomerRepositoryImpl implements CustomerRepository using GORM
type CustomerRepositoryImpl struct {
	*BaseRepository[models.Customer]
}

// NewCustomerRepository creates a new customer repository instance
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &CustomerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Customer](db),
	}
}

// ByTenant returns the tenant's full customer collection with feedback
// preloaded in insertion order. Ordering of the customers themselves is by
// AddedAt; the caller is responsible for pinning the unattributed bucket to
// the head of its in-memory view.
func (r *CustomerRepositoryImpl) ByTenant(ctx context.Context, tenantID string) ([]*models.Customer, error) {
	db := r.getDB(ctx)

	var customers []*models.Customer
	err := db.
		Preload("Feedback", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("tenant_id = ?", tenantID).
		Order("added_at ASC").
		Find(&customers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list customers for tenant %s: %w", tenantID, err)
	}

	return customers, nil
}

// ByID retrieves a single customer by tenant and ID
func (r *CustomerRepositoryImpl) ByID(ctx context.Context, tenantID, id string) (*models.Customer, error) {
	db := r.getDB(ctx)

	var customer models.Customer
	err := db.
		Preload("Feedback", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find customer %s: %w", id, err)
	}

	return &customer, nil
}

// UpdateStatus persists a lifecycle transition
func (r *CustomerRepositoryImpl) UpdateStatus(ctx context.Context, tenantID, id string, status models.CustomerStatus) error {
	db := r.getDB(ctx)

	res := db.Model(&models.Customer{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update status for customer %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("customer %s not found for status update", id)
	}

	return nil
}

// Delete removes a customer row; used only by bulk clear for the
// unattributed bucket
func (r *CustomerRepositoryImpl) Delete(ctx context.Context, tenantID, id string) error {
	db := r.getDB(ctx)

	if err := db.Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&models.Customer{}).Error; err != nil {
		return fmt.Errorf("failed to delete customer %s: %w", id, err)
	}

	return nil
}
