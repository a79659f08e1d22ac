// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type contextKey string

// TxContextKey carries an open transaction through a context
const TxContextKey contextKey = "db_transaction"

// BaseRepository provides common repository functionality with transaction support
type BaseRepository[T any] struct {
	DB *gorm.DB
}

// NewBaseRepository creates a new base repository instance
func NewBaseRepository[T any](db *gorm.DB) *BaseRepository[T] {
	return &BaseRepository[T]{
		DB: db,
	}
}

// getDB returns the appropriate database connection (with or without transaction)
func (r *BaseRepository[T]) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB
}

// Save inserts a new entity
func (r *BaseRepository[T]) Save(ctx context.Context, entity *T) error {
	if err := r.getDB(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}
	return nil
}

// SaveBatch inserts multiple entities
func (r *BaseRepository[T]) SaveBatch(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	if err := r.getDB(ctx).CreateInBatches(entities, 100).Error; err != nil {
		return fmt.Errorf("failed to save batch entities: %w", err)
	}
	return nil
}

// WithTransaction executes a function within a database transaction. A nil
// handle runs fn directly; in-memory repositories manage their own state.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(context.Context) error) (err error) {
	if db == nil {
		return fn(ctx)
	}

	tx := db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()

	ctx = context.WithValue(ctx, TxContextKey, tx)

	if err := fn(ctx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
