package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/oceanobs/streamwatch/internal/datastore/entities"
)

// statusRepository implements StatusRepository.
type statusRepository struct {
	db *gorm.DB
}

// NewStatusRepository creates a new StatusRepository.
func NewStatusRepository(db *gorm.DB) StatusRepository {
	return &statusRepository{db: db}
}

// GetCondition returns the persisted classification state for one stream.
// Returns ErrConditionNotFound when the stream has never been classified.
func (r *statusRepository) GetCondition(ctx context.Context, deployedStreamID uint) (*entities.StreamCondition, error) {
	var condition entities.StreamCondition
	err := r.db.WithContext(ctx).Where("deployed_stream_id = ?", deployedStreamID).First(&condition).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConditionNotFound
		}
		return nil, fmt.Errorf("failed to get condition for stream %d: %w", deployedStreamID, err)
	}
	return &condition, nil
}

// ListConditions returns all persisted stream conditions.
func (r *statusRepository) ListConditions(ctx context.Context) ([]entities.StreamCondition, error) {
	var conditions []entities.StreamCondition
	if err := r.db.WithContext(ctx).Find(&conditions).Error; err != nil {
		return nil, fmt.Errorf("failed to list conditions: %w", err)
	}
	return conditions, nil
}

// RecordTransition writes the condition and its notification atomically.
func (r *statusRepository) RecordTransition(ctx context.Context, condition *entities.StreamCondition, update *entities.PendingUpdate) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(condition).Error; err != nil {
			return err
		}
		if update != nil {
			if err := tx.Create(update).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record status transition for stream %d: %w", condition.DeployedStreamID, err)
	}
	return nil
}

// PendingInOrder returns up to limit outbox rows in insertion order.
// A limit of 0 returns all pending rows.
func (r *statusRepository) PendingInOrder(ctx context.Context, limit int) ([]entities.PendingUpdate, error) {
	var pending []entities.PendingUpdate
	query := r.db.WithContext(ctx).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&pending).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending updates: %w", err)
	}
	return pending, nil
}

// DeletePending removes one outbox row after confirmed delivery or
// budget exhaustion.
func (r *statusRepository) DeletePending(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.PendingUpdate{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete pending update %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPendingNotFound
	}
	return nil
}

// IncrementPendingError bumps the client-error count and returns the new
// value.
func (r *statusRepository) IncrementPendingError(ctx context.Context, id uint) (int, error) {
	result := r.db.WithContext(ctx).Model(&entities.PendingUpdate{}).Where("id = ?", id).
		Update("error_count", gorm.Expr("error_count + 1"))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to increment error count for pending update %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrPendingNotFound
	}
	var updated entities.PendingUpdate
	if err := r.db.WithContext(ctx).First(&updated, id).Error; err != nil {
		return 0, fmt.Errorf("failed to reload pending update %d: %w", id, err)
	}
	return updated.ErrorCount, nil
}

// CountPending returns the outbox depth for metrics.
func (r *statusRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.PendingUpdate{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count pending updates: %w", err)
	}
	return count, nil
}
