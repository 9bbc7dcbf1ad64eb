package reminders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wawire/rentpulse-backend/pkg/db/models"
	"github.com/wawire/rentpulse-backend/pkg/enums"
)

// Repository persists rent reminders. Status transitions are plain updates;
// the partial unique index on (tenant_id, due_date, type) for scheduled rows
// keeps concurrent scheduler passes from double-booking a slot.
type Repository interface {
	Create(ctx context.Context, reminder *models.RentReminder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RentReminder, error)
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.RentReminder, error)
	CancelScheduledForDueDate(ctx context.Context, tenantID uuid.UUID, dueDate time.Time) error
	CancelScheduled(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, message string) error
	MarkSkipped(ctx context.Context, id uuid.UUID, reason string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a reminder repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, reminder *models.RentReminder) error {
	return r.db.WithContext(ctx).Create(reminder).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.RentReminder, error) {
	var reminder models.RentReminder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reminder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

func (r *repositoryImpl) ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.RentReminder, error) {
	var due []models.RentReminder
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_date <= ?", enums.ReminderStatusScheduled, asOf).
		Order("scheduled_date ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

// CancelScheduledForDueDate clears the tenant's whole scheduled set for one
// due date so the scheduler can lay it down again from current settings.
func (r *repositoryImpl) CancelScheduledForDueDate(ctx context.Context, tenantID uuid.UUID, dueDate time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.RentReminder{}).
		Where("tenant_id = ? AND due_date = ? AND status = ?", tenantID, dueDate, enums.ReminderStatusScheduled).
		Update("status", enums.ReminderStatusCancelled).Error
}

// CancelScheduled cancels one reminder if it is still scheduled, reporting
// whether the transition happened.
func (r *repositoryImpl) CancelScheduled(ctx context.Context, id uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.RentReminder{}).
		Where("id = ? AND status = ?", id, enums.ReminderStatusScheduled).
		Update("status", enums.ReminderStatusCancelled)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *repositoryImpl) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, message string) error {
	return r.db.WithContext(ctx).
		Model(&models.RentReminder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  enums.ReminderStatusSent,
			"sent_at": sentAt,
			"message": message,
		}).Error
}

func (r *repositoryImpl) MarkSkipped(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.RentReminder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         enums.ReminderStatusSkipped,
			"failure_reason": reason,
		}).Error
}

func (r *repositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.RentReminder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         enums.ReminderStatusFailed,
			"failure_reason": reason,
			"retry_count":    gorm.Expr("retry_count + 1"),
			"last_retry_at":  at,
		}).Error
}
