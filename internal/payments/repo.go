package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wawire/rentpulse-backend/pkg/db/models"
	"github.com/wawire/rentpulse-backend/pkg/enums"
)

// Repository persists materialized payments and answers the paid-state
// questions the reminder engine asks.
type Repository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByTransactionRef(ctx context.Context, ref string) (*models.Payment, error)
	HasPaymentForPeriod(ctx context.Context, tenantID uuid.UUID, month, year int) (bool, error)
	FindActiveAccount(ctx context.Context, tenantID uuid.UUID, method enums.PaymentMethod) (*models.PaymentAccount, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repositoryImpl) FindByTransactionRef(ctx context.Context, ref string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("transaction_ref = ?", ref).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// HasPaymentForPeriod reports whether the tenant has any non-rejected payment
// recorded against the given billing cycle. Pending counts: a payment awaiting
// manual confirmation should still suppress dunning.
func (r *repositoryImpl) HasPaymentForPeriod(ctx context.Context, tenantID uuid.UUID, month, year int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("tenant_id = ? AND billing_month = ? AND billing_year = ? AND status IN ?",
			tenantID, month, year,
			[]enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusConfirmed}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) FindActiveAccount(ctx context.Context, tenantID uuid.UUID, method enums.PaymentMethod) (*models.PaymentAccount, error) {
	var account models.PaymentAccount
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND method = ? AND active = ?", tenantID, method, true).
		Order("created_at DESC").
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}
