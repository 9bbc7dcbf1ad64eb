package transactions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wawire/rentpulse-backend/pkg/db/models"
	"github.com/wawire/rentpulse-backend/pkg/enums"
)

// IssuanceFields records what the gateway handed back when a request was
// accepted: the correlation keys and the raw acceptance body.
type IssuanceFields struct {
	MerchantRequestID *string
	CheckoutRequestID *string
	ConversationID    *string
	RawResponse       string
}

// Resolution carries the terminal outcome applied to a transaction when a
// gateway callback or a status query settles it.
type Resolution struct {
	Status            enums.TransactionStatus
	ResultCode        int
	ResultDescription string
	ReceiptNumber     *string
	RawCallback       *string
	ReceivedAt        time.Time
}

// Repository persists gateway transactions. Resolve is the only path from an
// open status to a terminal one; it reports whether this call won the
// transition so duplicate callback deliveries collapse to a no-op.
type Repository interface {
	Create(ctx context.Context, txn *models.GatewayTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.GatewayTransaction, error)
	FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.GatewayTransaction, error)
	FindByConversationID(ctx context.Context, conversationID string) (*models.GatewayTransaction, error)
	FindOpenByAccountRef(ctx context.Context, accountRef string, amount decimal.Decimal) (*models.GatewayTransaction, error)
	FindOpenOlderThan(ctx context.Context, kind enums.TransactionKind, cutoff time.Time, limit int) ([]models.GatewayTransaction, error)
	RecordIssuance(ctx context.Context, id uuid.UUID, fields IssuanceFields) error
	Resolve(ctx context.Context, id uuid.UUID, res Resolution) (bool, error)
	LinkPayment(ctx context.Context, id uuid.UUID, paymentID uuid.UUID) error
}

var openStatuses = []enums.TransactionStatus{
	enums.TransactionStatusRequested,
	enums.TransactionStatusPending,
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a gateway transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, txn *models.GatewayTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.GatewayTransaction, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repositoryImpl) FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.GatewayTransaction, error) {
	return r.findOne(ctx, "checkout_request_id = ?", checkoutRequestID)
}

func (r *repositoryImpl) FindByConversationID(ctx context.Context, conversationID string) (*models.GatewayTransaction, error) {
	return r.findOne(ctx, "conversation_id = ?", conversationID)
}

// FindOpenByAccountRef correlates an inbound confirmation with an open push
// request for the same account and amount. Oldest first so a retried push does
// not orphan the original row.
func (r *repositoryImpl) FindOpenByAccountRef(ctx context.Context, accountRef string, amount decimal.Decimal) (*models.GatewayTransaction, error) {
	var txn models.GatewayTransaction
	err := r.db.WithContext(ctx).
		Where("account_reference = ? AND amount = ? AND status IN ?", accountRef, amount, openStatuses).
		Order("created_at ASC").
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repositoryImpl) FindOpenOlderThan(ctx context.Context, kind enums.TransactionKind, cutoff time.Time, limit int) ([]models.GatewayTransaction, error) {
	var txns []models.GatewayTransaction
	err := r.db.WithContext(ctx).
		Where("kind = ? AND status IN ? AND created_at < ?", kind, openStatuses, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

// RecordIssuance moves a freshly created row from requested to pending and
// attaches the correlation keys the gateway assigned.
func (r *repositoryImpl) RecordIssuance(ctx context.Context, id uuid.UUID, fields IssuanceFields) error {
	updates := map[string]any{
		"status":       enums.TransactionStatusPending,
		"raw_response": fields.RawResponse,
	}
	if fields.MerchantRequestID != nil {
		updates["merchant_request_id"] = *fields.MerchantRequestID
	}
	if fields.CheckoutRequestID != nil {
		updates["checkout_request_id"] = *fields.CheckoutRequestID
	}
	if fields.ConversationID != nil {
		updates["conversation_id"] = *fields.ConversationID
	}
	return r.db.WithContext(ctx).
		Model(&models.GatewayTransaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusRequested).
		Updates(updates).Error
}

// Resolve applies a terminal status with a conditional update. The status
// guard makes the first delivery win; late or duplicate callbacks see zero
// rows affected and are reported as not applied.
func (r *repositoryImpl) Resolve(ctx context.Context, id uuid.UUID, res Resolution) (bool, error) {
	updates := map[string]any{
		"status":               res.Status,
		"result_code":          res.ResultCode,
		"result_description":   res.ResultDescription,
		"callback_received_at": res.ReceivedAt,
	}
	if res.ReceiptNumber != nil {
		updates["receipt_number"] = *res.ReceiptNumber
	}
	if res.RawCallback != nil {
		updates["raw_callback"] = *res.RawCallback
	}
	tx := r.db.WithContext(ctx).
		Model(&models.GatewayTransaction{}).
		Where("id = ? AND status IN ?", id, openStatuses).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *repositoryImpl) LinkPayment(ctx context.Context, id uuid.UUID, paymentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.GatewayTransaction{}).
		Where("id = ?", id).
		Update("payment_id", paymentID).Error
}

func (r *repositoryImpl) findOne(ctx context.Context, query string, arg any) (*models.GatewayTransaction, error) {
	var txn models.GatewayTransaction
	err := r.db.WithContext(ctx).Where(query, arg).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
