package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/rentpulse-backend/pkg/enums"
)

// GatewayTransaction is the audit record for one outbound gateway request or
// one inbound unsolicited payment. Rows are never deleted.
type GatewayTransaction struct {
	ID   uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Kind enums.TransactionKind `gorm:"column:kind;type:transaction_kind;not null"`

	// Correlation keys issued by the gateway. At least one is always set;
	// checkout_request_id carries the unique index used for dedupe.
	MerchantRequestID *string `gorm:"column:merchant_request_id"`
	CheckoutRequestID *string `gorm:"column:checkout_request_id;uniqueIndex:gateway_transactions_checkout_request_id_key"`
	ConversationID    *string `gorm:"column:conversation_id"`

	Amount           decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	PhoneNumber      string                  `gorm:"column:phone_number;not null"`
	AccountReference string                  `gorm:"column:account_reference;not null"`
	Status           enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'requested'"`

	ResultCode        *int    `gorm:"column:result_code"`
	ResultDescription *string `gorm:"column:result_description"`
	ReceiptNumber     *string `gorm:"column:receipt_number"`

	PaymentID *uuid.UUID `gorm:"column:payment_id;type:uuid"`
	TenantID  *uuid.UUID `gorm:"column:tenant_id;type:uuid"`

	RawRequest  *string `gorm:"column:raw_request;type:jsonb"`
	RawResponse *string `gorm:"column:raw_response;type:jsonb"`
	RawCallback *string `gorm:"column:raw_callback;type:jsonb"`

	CallbackReceivedAt *time.Time `gorm:"column:callback_received_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (GatewayTransaction) TableName() string { return "gateway_transactions" }
