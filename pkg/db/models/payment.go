package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/rentpulse-backend/pkg/enums"
)

// Payment is the canonical tenant-facing record of money received. It is
// materialized exactly once per gateway transaction; the unique index on
// transaction_ref is what enforces that under concurrent callbacks.
type Payment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID         uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null"`
	UnitID           uuid.UUID           `gorm:"column:unit_id;type:uuid;not null"`
	PaymentAccountID uuid.UUID           `gorm:"column:payment_account_id;type:uuid;not null"`
	Amount           decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Method           enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	Status           enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	PaymentDate      time.Time           `gorm:"column:payment_date;not null"`
	DueDate          time.Time           `gorm:"column:due_date;not null"`
	BillingMonth     int                 `gorm:"column:billing_month;not null"`
	BillingYear      int                 `gorm:"column:billing_year;not null"`
	PhoneNumber      string              `gorm:"column:phone_number"`
	ReceiptNumber    *string             `gorm:"column:receipt_number"`
	TransactionRef   string              `gorm:"column:transaction_ref;not null;uniqueIndex:payments_transaction_ref_key"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }
