package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/rentpulse-backend/pkg/enums"
)

// RentReminder is one scheduled notification for one (tenant, due date,
// reminder type). A partial unique index keeps at most one scheduled row
// per combination; superseded rows are cancelled, not deleted.
type RentReminder struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID   uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index"`
	LandlordID uuid.UUID `gorm:"column:landlord_id;type:uuid;not null"`
	PropertyID uuid.UUID `gorm:"column:property_id;type:uuid;not null"`
	UnitID     uuid.UUID `gorm:"column:unit_id;type:uuid;not null"`

	Type    enums.ReminderType    `gorm:"column:type;type:reminder_type;not null"`
	Channel enums.ReminderChannel `gorm:"column:channel;type:reminder_channel;not null"`
	Status  enums.ReminderStatus  `gorm:"column:status;type:reminder_status;not null;default:'scheduled'"`

	ScheduledDate time.Time       `gorm:"column:scheduled_date;not null;index"`
	SentAt        *time.Time      `gorm:"column:sent_at"`
	DueDate       time.Time       `gorm:"column:due_date;not null"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`

	Message       *string    `gorm:"column:message"`
	FailureReason *string    `gorm:"column:failure_reason"`
	RetryCount    int        `gorm:"column:retry_count;not null;default:0"`
	LastRetryAt   *time.Time `gorm:"column:last_retry_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (RentReminder) TableName() string { return "rent_reminders" }
