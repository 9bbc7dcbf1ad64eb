package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/rentpulse-backend/pkg/enums"
)

// The rental CRUD surface lives outside this service; these models carry
// only the columns the payment and reminder engines join against.

type Landlord struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	PhoneNumber string    `gorm:"column:phone_number;not null"`
	Email       *string   `gorm:"column:email"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Landlord) TableName() string { return "landlords" }

type Property struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LandlordID uuid.UUID `gorm:"column:landlord_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Property) TableName() string { return "properties" }

type Unit struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PropertyID uuid.UUID `gorm:"column:property_id;type:uuid;not null;index"`
	UnitNumber string    `gorm:"column:unit_number;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Unit) TableName() string { return "units" }

type Tenant struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LandlordID  uuid.UUID       `gorm:"column:landlord_id;type:uuid;not null;index"`
	PropertyID  uuid.UUID       `gorm:"column:property_id;type:uuid;not null"`
	UnitID      uuid.UUID       `gorm:"column:unit_id;type:uuid;not null"`
	FirstName   string          `gorm:"column:first_name;not null"`
	LastName    string          `gorm:"column:last_name;not null"`
	PhoneNumber string          `gorm:"column:phone_number;not null"`
	RentDueDay  int             `gorm:"column:rent_due_day;not null;default:1"`
	RentAmount  decimal.Decimal `gorm:"column:rent_amount;type:numeric(12,2);not null"`
	Active      bool            `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Tenant) TableName() string { return "tenants" }

// FullName joins the tenant's name parts for display.
func (t Tenant) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

// PaymentAccount links a tenant to one collection route (e.g. an M-Pesa
// paybill account reference).
type PaymentAccount struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID         uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	Method           enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	AccountReference string              `gorm:"column:account_reference;not null;index"`
	Active           bool                `gorm:"column:active;not null;default:true"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentAccount) TableName() string { return "payment_accounts" }
