package tenants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wawire/rentpulse-backend/pkg/db/models"
)

// Tenancy is one active tenant joined with the display fields the reminder
// engine needs for message rendering.
type Tenancy struct {
	Tenant        models.Tenant
	PropertyName  string
	UnitNumber    string
	LandlordName  string
	LandlordPhone string
}

// Repository exposes the tenancy reads consumed by the payment and reminder
// engines. The tenant CRUD surface lives elsewhere.
type Repository interface {
	ListActive(ctx context.Context) ([]Tenancy, error)
	FindTenancyByID(ctx context.Context, tenantID uuid.UUID) (*Tenancy, error)
	FindByAccountRef(ctx context.Context, accountRef string) (*models.Tenant, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a tenancy repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type tenancyRow struct {
	models.Tenant
	PropertyName  string `gorm:"column:property_name"`
	UnitNumber    string `gorm:"column:unit_number"`
	LandlordName  string `gorm:"column:landlord_name"`
	LandlordPhone string `gorm:"column:landlord_phone"`
}

func (r *repositoryImpl) tenancyQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Select("tenants.*, properties.name AS property_name, units.unit_number AS unit_number, landlords.name AS landlord_name, landlords.phone_number AS landlord_phone").
		Joins("JOIN properties ON properties.id = tenants.property_id").
		Joins("JOIN units ON units.id = tenants.unit_id").
		Joins("JOIN landlords ON landlords.id = tenants.landlord_id")
}

func (r *repositoryImpl) ListActive(ctx context.Context) ([]Tenancy, error) {
	var rows []tenancyRow
	if err := r.tenancyQuery(ctx).Where("tenants.active = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	tenancies := make([]Tenancy, 0, len(rows))
	for _, row := range rows {
		tenancies = append(tenancies, row.toTenancy())
	}
	return tenancies, nil
}

func (r *repositoryImpl) FindTenancyByID(ctx context.Context, tenantID uuid.UUID) (*Tenancy, error) {
	var row tenancyRow
	err := r.tenancyQuery(ctx).Where("tenants.id = ?", tenantID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	tenancy := row.toTenancy()
	return &tenancy, nil
}

func (r *repositoryImpl) FindByAccountRef(ctx context.Context, accountRef string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Joins("JOIN payment_accounts ON payment_accounts.tenant_id = tenants.id").
		Where("payment_accounts.account_reference = ? AND payment_accounts.active = ?", accountRef, true).
		First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tenant, nil
}

func (row tenancyRow) toTenancy() Tenancy {
	return Tenancy{
		Tenant:        row.Tenant,
		PropertyName:  row.PropertyName,
		UnitNumber:    row.UnitNumber,
		LandlordName:  row.LandlordName,
		LandlordPhone: row.LandlordPhone,
	}
}
