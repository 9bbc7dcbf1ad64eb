package reminders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wawire/rentpulse-backend/pkg/db"
	"github.com/wawire/rentpulse-backend/pkg/db/models"
	"github.com/wawire/rentpulse-backend/pkg/enums"
)

// SettingsRepository serves landlord reminder settings, creating the default
// row on first read.
type SettingsRepository interface {
	GetOrCreate(ctx context.Context, landlordID uuid.UUID) (*models.ReminderSettings, error)
	Update(ctx context.Context, settings *models.ReminderSettings) error
}

// PreferenceRepository serves per-tenant reminder overrides.
type PreferenceRepository interface {
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*models.TenantReminderPreference, error)
	Upsert(ctx context.Context, pref *models.TenantReminderPreference) error
}

type settingsRepositoryImpl struct {
	db *gorm.DB
}

// NewSettingsRepository returns a settings repository bound to the provided database.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepositoryImpl{db: db}
}

func defaultSettings(landlordID uuid.UUID) *models.ReminderSettings {
	return &models.ReminderSettings{
		LandlordID:      landlordID,
		Enabled:         true,
		SevenDaysBefore: true,
		ThreeDaysBefore: true,
		OneDayBefore:    true,
		OnDueDate:       true,
		OneDayAfter:     true,
		ThreeDaysAfter:  true,
		SevenDaysAfter:  true,
		DefaultChannel:  enums.ReminderChannelSMS,
		QuietHoursStart: "21:00",
		QuietHoursEnd:   "07:00",
	}
}

func (r *settingsRepositoryImpl) GetOrCreate(ctx context.Context, landlordID uuid.UUID) (*models.ReminderSettings, error) {
	var settings models.ReminderSettings
	err := r.db.WithContext(ctx).Where("landlord_id = ?", landlordID).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := defaultSettings(landlordID)
	if err := r.db.WithContext(ctx).Create(fresh).Error; err != nil {
		// Two first reads can race; the loser re-reads the winner's row.
		if db.IsUniqueViolation(err, "reminder_settings_landlord_id_key") {
			err = r.db.WithContext(ctx).Where("landlord_id = ?", landlordID).First(&settings).Error
			if err != nil {
				return nil, err
			}
			return &settings, nil
		}
		return nil, err
	}
	return fresh, nil
}

func (r *settingsRepositoryImpl) Update(ctx context.Context, settings *models.ReminderSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}

type preferenceRepositoryImpl struct {
	db *gorm.DB
}

// NewPreferenceRepository returns a preference repository bound to the provided database.
func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &preferenceRepositoryImpl{db: db}
}

func (r *preferenceRepositoryImpl) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*models.TenantReminderPreference, error) {
	var pref models.TenantReminderPreference
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

func (r *preferenceRepositoryImpl) Upsert(ctx context.Context, pref *models.TenantReminderPreference) error {
	existing, err := r.FindByTenant(ctx, pref.TenantID)
	if err != nil {
		return err
	}
	if existing != nil {
		pref.ID = existing.ID
	}
	return r.db.WithContext(ctx).Save(pref).Error
}
