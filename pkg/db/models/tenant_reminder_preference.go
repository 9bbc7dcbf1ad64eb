package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wawire/rentpulse-backend/pkg/enums"
)

// TenantReminderPreference overrides landlord reminder defaults for one
// tenant. Absence of a row means the landlord defaults apply unchanged.
type TenantReminderPreference struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID   uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:tenant_reminder_preferences_tenant_id_key"`
	DisableAll bool      `gorm:"column:disable_all;not null;default:false"`

	OptOutSevenDaysBefore bool `gorm:"column:opt_out_seven_days_before;not null;default:false"`
	OptOutThreeDaysBefore bool `gorm:"column:opt_out_three_days_before;not null;default:false"`
	OptOutOneDayBefore    bool `gorm:"column:opt_out_one_day_before;not null;default:false"`
	OptOutOnDueDate       bool `gorm:"column:opt_out_on_due_date;not null;default:false"`
	OptOutOneDayAfter     bool `gorm:"column:opt_out_one_day_after;not null;default:false"`
	OptOutThreeDaysAfter  bool `gorm:"column:opt_out_three_days_after;not null;default:false"`
	OptOutSevenDaysAfter  bool `gorm:"column:opt_out_seven_days_after;not null;default:false"`

	PreferredChannel *enums.ReminderChannel `gorm:"column:preferred_channel;type:reminder_channel"`
	AlternatePhone   *string                `gorm:"column:alternate_phone"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (TenantReminderPreference) TableName() string { return "tenant_reminder_preferences" }

// OptedOutOf reports whether the tenant declined the given reminder type.
func (p TenantReminderPreference) OptedOutOf(t enums.ReminderType) bool {
	if p.DisableAll {
		return true
	}
	switch t {
	case enums.ReminderTypeSevenDaysBefore:
		return p.OptOutSevenDaysBefore
	case enums.ReminderTypeThreeDaysBefore:
		return p.OptOutThreeDaysBefore
	case enums.ReminderTypeOneDayBefore:
		return p.OptOutOneDayBefore
	case enums.ReminderTypeDueDate:
		return p.OptOutOnDueDate
	case enums.ReminderTypeOneDayAfter:
		return p.OptOutOneDayAfter
	case enums.ReminderTypeThreeDaysAfter:
		return p.OptOutThreeDaysAfter
	case enums.ReminderTypeSevenDaysAfter:
		return p.OptOutSevenDaysAfter
	}
	return false
}
