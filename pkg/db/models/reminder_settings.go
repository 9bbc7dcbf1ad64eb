package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wawire/rentpulse-backend/pkg/enums"
)

// ReminderSettings holds one landlord's reminder configuration. A row is
// created lazily with defaults the first time it is read.
type ReminderSettings struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LandlordID uuid.UUID `gorm:"column:landlord_id;type:uuid;not null;uniqueIndex:reminder_settings_landlord_id_key"`
	Enabled    bool      `gorm:"column:enabled;not null;default:true"`

	SevenDaysBefore bool `gorm:"column:seven_days_before;not null;default:true"`
	ThreeDaysBefore bool `gorm:"column:three_days_before;not null;default:true"`
	OneDayBefore    bool `gorm:"column:one_day_before;not null;default:true"`
	OnDueDate       bool `gorm:"column:on_due_date;not null;default:true"`
	OneDayAfter     bool `gorm:"column:one_day_after;not null;default:true"`
	ThreeDaysAfter  bool `gorm:"column:three_days_after;not null;default:true"`
	SevenDaysAfter  bool `gorm:"column:seven_days_after;not null;default:true"`

	TemplateSevenDaysBefore *string `gorm:"column:template_seven_days_before"`
	TemplateThreeDaysBefore *string `gorm:"column:template_three_days_before"`
	TemplateOneDayBefore    *string `gorm:"column:template_one_day_before"`
	TemplateOnDueDate       *string `gorm:"column:template_on_due_date"`
	TemplateOneDayAfter     *string `gorm:"column:template_one_day_after"`
	TemplateThreeDaysAfter  *string `gorm:"column:template_three_days_after"`
	TemplateSevenDaysAfter  *string `gorm:"column:template_seven_days_after"`

	DefaultChannel  enums.ReminderChannel `gorm:"column:default_channel;type:reminder_channel;not null;default:'sms'"`
	QuietHoursStart string                `gorm:"column:quiet_hours_start;not null;default:'21:00'"`
	QuietHoursEnd   string                `gorm:"column:quiet_hours_end;not null;default:'07:00'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ReminderSettings) TableName() string { return "reminder_settings" }

// EnabledFor reports whether the given reminder type is switched on.
func (s ReminderSettings) EnabledFor(t enums.ReminderType) bool {
	switch t {
	case enums.ReminderTypeSevenDaysBefore:
		return s.SevenDaysBefore
	case enums.ReminderTypeThreeDaysBefore:
		return s.ThreeDaysBefore
	case enums.ReminderTypeOneDayBefore:
		return s.OneDayBefore
	case enums.ReminderTypeDueDate:
		return s.OnDueDate
	case enums.ReminderTypeOneDayAfter:
		return s.OneDayAfter
	case enums.ReminderTypeThreeDaysAfter:
		return s.ThreeDaysAfter
	case enums.ReminderTypeSevenDaysAfter:
		return s.SevenDaysAfter
	}
	return false
}

// TemplateFor returns the landlord's template override, or nil when the
// global default should apply.
func (s ReminderSettings) TemplateFor(t enums.ReminderType) *string {
	switch t {
	case enums.ReminderTypeSevenDaysBefore:
		return s.TemplateSevenDaysBefore
	case enums.ReminderTypeThreeDaysBefore:
		return s.TemplateThreeDaysBefore
	case enums.ReminderTypeOneDayBefore:
		return s.TemplateOneDayBefore
	case enums.ReminderTypeDueDate:
		return s.TemplateOnDueDate
	case enums.ReminderTypeOneDayAfter:
		return s.TemplateOneDayAfter
	case enums.ReminderTypeThreeDaysAfter:
		return s.TemplateThreeDaysAfter
	case enums.ReminderTypeSevenDaysAfter:
		return s.TemplateSevenDaysAfter
	}
	return nil
}
