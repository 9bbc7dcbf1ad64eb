package reminders

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wawire/rentpulse-backend/internal/tenants"
	"github.com/wawire/rentpulse-backend/pkg/db/models"
	"github.com/wawire/rentpulse-backend/pkg/enums"
	"github.com/wawire/rentpulse-backend/pkg/template"
)

// defaultTemplates are the stock messages used when a landlord has not set an
// override for a reminder type.
var defaultTemplates = map[enums.ReminderType]string{
	enums.ReminderTypeSevenDaysBefore: "Hi {tenant_name}, your rent of KES {amount} for {property} {unit} is due on {due_date}. Pay early to avoid the rush.",
	enums.ReminderTypeThreeDaysBefore: "Hi {tenant_name}, a reminder that your rent of KES {amount} is due on {due_date}.",
	enums.ReminderTypeOneDayBefore:    "Hi {tenant_name}, your rent of KES {amount} is due tomorrow, {due_date}.",
	enums.ReminderTypeDueDate:         "Hi {tenant_name}, your rent of KES {amount} for {property} {unit} is due today. Kindly make your payment.",
	enums.ReminderTypeOneDayAfter:     "Hi {tenant_name}, your rent of KES {amount} was due yesterday. Kindly settle it to avoid penalties.",
	enums.ReminderTypeThreeDaysAfter:  "Hi {tenant_name}, your rent of KES {amount} is now 3 days overdue. Please pay or contact {landlord_name} on {landlord_phone}.",
	enums.ReminderTypeSevenDaysAfter:  "Hi {tenant_name}, your rent of KES {amount} is 7 days overdue. Please contact {landlord_name} on {landlord_phone} urgently.",
}

// templateFor picks the landlord override when one exists, else the default.
func templateFor(settings *models.ReminderSettings, t enums.ReminderType) string {
	if override := settings.TemplateFor(t); override != nil && strings.TrimSpace(*override) != "" {
		return *override
	}
	return defaultTemplates[t]
}

// renderMessage fills a reminder template from the tenancy and reminder facts.
// {days} is signed relative to the due date: negative before it, positive
// once overdue.
func renderMessage(tmpl string, tenancy *tenants.Tenancy, reminder *models.RentReminder) string {
	return template.Render(tmpl, map[string]string{
		"tenant_name":    tenancy.Tenant.FullName(),
		"tenant_phone":   tenancy.Tenant.PhoneNumber,
		"landlord_name":  tenancy.LandlordName,
		"landlord_phone": tenancy.LandlordPhone,
		"property":       tenancy.PropertyName,
		"unit":           tenancy.UnitNumber,
		"amount":         formatAmount(reminder.Amount),
		"due_date":       reminder.DueDate.Format("2 Jan 2006"),
		"days":           strconv.Itoa(reminder.Type.OffsetDays()),
	})
}

// formatAmount renders a money value with thousands separators and no
// trailing zero-cents, matching how amounts read in local SMS traffic.
func formatAmount(amount decimal.Decimal) string {
	whole := amount.Truncate(0)
	frac := amount.Sub(whole)

	digits := whole.String()
	negative := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)

	out := strings.Join(groups, ",")
	if negative {
		out = "-" + out
	}
	if !frac.IsZero() {
		out += strings.TrimPrefix(amount.Sub(whole).Abs().StringFixed(2), "0")
	}
	return out
}
