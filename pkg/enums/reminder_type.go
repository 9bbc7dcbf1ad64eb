package enums

import "fmt"

// ReminderType identifies where a reminder sits relative to the rent due date.
type ReminderType string

const (
	ReminderTypeSevenDaysBefore ReminderType = "seven_days_before"
	ReminderTypeThreeDaysBefore ReminderType = "three_days_before"
	ReminderTypeOneDayBefore    ReminderType = "one_day_before"
	ReminderTypeDueDate         ReminderType = "due_date"
	ReminderTypeOneDayAfter     ReminderType = "one_day_after"
	ReminderTypeThreeDaysAfter  ReminderType = "three_days_after"
	ReminderTypeSevenDaysAfter  ReminderType = "seven_days_after"
)

// AllReminderTypes lists every reminder type in schedule order.
var AllReminderTypes = []ReminderType{
	ReminderTypeSevenDaysBefore,
	ReminderTypeThreeDaysBefore,
	ReminderTypeOneDayBefore,
	ReminderTypeDueDate,
	ReminderTypeOneDayAfter,
	ReminderTypeThreeDaysAfter,
	ReminderTypeSevenDaysAfter,
}

var reminderOffsets = map[ReminderType]int{
	ReminderTypeSevenDaysBefore: -7,
	ReminderTypeThreeDaysBefore: -3,
	ReminderTypeOneDayBefore:    -1,
	ReminderTypeDueDate:         0,
	ReminderTypeOneDayAfter:     1,
	ReminderTypeThreeDaysAfter:  3,
	ReminderTypeSevenDaysAfter:  7,
}

// String implements fmt.Stringer.
func (r ReminderType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReminderType.
func (r ReminderType) IsValid() bool {
	_, ok := reminderOffsets[r]
	return ok
}

// OffsetDays returns the signed day offset from the due date.
func (r ReminderType) OffsetDays() int {
	return reminderOffsets[r]
}

// ParseReminderType converts raw input into a ReminderType.
func ParseReminderType(value string) (ReminderType, error) {
	for _, candidate := range AllReminderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reminder type %q", value)
}
