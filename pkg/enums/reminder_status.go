package enums

import "fmt"

// ReminderStatus tracks the lifecycle of a scheduled rent reminder.
type ReminderStatus string

const (
	ReminderStatusScheduled ReminderStatus = "scheduled"
	ReminderStatusSent      ReminderStatus = "sent"
	ReminderStatusFailed    ReminderStatus = "failed"
	ReminderStatusCancelled ReminderStatus = "cancelled"
	ReminderStatusSkipped   ReminderStatus = "skipped"
)

var validReminderStatuses = []ReminderStatus{
	ReminderStatusScheduled,
	ReminderStatusSent,
	ReminderStatusFailed,
	ReminderStatusCancelled,
	ReminderStatusSkipped,
}

func (s ReminderStatus) String() string {
	return string(s)
}

func (s ReminderStatus) IsValid() bool {
	for _, candidate := range validReminderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReminderStatus converts raw input into a ReminderStatus.
func ParseReminderStatus(value string) (ReminderStatus, error) {
	for _, candidate := range validReminderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reminder status %q", value)
}
