package enums

import "fmt"

// ReminderChannel identifies how a reminder reaches the tenant.
type ReminderChannel string

const (
	ReminderChannelSMS   ReminderChannel = "sms"
	ReminderChannelEmail ReminderChannel = "email"
)

var validReminderChannels = []ReminderChannel{
	ReminderChannelSMS,
	ReminderChannelEmail,
}

func (c ReminderChannel) String() string {
	return string(c)
}

func (c ReminderChannel) IsValid() bool {
	for _, candidate := range validReminderChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseReminderChannel converts raw input into a ReminderChannel.
func ParseReminderChannel(value string) (ReminderChannel, error) {
	for _, candidate := range validReminderChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reminder channel %q", value)
}
