package cron

import (
	"context"
	"errors"
)

// reminderDispatcher is the dispatch pass the job delegates to.
type reminderDispatcher interface {
	DispatchDue(ctx context.Context) error
}

// ReminderDispatchJob sends scheduled reminders that have come due.
type ReminderDispatchJob struct {
	dispatcher reminderDispatcher
}

// NewReminderDispatchJob builds the dispatch job.
func NewReminderDispatchJob(dispatcher reminderDispatcher) (*ReminderDispatchJob, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher required")
	}
	return &ReminderDispatchJob{dispatcher: dispatcher}, nil
}

func (j *ReminderDispatchJob) Name() string { return "reminder_dispatch" }

func (j *ReminderDispatchJob) Run(ctx context.Context) error {
	return j.dispatcher.DispatchDue(ctx)
}
