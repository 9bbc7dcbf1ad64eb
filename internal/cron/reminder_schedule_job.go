package cron

import (
	"context"
	"errors"
)

// reminderScheduler is the scheduling pass the job delegates to.
type reminderScheduler interface {
	ScheduleAll(ctx context.Context) error
}

// ReminderScheduleJob rebuilds the reminder timeline for active tenancies.
type ReminderScheduleJob struct {
	scheduler reminderScheduler
}

// NewReminderScheduleJob builds the scheduling job.
func NewReminderScheduleJob(scheduler reminderScheduler) (*ReminderScheduleJob, error) {
	if scheduler == nil {
		return nil, errors.New("scheduler required")
	}
	return &ReminderScheduleJob{scheduler: scheduler}, nil
}

func (j *ReminderScheduleJob) Name() string { return "reminder_schedule" }

func (j *ReminderScheduleJob) Run(ctx context.Context) error {
	return j.scheduler.ScheduleAll(ctx)
}
