package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wawire/rentpulse-backend/internal/tenants"
	"github.com/wawire/rentpulse-backend/pkg/db/models"
	"github.com/wawire/rentpulse-backend/pkg/enums"
	pkgerrors "github.com/wawire/rentpulse-backend/pkg/errors"
	"github.com/wawire/rentpulse-backend/pkg/logger"
)

// defaultDispatchBatch caps how many due reminders one pass picks up.
const defaultDispatchBatch = 100

// Sender delivers one rendered message over one channel.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// TenancyFinder resolves the tenancy details a message render needs.
type TenancyFinder interface {
	FindTenancyByID(ctx context.Context, tenantID uuid.UUID) (*tenants.Tenancy, error)
}

// DispatcherParams bundles the dependencies for NewDispatcher.
type DispatcherParams struct {
	Repo        Repository
	Settings    SettingsRepository
	Preferences PreferenceRepository
	Tenancies   TenancyFinder
	Payments    PaidChecker
	Senders     map[enums.ReminderChannel]Sender
	Logger      *logger.Logger
	Now         func() time.Time
	BatchSize   int
}

// Dispatcher sends scheduled reminders that have come due. Each reminder is
// re-checked against the paid state right before sending so a payment that
// landed after scheduling suppresses the message. Failures are recorded, not
// retried automatically; DispatchOne is the manual retry path.
type Dispatcher struct {
	repo        Repository
	settings    SettingsRepository
	preferences PreferenceRepository
	tenancies   TenancyFinder
	payments    PaidChecker
	senders     map[enums.ReminderChannel]Sender
	logg        *logger.Logger
	now         func() time.Time
	batchSize   int
}

// NewDispatcher validates dependencies and constructs a Dispatcher.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reminders: repo is required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("reminders: settings repo is required")
	}
	if params.Preferences == nil {
		return nil, fmt.Errorf("reminders: preference repo is required")
	}
	if params.Tenancies == nil {
		return nil, fmt.Errorf("reminders: tenancy finder is required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("reminders: paid checker is required")
	}
	if len(params.Senders) == 0 {
		return nil, fmt.Errorf("reminders: at least one sender is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("reminders: logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultDispatchBatch
	}
	return &Dispatcher{
		repo:        params.Repo,
		settings:    params.Settings,
		preferences: params.Preferences,
		tenancies:   params.Tenancies,
		payments:    params.Payments,
		senders:     params.Senders,
		logg:        params.Logger,
		now:         now,
		batchSize:   batch,
	}, nil
}

// DispatchDue processes one batch of due reminders. Per-item failures are
// recorded on the reminder and never abort the batch.
func (d *Dispatcher) DispatchDue(ctx context.Context) error {
	due, err := d.repo.ListDue(ctx, d.now(), d.batchSize)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing due reminders failed")
	}

	sent, skipped := 0, 0
	for i := range due {
		reminder := &due[i]
		itemCtx := d.logg.WithFields(ctx, map[string]any{
			"reminder_id": reminder.ID.String(),
			"tenant_id":   reminder.TenantID.String(),
		})
		outcome, err := d.dispatch(itemCtx, reminder)
		if err != nil {
			d.logg.Error(itemCtx, "dispatching reminder failed", err)
			continue
		}
		switch outcome {
		case enums.ReminderStatusSent:
			sent++
		case enums.ReminderStatusSkipped:
			skipped++
		}
	}
	if len(due) > 0 {
		d.logg.Info(d.logg.WithFields(ctx, map[string]any{
			"due":     len(due),
			"sent":    sent,
			"skipped": skipped,
		}), "reminder dispatch pass finished")
	}
	return nil
}

// DispatchOne sends a single reminder on demand, outside the normal cadence.
// This is also the only retry path for failed reminders; the cron pass never
// picks them back up. The paid re-check and quiet hours still apply.
func (d *Dispatcher) DispatchOne(ctx context.Context, id uuid.UUID) error {
	reminder, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reminder failed")
	}
	if reminder == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("reminder %s not found", id))
	}
	if reminder.Status != enums.ReminderStatusScheduled && reminder.Status != enums.ReminderStatusFailed {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("reminder is %s, only scheduled or failed reminders can be dispatched", reminder.Status))
	}
	_, err = d.dispatch(ctx, reminder)
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, reminder *models.RentReminder) (enums.ReminderStatus, error) {
	now := d.now()

	tenancy, err := d.tenancies.FindTenancyByID(ctx, reminder.TenantID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "tenancy lookup failed")
	}
	if tenancy == nil || !tenancy.Tenant.Active {
		if err := d.repo.MarkSkipped(ctx, reminder.ID, "tenancy no longer active"); err != nil {
			return "", err
		}
		return enums.ReminderStatusSkipped, nil
	}

	paid, err := d.payments.HasPaymentForPeriod(ctx, reminder.TenantID,
		int(reminder.DueDate.Month()), reminder.DueDate.Year())
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paid-state re-check failed")
	}
	if paid {
		if err := d.repo.MarkSkipped(ctx, reminder.ID, "rent already paid"); err != nil {
			return "", err
		}
		d.logg.Info(ctx, "reminder skipped, rent already paid")
		return enums.ReminderStatusSkipped, nil
	}

	settings, err := d.settings.GetOrCreate(ctx, reminder.LandlordID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reminder settings failed")
	}
	if inQuietHours(now, settings.QuietHoursStart, settings.QuietHoursEnd) {
		// Leave it scheduled; the next pass outside the window picks it up.
		d.logg.Debug(ctx, "inside quiet hours, deferring reminder")
		return enums.ReminderStatusScheduled, nil
	}

	message := renderMessage(templateFor(settings, reminder.Type), tenancy, reminder)

	phone := tenancy.Tenant.PhoneNumber
	pref, err := d.preferences.FindByTenant(ctx, reminder.TenantID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading tenant preferences failed")
	}
	if pref != nil && pref.AlternatePhone != nil && *pref.AlternatePhone != "" {
		phone = *pref.AlternatePhone
	}

	sender, ok := d.senders[reminder.Channel]
	if !ok {
		if err := d.repo.MarkFailed(ctx, reminder.ID, fmt.Sprintf("no sender for channel %s", reminder.Channel), now); err != nil {
			return "", err
		}
		return enums.ReminderStatusFailed, nil
	}

	if err := sender.Send(ctx, phone, message); err != nil {
		if markErr := d.repo.MarkFailed(ctx, reminder.ID, err.Error(), now); markErr != nil {
			return "", markErr
		}
		d.logg.Error(ctx, "reminder delivery failed", err)
		return enums.ReminderStatusFailed, nil
	}

	if err := d.repo.MarkSent(ctx, reminder.ID, now, message); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording sent reminder failed")
	}
	return enums.ReminderStatusSent, nil
}

// inQuietHours reports whether clock falls inside the [start, end) window.
// The window may span midnight, e.g. 21:00 to 07:00.
func inQuietHours(clock time.Time, start, end string) bool {
	startMin, okStart := parseClock(start)
	endMin, okEnd := parseClock(end)
	if !okStart || !okEnd || startMin == endMin {
		return false
	}
	nowMin := clock.Hour()*60 + clock.Minute()
	if startMin < endMin {
		return nowMin >= startMin && nowMin < endMin
	}
	return nowMin >= startMin || nowMin < endMin
}

func parseClock(value string) (int, bool) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, false
	}
	return parsed.Hour()*60 + parsed.Minute(), true
}
