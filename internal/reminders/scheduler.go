package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/wawire/rentpulse-backend/internal/billing"
	"github.com/wawire/rentpulse-backend/internal/tenants"
	"github.com/wawire/rentpulse-backend/pkg/db"
	"github.com/wawire/rentpulse-backend/pkg/db/models"
	"github.com/wawire/rentpulse-backend/pkg/enums"
	pkgerrors "github.com/wawire/rentpulse-backend/pkg/errors"
	"github.com/wawire/rentpulse-backend/pkg/logger"
)

// PaidChecker answers whether a tenant has already paid a billing cycle.
type PaidChecker interface {
	HasPaymentForPeriod(ctx context.Context, tenantID uuid.UUID, month, year int) (bool, error)
}

// TenancyLister feeds the scheduler its active tenant population.
type TenancyLister interface {
	ListActive(ctx context.Context) ([]tenants.Tenancy, error)
}

// SchedulerParams bundles the dependencies for NewScheduler.
type SchedulerParams struct {
	Repo        Repository
	Settings    SettingsRepository
	Preferences PreferenceRepository
	Tenancies   TenancyLister
	Payments    PaidChecker
	Logger      *logger.Logger
	Now         func() time.Time
}

// Scheduler lays down the reminder timeline for every active tenancy. Each
// pass rebuilds the scheduled set for the tenant's upcoming due date from the
// landlord's current settings, so a settings change takes effect on the next
// pass without touching history.
type Scheduler struct {
	repo        Repository
	settings    SettingsRepository
	preferences PreferenceRepository
	tenancies   TenancyLister
	payments    PaidChecker
	logg        *logger.Logger
	now         func() time.Time
}

// NewScheduler validates dependencies and constructs a Scheduler.
func NewScheduler(params SchedulerParams) (*Scheduler, error) {
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
		return nil, fmt.Errorf("reminders: tenancy lister is required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("reminders: paid checker is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("reminders: logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		repo:        params.Repo,
		settings:    params.Settings,
		preferences: params.Preferences,
		tenancies:   params.Tenancies,
		payments:    params.Payments,
		logg:        params.Logger,
		now:         now,
	}, nil
}

// ScheduleAll runs one scheduling pass over every active tenancy. A failure
// on one tenant never blocks the rest.
func (s *Scheduler) ScheduleAll(ctx context.Context) error {
	tenancies, err := s.tenancies.ListActive(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing active tenancies failed")
	}

	scheduled := 0
	var errs []error
	for i := range tenancies {
		tenancy := &tenancies[i]
		tenantCtx := s.logg.WithTenantID(ctx, tenancy.Tenant.ID.String())
		if err := s.ScheduleTenancy(tenantCtx, tenancy); err != nil {
			s.logg.Error(tenantCtx, "scheduling tenancy failed", err)
			errs = append(errs, err)
			continue
		}
		scheduled++
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenancies": len(tenancies),
		"scheduled": scheduled,
	}), "reminder scheduling pass finished")
	return multierr.Combine(errs...)
}

// ScheduleTenancy rebuilds one tenant's scheduled reminders for the upcoming
// due date: cancel what is scheduled, then recreate the slots that the
// landlord settings and tenant preferences still allow.
func (s *Scheduler) ScheduleTenancy(ctx context.Context, tenancy *tenants.Tenancy) error {
	tenant := tenancy.Tenant
	now := s.now()
	dueDate := billing.NextDueDate(now, tenant.RentDueDay)

	settings, err := s.settings.GetOrCreate(ctx, tenant.LandlordID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reminder settings failed")
	}

	if err := s.repo.CancelScheduledForDueDate(ctx, tenant.ID, dueDate); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancelling superseded reminders failed")
	}
	if !settings.Enabled {
		return nil
	}

	paid, err := s.payments.HasPaymentForPeriod(ctx, tenant.ID, int(dueDate.Month()), dueDate.Year())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paid-state check failed")
	}
	if paid {
		s.logg.Debug(ctx, "cycle already paid, no reminders scheduled")
		return nil
	}

	pref, err := s.preferences.FindByTenant(ctx, tenant.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading tenant preferences failed")
	}

	channel := settings.DefaultChannel
	if pref != nil && pref.PreferredChannel != nil {
		channel = *pref.PreferredChannel
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, reminderType := range enums.AllReminderTypes {
		if !settings.EnabledFor(reminderType) {
			continue
		}
		if pref != nil && pref.OptedOutOf(reminderType) {
			continue
		}
		scheduledDate := dueDate.AddDate(0, 0, reminderType.OffsetDays())
		if scheduledDate.Before(today) {
			continue
		}
		reminder := &models.RentReminder{
			TenantID:      tenant.ID,
			LandlordID:    tenant.LandlordID,
			PropertyID:    tenant.PropertyID,
			UnitID:        tenant.UnitID,
			Type:          reminderType,
			Channel:       channel,
			Status:        enums.ReminderStatusScheduled,
			ScheduledDate: scheduledDate,
			DueDate:       dueDate,
			Amount:        tenant.RentAmount,
		}
		if err := s.repo.Create(ctx, reminder); err != nil {
			// A concurrent pass already holds this slot.
			if db.IsUniqueViolation(err, "rent_reminders_scheduled_slot_key") {
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating reminder failed")
		}
	}
	return nil
}

// CancelReminder cancels one scheduled reminder on demand. Sent, failed and
// already cancelled reminders are left untouched.
func (s *Scheduler) CancelReminder(ctx context.Context, id uuid.UUID) error {
	reminder, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reminder failed")
	}
	if reminder == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("reminder %s not found", id))
	}
	cancelled, err := s.repo.CancelScheduled(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancelling reminder failed")
	}
	if !cancelled {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("reminder is %s, only scheduled reminders can be cancelled", reminder.Status))
	}
	return nil
}
