package reminders

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/rentpulse-backend/internal/tenants"
	"github.com/wawire/rentpulse-backend/pkg/db/models"
	"github.com/wawire/rentpulse-backend/pkg/enums"
	pkgerrors "github.com/wawire/rentpulse-backend/pkg/errors"
	"github.com/wawire/rentpulse-backend/pkg/logger"
)

type fakeReminderRepo struct {
	reminders []*models.RentReminder
}

func (f *fakeReminderRepo) Create(_ context.Context, reminder *models.RentReminder) error {
	if reminder.ID == uuid.Nil {
		reminder.ID = uuid.New()
	}
	if reminder.Status == "" {
		reminder.Status = enums.ReminderStatusScheduled
	}
	f.reminders = append(f.reminders, reminder)
	return nil
}

func (f *fakeReminderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.RentReminder, error) {
	for _, r := range f.reminders {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeReminderRepo) ListDue(_ context.Context, asOf time.Time, limit int) ([]models.RentReminder, error) {
	var due []models.RentReminder
	for _, r := range f.reminders {
		if r.Status == enums.ReminderStatusScheduled && !r.ScheduledDate.After(asOf) {
			due = append(due, *r)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (f *fakeReminderRepo) CancelScheduledForDueDate(_ context.Context, tenantID uuid.UUID, dueDate time.Time) error {
	for _, r := range f.reminders {
		if r.TenantID == tenantID && r.DueDate.Equal(dueDate) && r.Status == enums.ReminderStatusScheduled {
			r.Status = enums.ReminderStatusCancelled
		}
	}
	return nil
}

func (f *fakeReminderRepo) CancelScheduled(_ context.Context, id uuid.UUID) (bool, error) {
	for _, r := range f.reminders {
		if r.ID == id && r.Status == enums.ReminderStatusScheduled {
			r.Status = enums.ReminderStatusCancelled
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReminderRepo) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time, message string) error {
	r, _ := f.FindByID(context.Background(), id)
	r.Status = enums.ReminderStatusSent
	r.SentAt = &sentAt
	r.Message = &message
	return nil
}

func (f *fakeReminderRepo) MarkSkipped(_ context.Context, id uuid.UUID, reason string) error {
	r, _ := f.FindByID(context.Background(), id)
	r.Status = enums.ReminderStatusSkipped
	r.FailureReason = &reason
	return nil
}

func (f *fakeReminderRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	r, _ := f.FindByID(context.Background(), id)
	r.Status = enums.ReminderStatusFailed
	r.FailureReason = &reason
	r.RetryCount++
	r.LastRetryAt = &at
	return nil
}

func (f *fakeReminderRepo) scheduled() []*models.RentReminder {
	var out []*models.RentReminder
	for _, r := range f.reminders {
		if r.Status == enums.ReminderStatusScheduled {
			out = append(out, r)
		}
	}
	return out
}

type fakeSettingsRepo struct {
	byLandlord map[uuid.UUID]*models.ReminderSettings
}

func (f *fakeSettingsRepo) GetOrCreate(_ context.Context, landlordID uuid.UUID) (*models.ReminderSettings, error) {
	if s, ok := f.byLandlord[landlordID]; ok {
		return s, nil
	}
	s := defaultSettings(landlordID)
	if f.byLandlord == nil {
		f.byLandlord = map[uuid.UUID]*models.ReminderSettings{}
	}
	f.byLandlord[landlordID] = s
	return s, nil
}

func (f *fakeSettingsRepo) Update(_ context.Context, settings *models.ReminderSettings) error {
	f.byLandlord[settings.LandlordID] = settings
	return nil
}

type fakePrefRepo struct {
	byTenant map[uuid.UUID]*models.TenantReminderPreference
}

func (f *fakePrefRepo) FindByTenant(_ context.Context, tenantID uuid.UUID) (*models.TenantReminderPreference, error) {
	return f.byTenant[tenantID], nil
}

func (f *fakePrefRepo) Upsert(_ context.Context, pref *models.TenantReminderPreference) error {
	if f.byTenant == nil {
		f.byTenant = map[uuid.UUID]*models.TenantReminderPreference{}
	}
	f.byTenant[pref.TenantID] = pref
	return nil
}

type fakeTenancyStore struct {
	tenancies []tenants.Tenancy
}

func (f *fakeTenancyStore) ListActive(_ context.Context) ([]tenants.Tenancy, error) {
	return f.tenancies, nil
}

func (f *fakeTenancyStore) FindTenancyByID(_ context.Context, tenantID uuid.UUID) (*tenants.Tenancy, error) {
	for i := range f.tenancies {
		if f.tenancies[i].Tenant.ID == tenantID {
			return &f.tenancies[i], nil
		}
	}
	return nil, nil
}

type fakePaidChecker struct {
	paid map[string]bool
}

func paidKey(tenantID uuid.UUID, month, year int) string {
	return fmt.Sprintf("%s/%d-%d", tenantID, year, month)
}

func (f *fakePaidChecker) markPaid(tenantID uuid.UUID, month, year int) {
	if f.paid == nil {
		f.paid = map[string]bool{}
	}
	f.paid[paidKey(tenantID, month, year)] = true
}

func (f *fakePaidChecker) HasPaymentForPeriod(_ context.Context, tenantID uuid.UUID, month, year int) (bool, error) {
	return f.paid[paidKey(tenantID, month, year)], nil
}

type schedulerFixture struct {
	scheduler *Scheduler
	repo      *fakeReminderRepo
	settings  *fakeSettingsRepo
	prefs     *fakePrefRepo
	tenancies *fakeTenancyStore
	paid      *fakePaidChecker
	now       time.Time
}

func newTenancy(dueDay int) tenants.Tenancy {
	return tenants.Tenancy{
		Tenant: models.Tenant{
			ID:          uuid.New(),
			LandlordID:  uuid.New(),
			PropertyID:  uuid.New(),
			UnitID:      uuid.New(),
			FirstName:   "Wanjiku",
			LastName:    "Kamau",
			PhoneNumber: "254712345678",
			RentDueDay:  dueDay,
			RentAmount:  decimal.NewFromInt(15000),
			Active:      true,
		},
		PropertyName:  "Greenview Apartments",
		UnitNumber:    "B4",
		LandlordName:  "J. Mwangi",
		LandlordPhone: "254722000000",
	}
}

func newSchedulerFixture(t *testing.T, now time.Time) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		repo:      &fakeReminderRepo{},
		settings:  &fakeSettingsRepo{},
		prefs:     &fakePrefRepo{},
		tenancies: &fakeTenancyStore{},
		paid:      &fakePaidChecker{},
		now:       now,
	}
	scheduler, err := NewScheduler(SchedulerParams{
		Repo:        f.repo,
		Settings:    f.settings,
		Preferences: f.prefs,
		Tenancies:   f.tenancies,
		Payments:    f.paid,
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now:         func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	f.scheduler = scheduler
	return f
}

func TestScheduleTenancyCreatesFutureSlots(t *testing.T) {
	// Mar 1 with due day 15: all seven slots lie in the future.
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}

	if err := f.scheduler.ScheduleAll(context.Background()); err != nil {
		t.Fatalf("ScheduleAll: %v", err)
	}

	scheduled := f.repo.scheduled()
	if len(scheduled) != 7 {
		t.Fatalf("scheduled = %d, want 7", len(scheduled))
	}
	dueDate := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, r := range scheduled {
		if !r.DueDate.Equal(dueDate) {
			t.Errorf("due date = %s, want %s", r.DueDate, dueDate)
		}
		wantDate := dueDate.AddDate(0, 0, r.Type.OffsetDays())
		if !r.ScheduledDate.Equal(wantDate) {
			t.Errorf("%s scheduled at %s, want %s", r.Type, r.ScheduledDate, wantDate)
		}
	}
}

func TestScheduleTenancySkipsPastSlots(t *testing.T) {
	// Mar 13 with due day 15: the -7 and -3 slots are already gone.
	now := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(t, now)
	f.tenancies.tenancies = []tenants.Tenancy{newTenancy(15)}

	if err := f.scheduler.ScheduleAll(context.Background()); err != nil {
		t.Fatalf("ScheduleAll: %v", err)
	}
	if got := len(f.repo.scheduled()); got != 5 {
		t.Errorf("scheduled = %d, want 5", got)
	}
}

func TestScheduleTenancyCancelsBeforeRecreating(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}

	for i := 0; i < 2; i++ {
		if err := f.scheduler.ScheduleAll(context.Background()); err != nil {
			t.Fatalf("pass %d: %v", i+1, err)
		}
	}

	if got := len(f.repo.scheduled()); got != 7 {
		t.Errorf("scheduled after two passes = %d, want 7", got)
	}
	cancelled := 0
	for _, r := range f.repo.reminders {
		if r.Status == enums.ReminderStatusCancelled {
			cancelled++
		}
	}
	if cancelled != 7 {
		t.Errorf("cancelled = %d, want the first pass's 7", cancelled)
	}
}

func TestScheduleTenancyHonorsSettingsToggles(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}

	settings := defaultSettings(tenancy.Tenant.LandlordID)
	settings.SevenDaysBefore = false
	settings.SevenDaysAfter = false
	f.settings.byLandlord = map[uuid.UUID]*models.ReminderSettings{tenancy.Tenant.LandlordID: settings}

	if err := f.scheduler.ScheduleAll(context.Background()); err != nil {
		t.Fatalf("ScheduleAll: %v", err)
	}
	for _, r := range f.repo.scheduled() {
		if r.Type == enums.ReminderTypeSevenDaysBefore || r.Type == enums.ReminderTypeSevenDaysAfter {
			t.Errorf("disabled type %s was scheduled", r.Type)
		}
	}
	if got := len(f.repo.scheduled()); got != 5 {
		t.Errorf("scheduled = %d, want 5", got)
	}
}

func TestScheduleTenancyHonorsTenantOptOut(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}
	f.prefs.byTenant = map[uuid.UUID]*models.TenantReminderPreference{
		tenancy.Tenant.ID: {TenantID: tenancy.Tenant.ID, DisableAll: true},
	}

	if err := f.scheduler.ScheduleAll(context.Background()); err != nil {
		t.Fatalf("ScheduleAll: %v", err)
	}
	if got := len(f.repo.scheduled()); got != 0 {
		t.Errorf("scheduled = %d, want 0 for disable-all tenant", got)
	}
}

func TestScheduleTenancySuppressesPaidCycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}
	f.paid.markPaid(tenancy.Tenant.ID, 3, 2026)

	if err := f.scheduler.ScheduleAll(context.Background()); err != nil {
		t.Fatalf("ScheduleAll: %v", err)
	}
	if got := len(f.repo.scheduled()); got != 0 {
		t.Errorf("scheduled = %d, want 0 for paid cycle", got)
	}
}

func TestScheduleTenancyDisabledLandlordCancelsExisting(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}

	if err := f.scheduler.ScheduleAll(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	f.settings.byLandlord[tenancy.Tenant.LandlordID].Enabled = false
	if err := f.scheduler.ScheduleAll(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if got := len(f.repo.scheduled()); got != 0 {
		t.Errorf("scheduled = %d, want 0 after landlord disabled reminders", got)
	}
}

func TestScheduleTenancyUsesPreferredChannel(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}
	email := enums.ReminderChannelEmail
	f.prefs.byTenant = map[uuid.UUID]*models.TenantReminderPreference{
		tenancy.Tenant.ID: {TenantID: tenancy.Tenant.ID, PreferredChannel: &email},
	}

	if err := f.scheduler.ScheduleAll(context.Background()); err != nil {
		t.Fatalf("ScheduleAll: %v", err)
	}
	for _, r := range f.repo.scheduled() {
		if r.Channel != enums.ReminderChannelEmail {
			t.Errorf("channel = %s, want email", r.Channel)
		}
	}
}

func TestScheduleUsesClampedDueDate(t *testing.T) {
	// Due day 31 scheduled from late January: February clamps to the 28th.
	now := time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(t, now)
	f.tenancies.tenancies = []tenants.Tenancy{newTenancy(31)}

	if err := f.scheduler.ScheduleAll(context.Background()); err != nil {
		t.Fatalf("ScheduleAll: %v", err)
	}
	want := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	for _, r := range f.repo.scheduled() {
		if !r.DueDate.Equal(want) {
			t.Errorf("due date = %s, want clamped %s", r.DueDate, want)
		}
	}
}

func TestCancelReminder(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(t, now)
	f.tenancies.tenancies = []tenants.Tenancy{newTenancy(15)}

	if err := f.scheduler.ScheduleAll(context.Background()); err != nil {
		t.Fatalf("ScheduleAll: %v", err)
	}
	target := f.repo.scheduled()[0]

	if err := f.scheduler.CancelReminder(context.Background(), target.ID); err != nil {
		t.Fatalf("CancelReminder: %v", err)
	}
	if target.Status != enums.ReminderStatusCancelled {
		t.Errorf("status = %s, want cancelled", target.Status)
	}

	// already cancelled
	err := f.scheduler.CancelReminder(context.Background(), target.ID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Errorf("second cancel err = %v, want state conflict", err)
	}

	err = f.scheduler.CancelReminder(context.Background(), uuid.New())
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Errorf("unknown id err = %v, want not found", err)
	}
}
