package reminders

import (
	"context"
	"errors"
	"io"
	"strings"
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

type fakeSender struct {
	sent []struct{ phone, message string }
	err  error
}

func (f *fakeSender) Send(_ context.Context, phone, message string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, struct{ phone, message string }{phone, message})
	return nil
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	repo       *fakeReminderRepo
	settings   *fakeSettingsRepo
	prefs      *fakePrefRepo
	tenancies  *fakeTenancyStore
	paid       *fakePaidChecker
	sms        *fakeSender
	now        time.Time
}

func newDispatcherFixture(t *testing.T, now time.Time) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		repo:      &fakeReminderRepo{},
		settings:  &fakeSettingsRepo{},
		prefs:     &fakePrefRepo{},
		tenancies: &fakeTenancyStore{},
		paid:      &fakePaidChecker{},
		sms:       &fakeSender{},
		now:       now,
	}
	dispatcher, err := NewDispatcher(DispatcherParams{
		Repo:        f.repo,
		Settings:    f.settings,
		Preferences: f.prefs,
		Tenancies:   f.tenancies,
		Payments:    f.paid,
		Senders:     map[enums.ReminderChannel]Sender{enums.ReminderChannelSMS: f.sms},
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now:         func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	f.dispatcher = dispatcher
	return f
}

func (f *dispatcherFixture) addDueReminder(tenancy tenants.Tenancy, reminderType enums.ReminderType) *models.RentReminder {
	dueDate := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	reminder := &models.RentReminder{
		ID:            uuid.New(),
		TenantID:      tenancy.Tenant.ID,
		LandlordID:    tenancy.Tenant.LandlordID,
		PropertyID:    tenancy.Tenant.PropertyID,
		UnitID:        tenancy.Tenant.UnitID,
		Type:          reminderType,
		Channel:       enums.ReminderChannelSMS,
		Status:        enums.ReminderStatusScheduled,
		ScheduledDate: dueDate.AddDate(0, 0, reminderType.OffsetDays()),
		DueDate:       dueDate,
		Amount:        decimal.NewFromInt(15000),
	}
	f.repo.reminders = append(f.repo.reminders, reminder)
	return reminder
}

func TestDispatchDueSendsAndRecordsMessage(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	f := newDispatcherFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}
	reminder := f.addDueReminder(tenancy, enums.ReminderTypeDueDate)

	if err := f.dispatcher.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}

	if reminder.Status != enums.ReminderStatusSent {
		t.Errorf("status = %s, want sent", reminder.Status)
	}
	if len(f.sms.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(f.sms.sent))
	}
	got := f.sms.sent[0]
	if got.phone != "254712345678" {
		t.Errorf("phone = %s", got.phone)
	}
	if !strings.Contains(got.message, "Wanjiku Kamau") || !strings.Contains(got.message, "15,000") {
		t.Errorf("message not rendered from tenancy: %q", got.message)
	}
	if reminder.Message == nil || *reminder.Message != got.message {
		t.Errorf("sent message not recorded on reminder")
	}
}

func TestDispatchSkipsWhenCyclePaid(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	f := newDispatcherFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}
	reminder := f.addDueReminder(tenancy, enums.ReminderTypeDueDate)
	f.paid.markPaid(tenancy.Tenant.ID, 3, 2026)

	if err := f.dispatcher.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if reminder.Status != enums.ReminderStatusSkipped {
		t.Errorf("status = %s, want skipped", reminder.Status)
	}
	if len(f.sms.sent) != 0 {
		t.Errorf("sends = %d, want 0", len(f.sms.sent))
	}
}

func TestDispatchFailureBookkeeping(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	f := newDispatcherFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}
	reminder := f.addDueReminder(tenancy, enums.ReminderTypeDueDate)
	f.sms.err = errors.New("provider unreachable")

	if err := f.dispatcher.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if reminder.Status != enums.ReminderStatusFailed {
		t.Errorf("status = %s, want failed", reminder.Status)
	}
	if reminder.FailureReason == nil || *reminder.FailureReason != "provider unreachable" {
		t.Errorf("failure reason = %v", reminder.FailureReason)
	}
	if reminder.RetryCount != 1 || reminder.LastRetryAt == nil {
		t.Errorf("retry bookkeeping = count %d, last %v", reminder.RetryCount, reminder.LastRetryAt)
	}

	// A failed reminder is not requeued by the dispatcher itself.
	f.sms.err = nil
	if err := f.dispatcher.DispatchDue(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(f.sms.sent) != 0 {
		t.Errorf("failed reminder was retried automatically")
	}
}

func TestDispatchDefersDuringQuietHours(t *testing.T) {
	now := time.Date(2026, 3, 15, 22, 30, 0, 0, time.UTC)
	f := newDispatcherFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}
	reminder := f.addDueReminder(tenancy, enums.ReminderTypeDueDate)

	if err := f.dispatcher.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if reminder.Status != enums.ReminderStatusScheduled {
		t.Errorf("status = %s, want still scheduled during quiet hours", reminder.Status)
	}
	if len(f.sms.sent) != 0 {
		t.Errorf("sends = %d, want 0", len(f.sms.sent))
	}
}

func TestDispatchUsesAlternatePhone(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	f := newDispatcherFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}
	f.addDueReminder(tenancy, enums.ReminderTypeDueDate)
	alt := "254733999999"
	f.prefs.byTenant = map[uuid.UUID]*models.TenantReminderPreference{
		tenancy.Tenant.ID: {TenantID: tenancy.Tenant.ID, AlternatePhone: &alt},
	}

	if err := f.dispatcher.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if len(f.sms.sent) != 1 || f.sms.sent[0].phone != alt {
		t.Errorf("sends = %v, want one to alternate phone", f.sms.sent)
	}
}

func TestDispatchSkipsInactiveTenancy(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	f := newDispatcherFixture(t, now)
	tenancy := newTenancy(15)
	tenancy.Tenant.Active = false
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}
	reminder := f.addDueReminder(tenancy, enums.ReminderTypeDueDate)

	if err := f.dispatcher.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if reminder.Status != enums.ReminderStatusSkipped {
		t.Errorf("status = %s, want skipped", reminder.Status)
	}
}

func TestDispatchOne(t *testing.T) {
	now := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	f := newDispatcherFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}
	reminder := f.addDueReminder(tenancy, enums.ReminderTypeThreeDaysBefore)

	if err := f.dispatcher.DispatchOne(context.Background(), reminder.ID); err != nil {
		t.Fatalf("DispatchOne: %v", err)
	}
	if reminder.Status != enums.ReminderStatusSent {
		t.Errorf("status = %s, want sent", reminder.Status)
	}

	err := f.dispatcher.DispatchOne(context.Background(), reminder.ID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Errorf("re-dispatch err = %v, want STATE_CONFLICT", err)
	}

	err = f.dispatcher.DispatchOne(context.Background(), uuid.New())
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Errorf("unknown id err = %v, want NOT_FOUND", err)
	}
}

func TestDispatchOneRetriesFailedReminder(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	f := newDispatcherFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}
	reminder := f.addDueReminder(tenancy, enums.ReminderTypeDueDate)

	f.sms.err = errors.New("provider unreachable")
	if err := f.dispatcher.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if reminder.Status != enums.ReminderStatusFailed || reminder.RetryCount != 1 {
		t.Fatalf("status = %s retries = %d, want failed/1", reminder.Status, reminder.RetryCount)
	}

	// Provider still down: the manual retry is accepted and bumps the count.
	if err := f.dispatcher.DispatchOne(context.Background(), reminder.ID); err != nil {
		t.Fatalf("DispatchOne while failing: %v", err)
	}
	if reminder.Status != enums.ReminderStatusFailed || reminder.RetryCount != 2 {
		t.Errorf("status = %s retries = %d, want failed/2", reminder.Status, reminder.RetryCount)
	}

	// Provider recovers: the next manual retry delivers.
	f.sms.err = nil
	if err := f.dispatcher.DispatchOne(context.Background(), reminder.ID); err != nil {
		t.Fatalf("DispatchOne after recovery: %v", err)
	}
	if reminder.Status != enums.ReminderStatusSent {
		t.Errorf("status = %s, want sent", reminder.Status)
	}
	if len(f.sms.sent) != 1 {
		t.Errorf("sends = %d, want 1", len(f.sms.sent))
	}
}

func TestDispatchOverdueTemplateIncludesLandlordContact(t *testing.T) {
	now := time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC)
	f := newDispatcherFixture(t, now)
	tenancy := newTenancy(15)
	f.tenancies.tenancies = []tenants.Tenancy{tenancy}
	f.addDueReminder(tenancy, enums.ReminderTypeThreeDaysAfter)

	if err := f.dispatcher.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if len(f.sms.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(f.sms.sent))
	}
	msg := f.sms.sent[0].message
	if !strings.Contains(msg, "J. Mwangi") || !strings.Contains(msg, "254722000000") {
		t.Errorf("overdue message missing landlord contact: %q", msg)
	}
}

func TestInQuietHours(t *testing.T) {
	cases := []struct {
		clock string
		want  bool
	}{
		{"20:59", false},
		{"21:00", true},
		{"23:30", true},
		{"02:00", true},
		{"06:59", true},
		{"07:00", false},
		{"12:00", false},
	}
	for _, tc := range cases {
		parsed, err := time.Parse("15:04", tc.clock)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.clock, err)
		}
		if got := inQuietHours(parsed, "21:00", "07:00"); got != tc.want {
			t.Errorf("inQuietHours(%s) = %v, want %v", tc.clock, got, tc.want)
		}
	}
}

func TestRenderMessageVariables(t *testing.T) {
	tenancy := newTenancy(15)
	reminder := &models.RentReminder{
		Type:    enums.ReminderTypeThreeDaysAfter,
		Amount:  decimal.NewFromInt(15000),
		DueDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	}

	got := renderMessage("{tenant_name} ({tenant_phone}): KES {amount}, {days} days past {due_date}", &tenancy, reminder)
	want := "Wanjiku Kamau (254712345678): KES 15,000, 3 days past 15 Mar 2026"
	if got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}

	// Before the due date the day count carries a minus sign.
	reminder.Type = enums.ReminderTypeSevenDaysBefore
	if got := renderMessage("{days}", &tenancy, reminder); got != "-7" {
		t.Errorf("days = %q, want -7", got)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"15000", "15,000"},
		{"950", "950"},
		{"1234567", "1,234,567"},
		{"15000.50", "15,000.50"},
	}
	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.in)
		if err != nil {
			t.Fatalf("decimal %s: %v", tc.in, err)
		}
		if got := formatAmount(amount); got != tc.want {
			t.Errorf("formatAmount(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
