package billing

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextDueDateBeforeDueDayStaysInMonth(t *testing.T) {
	got := NextDueDate(date(2026, time.January, 20), 5)
	want := date(2026, time.February, 5)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextDueDateSameDayRollsToNextMonth(t *testing.T) {
	got := NextDueDate(date(2026, time.March, 5), 5)
	want := date(2026, time.April, 5)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextDueDateEarlierDayStaysInMonth(t *testing.T) {
	got := NextDueDate(date(2026, time.March, 2), 5)
	want := date(2026, time.March, 5)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextDueDateClampsToFebruary(t *testing.T) {
	got := NextDueDate(date(2026, time.February, 1), 31)
	want := date(2026, time.February, 28)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextDueDateClampsToLeapFebruary(t *testing.T) {
	got := NextDueDate(date(2028, time.February, 1), 31)
	want := date(2028, time.February, 29)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextDueDateDecemberRollsToJanuary(t *testing.T) {
	got := NextDueDate(date(2026, time.December, 15), 10)
	want := date(2027, time.January, 10)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestCycleDueDateBeforeDueDay(t *testing.T) {
	got := CycleDueDate(date(2026, time.March, 2), 5)
	want := date(2026, time.March, 5)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestCycleDueDateLatePaymentStaysInMonth(t *testing.T) {
	got := CycleDueDate(date(2026, time.March, 6), 5)
	want := date(2026, time.March, 5)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestCycleDueDateClampsToFebruary(t *testing.T) {
	got := CycleDueDate(date(2026, time.February, 10), 31)
	want := date(2026, time.February, 28)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestPeriodIsPaymentMonth(t *testing.T) {
	month, year := Period(date(2026, time.January, 20), 5)
	if month != 1 || year != 2026 {
		t.Fatalf("expected 1/2026, got %d/%d", month, year)
	}
}

func TestClampDayFloorsAtOne(t *testing.T) {
	if got := ClampDay(2026, time.March, 0); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}
