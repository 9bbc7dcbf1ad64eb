package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wawire/rentpulse-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestPaymentsMigrationEnforcesUniqueTransactionRef(t *testing.T) {
	content := readMigration(t, "*_create_payments.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payments",
		"CREATE UNIQUE INDEX IF NOT EXISTS payments_transaction_ref_key",
		"ON payments(transaction_ref)",
		"CHECK (amount > 0)",
		"DROP TABLE IF EXISTS payments",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRemindersMigrationEnforcesScheduledSlot(t *testing.T) {
	content := readMigration(t, "*_create_reminders.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS rent_reminders_scheduled_slot_key",
		"ON rent_reminders(tenant_id, due_date, type)",
		"WHERE status = 'scheduled'",
		"CREATE UNIQUE INDEX IF NOT EXISTS reminder_settings_landlord_id_key",
		"CREATE UNIQUE INDEX IF NOT EXISTS tenant_reminder_preferences_tenant_id_key",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestGatewayTransactionsMigrationDedupesCheckoutRequest(t *testing.T) {
	content := readMigration(t, "*_create_gateway_transactions.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS gateway_transactions_checkout_request_id_key",
		"WHERE status IN ('requested', 'pending')",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
