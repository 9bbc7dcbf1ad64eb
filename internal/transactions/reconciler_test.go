package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/wawire/rentpulse-backend/pkg/config"
	"github.com/wawire/rentpulse-backend/pkg/enums"
	"github.com/wawire/rentpulse-backend/pkg/mpesa"
)

func newReconcilerFixture(t *testing.T) (*Reconciler, *serviceFixture) {
	t.Helper()
	f := newServiceFixture(t)
	rec, err := NewReconciler(ReconcilerParams{
		Repo:    f.repo,
		Service: f.svc,
		Gateway: f.gateway,
		Config: config.ReconcilerConfig{
			MinAge:    3 * time.Minute,
			BatchSize: 20,
			ItemDelay: time.Millisecond,
		},
		Logger: testLogger(),
		Now:    func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewReconciler: %v", err)
	}
	return rec, f
}

func stuckPush(f *serviceFixture, checkoutID string, age time.Duration) {
	txn := pendingPush(checkoutID, "A-"+checkoutID, "10000")
	txn.CreatedAt = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC).Add(-age)
	f.repo.add(txn)
}

func TestReconcileSettlesStuckTransactions(t *testing.T) {
	rec, f := newReconcilerFixture(t)
	stuckPush(f, "ws_CO_7001", 10*time.Minute)
	f.gateway.queryResult = &mpesa.STKQueryResult{ResultCode: 0, ResultDescription: "processed"}

	if err := rec.ReconcilePending(context.Background()); err != nil {
		t.Fatalf("ReconcilePending: %v", err)
	}
	for _, txn := range f.repo.txns {
		if txn.Status != enums.TransactionStatusCompleted {
			t.Errorf("status = %s, want completed", txn.Status)
		}
	}
	if len(f.mat.calls) != 1 {
		t.Errorf("materializer calls = %d, want 1", len(f.mat.calls))
	}
}

func TestReconcileSkipsYoungTransactions(t *testing.T) {
	rec, f := newReconcilerFixture(t)
	stuckPush(f, "ws_CO_7002", time.Minute)

	if err := rec.ReconcilePending(context.Background()); err != nil {
		t.Fatalf("ReconcilePending: %v", err)
	}
	if len(f.gateway.queried) != 0 {
		t.Errorf("queried = %v, want none", f.gateway.queried)
	}
}

func TestReconcileIsolatesQueryFailures(t *testing.T) {
	rec, f := newReconcilerFixture(t)
	stuckPush(f, "ws_CO_7003", 10*time.Minute)
	stuckPush(f, "ws_CO_7004", 10*time.Minute)
	f.gateway.queryErr = context.DeadlineExceeded

	if err := rec.ReconcilePending(context.Background()); err != nil {
		t.Fatalf("ReconcilePending: %v", err)
	}
	// Both items were attempted despite the first failure.
	if len(f.gateway.queried) != 2 {
		t.Errorf("queried = %d, want 2", len(f.gateway.queried))
	}
	for _, txn := range f.repo.txns {
		if txn.Status != enums.TransactionStatusPending {
			t.Errorf("status = %s, want pending", txn.Status)
		}
	}
}

func TestReconcileMapsTimeoutCode(t *testing.T) {
	rec, f := newReconcilerFixture(t)
	stuckPush(f, "ws_CO_7005", 10*time.Minute)
	f.gateway.queryResult = &mpesa.STKQueryResult{ResultCode: 1037, ResultDescription: "DS timeout"}

	if err := rec.ReconcilePending(context.Background()); err != nil {
		t.Fatalf("ReconcilePending: %v", err)
	}
	for _, txn := range f.repo.txns {
		if txn.Status != enums.TransactionStatusTimeout {
			t.Errorf("status = %s, want timeout", txn.Status)
		}
	}
	if len(f.mat.calls) != 0 {
		t.Errorf("materializer calls = %d, want 0", len(f.mat.calls))
	}
}

func TestReconcileRespectsBatchCap(t *testing.T) {
	rec, f := newReconcilerFixture(t)
	rec.cfg.BatchSize = 2
	for _, id := range []string{"ws_CO_7006", "ws_CO_7007", "ws_CO_7008"} {
		stuckPush(f, id, 10*time.Minute)
	}
	f.gateway.queryResult = &mpesa.STKQueryResult{ResultCode: 0}

	if err := rec.ReconcilePending(context.Background()); err != nil {
		t.Fatalf("ReconcilePending: %v", err)
	}
	if len(f.gateway.queried) != 2 {
		t.Errorf("queried = %d, want batch cap of 2", len(f.gateway.queried))
	}
}
