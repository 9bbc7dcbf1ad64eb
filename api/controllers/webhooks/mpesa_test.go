package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wawire/rentpulse-backend/internal/transactions"
	pkgerrors "github.com/wawire/rentpulse-backend/pkg/errors"
	"github.com/wawire/rentpulse-backend/pkg/logger"
)

type fakeIngestor struct {
	validationOutcome transactions.ValidationOutcome
	confirmErr        error
	stkErr            error
	b2cErr            error

	stkCalls     int
	confirmCalls int
}

func (f *fakeIngestor) HandleValidation(context.Context, transactions.C2BCallback) transactions.ValidationOutcome {
	return f.validationOutcome
}

func (f *fakeIngestor) HandleConfirmation(context.Context, transactions.C2BCallback, string) error {
	f.confirmCalls++
	return f.confirmErr
}

func (f *fakeIngestor) HandleStkResult(context.Context, transactions.StkCallbackEnvelope, string) error {
	f.stkCalls++
	return f.stkErr
}

func (f *fakeIngestor) HandleDisbursementResult(context.Context, transactions.B2CResultEnvelope, string) error {
	return f.b2cErr
}

func (f *fakeIngestor) HandleDisbursementTimeout(context.Context, transactions.B2CResultEnvelope, string) error {
	return f.b2cErr
}

type fakeIdempotency struct {
	keys map[string]bool
}

func (f *fakeIdempotency) Get(_ context.Context, key string) (string, error) { return "", nil }

func (f *fakeIdempotency) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.keys == nil {
		f.keys = map[string]bool{}
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeIdempotency) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (f *fakeIdempotency) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func newControllerFixture(t *testing.T) (*Controller, *fakeIngestor, *fakeIdempotency) {
	t.Helper()
	ingestor := &fakeIngestor{validationOutcome: transactions.ValidationOutcome{Accepted: true}}
	store := &fakeIdempotency{}
	ctrl, err := NewController(ControllerParams{
		Ingestor:    ingestor,
		Idempotency: store,
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return ctrl, ingestor, store
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) ackBody {
	t.Helper()
	var ack ackBody
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decoding ack: %v (body %q)", err, rec.Body.String())
	}
	return ack
}

const stkBody = `{"Body":{"stkCallback":{"MerchantRequestID":"mr-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"ok"}}}`

func TestValidationAccept(t *testing.T) {
	ctrl, _, _ := newControllerFixture(t)
	rec := postJSON(t, ctrl.Validation, `{"TransID":"T1","TransAmount":"100","BillRefNumber":"A-1","MSISDN":"254700000000"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	ack := decodeAck(t, rec)
	if ack.ResultCode != float64(0) {
		t.Errorf("result code = %v, want 0", ack.ResultCode)
	}
}

func TestValidationRejectUsesGatewayCode(t *testing.T) {
	ctrl, ingestor, _ := newControllerFixture(t)
	ingestor.validationOutcome = transactions.ValidationOutcome{Reason: "unknown account"}

	rec := postJSON(t, ctrl.Validation, `{"TransID":"T1","TransAmount":"100","BillRefNumber":"zzz","MSISDN":"254700000000"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, rejection must still be HTTP 200", rec.Code)
	}
	ack := decodeAck(t, rec)
	if ack.ResultCode != validationRejectCode {
		t.Errorf("result code = %v, want %s", ack.ResultCode, validationRejectCode)
	}
}

func TestConfirmationAcksDespiteProcessingError(t *testing.T) {
	ctrl, ingestor, _ := newControllerFixture(t)
	ingestor.confirmErr = pkgerrors.New(pkgerrors.CodeDependency, "db down")

	rec := postJSON(t, ctrl.Confirmation, `{"TransID":"T1","TransAmount":"100","BillRefNumber":"A-1","MSISDN":"254700000000"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even on failure", rec.Code)
	}
	if ack := decodeAck(t, rec); ack.ResultCode != float64(0) {
		t.Errorf("result code = %v, want 0", ack.ResultCode)
	}
}

func TestStkResultDeduplicatesDeliveries(t *testing.T) {
	ctrl, ingestor, _ := newControllerFixture(t)

	for i := 0; i < 2; i++ {
		rec := postJSON(t, ctrl.StkResult, stkBody)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d status = %d", i+1, rec.Code)
		}
	}
	if ingestor.stkCalls != 1 {
		t.Errorf("ingestor calls = %d, want 1", ingestor.stkCalls)
	}
}

func TestStkResultReleasesClaimOnFailure(t *testing.T) {
	ctrl, ingestor, store := newControllerFixture(t)
	ingestor.stkErr = pkgerrors.New(pkgerrors.CodeDependency, "db down")

	rec := postJSON(t, ctrl.StkResult, stkBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(store.keys) != 0 {
		t.Errorf("claim not released after failure: %v", store.keys)
	}

	// The gateway retry goes through again.
	ingestor.stkErr = nil
	postJSON(t, ctrl.StkResult, stkBody)
	if ingestor.stkCalls != 2 {
		t.Errorf("ingestor calls = %d, want 2", ingestor.stkCalls)
	}
}

func TestStkResultKeepsClaimWhenTransactionUnknown(t *testing.T) {
	ctrl, ingestor, store := newControllerFixture(t)
	ingestor.stkErr = pkgerrors.New(pkgerrors.CodeNotFound, "no such transaction")

	rec := postJSON(t, ctrl.StkResult, stkBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(store.keys) != 1 {
		t.Errorf("not-found should keep the dedupe claim, keys = %v", store.keys)
	}
}

func TestStkResultMalformedBodyStillAcks(t *testing.T) {
	ctrl, ingestor, _ := newControllerFixture(t)
	rec := postJSON(t, ctrl.StkResult, `{"Body":`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for malformed body", rec.Code)
	}
	if ingestor.stkCalls != 0 {
		t.Errorf("ingestor called with malformed body")
	}
}

func TestB2CResultAcks(t *testing.T) {
	ctrl, _, _ := newControllerFixture(t)
	rec := postJSON(t, ctrl.B2CResult, `{"Result":{"ResultCode":0,"ConversationID":"AG_1"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ack := decodeAck(t, rec); ack.ResultCode != float64(0) {
		t.Errorf("result code = %v, want 0", ack.ResultCode)
	}
}
