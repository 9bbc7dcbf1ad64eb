package transactions

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/rentpulse-backend/pkg/db/models"
	"github.com/wawire/rentpulse-backend/pkg/enums"
	pkgerrors "github.com/wawire/rentpulse-backend/pkg/errors"
	"github.com/wawire/rentpulse-backend/pkg/logger"
	"github.com/wawire/rentpulse-backend/pkg/mpesa"
)

// accountRefPattern is the paybill account number format tenants key in:
// letters, digits and dashes, capped at the gateway's field length.
var accountRefPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,20}$`)

// StatusFromResultCode maps a gateway result code to a terminal transaction
// status. Zero is success; 1032 is a user cancel on the handset prompt; 1037
// means the prompt expired unanswered. Everything else is a hard failure.
func StatusFromResultCode(code int) enums.TransactionStatus {
	switch code {
	case 0:
		return enums.TransactionStatusCompleted
	case 1032:
		return enums.TransactionStatusCancelled
	case 1037:
		return enums.TransactionStatusTimeout
	default:
		return enums.TransactionStatusFailed
	}
}

// PaymentMaterializer turns a completed transaction into a payment record.
type PaymentMaterializer interface {
	MaterializeFromTransaction(ctx context.Context, txn *models.GatewayTransaction) error
}

// TenantResolver maps a paybill account reference to the tenant who owns it.
type TenantResolver interface {
	FindByAccountRef(ctx context.Context, accountRef string) (*models.Tenant, error)
}

// PaymentGateway is the outbound side of the gateway integration.
type PaymentGateway interface {
	InitiatePushPayment(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
	InitiateDisbursement(ctx context.Context, req mpesa.DisbursementRequest) (*mpesa.DisbursementResponse, error)
}

// ServiceParams bundles the dependencies for NewService.
type ServiceParams struct {
	Repo         Repository
	Tenants      TenantResolver
	Materializer PaymentMaterializer
	Gateway      PaymentGateway
	Logger       *logger.Logger
	Now          func() time.Time
}

// Service owns the gateway transaction lifecycle: push and disbursement
// issuance, callback ingestion, and the terminal status transitions.
type Service struct {
	repo         Repository
	tenants      TenantResolver
	materializer PaymentMaterializer
	gateway      PaymentGateway
	logg         *logger.Logger
	now          func() time.Time
}

// NewService validates dependencies and constructs a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("transactions: repo is required")
	}
	if params.Tenants == nil {
		return nil, fmt.Errorf("transactions: tenant resolver is required")
	}
	if params.Materializer == nil {
		return nil, fmt.Errorf("transactions: materializer is required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("transactions: gateway is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("transactions: logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:         params.Repo,
		tenants:      params.Tenants,
		materializer: params.Materializer,
		gateway:      params.Gateway,
		logg:         params.Logger,
		now:          now,
	}, nil
}

// ValidationOutcome is the accept/reject decision for a C2B validation probe.
type ValidationOutcome struct {
	Accepted bool
	Reason   string
}

// HandleValidation decides whether an incoming customer payment should be
// allowed through. Rejections never persist anything; the gateway retries the
// whole payment if the customer tries again.
func (s *Service) HandleValidation(ctx context.Context, cb C2BCallback) ValidationOutcome {
	ctx = s.logg.WithField(ctx, "account_reference", cb.BillRefNumber)
	if cb.TransID == "" || cb.MSISDN == "" {
		s.logg.Warn(ctx, "validation rejected: missing transaction id or msisdn")
		return ValidationOutcome{Reason: "missing required fields"}
	}
	if !accountRefPattern.MatchString(cb.BillRefNumber) {
		s.logg.Warn(ctx, "validation rejected: malformed account reference")
		return ValidationOutcome{Reason: "invalid account reference"}
	}
	amount, err := decimal.NewFromString(cb.TransAmount)
	if err != nil || !amount.IsPositive() {
		s.logg.Warn(ctx, "validation rejected: non-positive amount")
		return ValidationOutcome{Reason: "invalid amount"}
	}
	tenant, err := s.tenants.FindByAccountRef(ctx, cb.BillRefNumber)
	if err != nil {
		// Fail open: a storage blip must not bounce a real payment.
		s.logg.Error(ctx, "validation lookup failed, accepting", err)
		return ValidationOutcome{Accepted: true}
	}
	if tenant == nil {
		s.logg.Warn(ctx, "validation rejected: unknown account reference")
		return ValidationOutcome{Reason: "unknown account reference"}
	}
	return ValidationOutcome{Accepted: true}
}

// HandleConfirmation records a settled customer payment. It correlates the
// confirmation with an open push request by account reference and amount;
// with no match the payment was made directly against the paybill and a new
// completed transaction is created for it.
func (s *Service) HandleConfirmation(ctx context.Context, cb C2BCallback, raw string) error {
	ctx = s.logg.WithField(ctx, "account_reference", cb.BillRefNumber)
	amount, err := decimal.NewFromString(cb.TransAmount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "confirmation amount is not numeric")
	}

	txn, err := s.repo.FindOpenByAccountRef(ctx, cb.BillRefNumber, amount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirmation correlation lookup failed")
	}
	if txn == nil {
		txn, err = s.createUnsolicited(ctx, cb, amount, raw)
		if err != nil {
			return err
		}
		s.materialize(ctx, txn.ID)
		return nil
	}

	ctx = s.logg.WithTransactionID(ctx, txn.ID.String())
	receipt := cb.TransID
	receivedAt := s.now()
	if settled := cb.TransactionTime(); settled != nil {
		receivedAt = *settled
	}
	s.resolveAndMaterialize(ctx, txn, Resolution{
		Status:            enums.TransactionStatusCompleted,
		ResultCode:        0,
		ResultDescription: "confirmed by gateway",
		ReceiptNumber:     &receipt,
		RawCallback:       &raw,
		ReceivedAt:        receivedAt,
	})
	return nil
}

// HandleStkResult settles a push request from its result callback.
func (s *Service) HandleStkResult(ctx context.Context, env StkCallbackEnvelope, raw string) error {
	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "stk callback carries no checkout request id")
	}
	txn, err := s.repo.FindByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stk callback lookup failed")
	}
	if txn == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("no transaction matches checkout request %s", cb.CheckoutRequestID))
	}

	// Prefer the gateway-side completion time over our receipt time so a
	// delayed callback still books the payment when it actually settled.
	receivedAt := s.now()
	if settled := cb.CallbackMetadata.TransactionTime(); settled != nil {
		receivedAt = *settled
	}

	ctx = s.logg.WithTransactionID(ctx, txn.ID.String())
	s.resolveAndMaterialize(ctx, txn, Resolution{
		Status:            StatusFromResultCode(cb.ResultCode),
		ResultCode:        cb.ResultCode,
		ResultDescription: cb.ResultDesc,
		ReceiptNumber:     cb.CallbackMetadata.ReceiptNumber(),
		RawCallback:       &raw,
		ReceivedAt:        receivedAt,
	})
	return nil
}

// ApplyQueryResult settles a push request from a polled status query. Shared
// with the reconciler so callbacks and polling apply one transition.
func (s *Service) ApplyQueryResult(ctx context.Context, txn *models.GatewayTransaction, result *mpesa.STKQueryResult) error {
	ctx = s.logg.WithTransactionID(ctx, txn.ID.String())
	applied, err := s.repo.Resolve(ctx, txn.ID, Resolution{
		Status:            StatusFromResultCode(result.ResultCode),
		ResultCode:        result.ResultCode,
		ResultDescription: result.ResultDescription,
		ReceivedAt:        s.now(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile transition failed")
	}
	if !applied {
		s.logg.Info(ctx, "transaction already settled, query result ignored")
		return nil
	}
	if StatusFromResultCode(result.ResultCode) == enums.TransactionStatusCompleted {
		s.materialize(ctx, txn.ID)
	}
	return nil
}

// HandleDisbursementResult settles an outbound disbursement. Audit only; no
// payment is materialized from money leaving the platform.
func (s *Service) HandleDisbursementResult(ctx context.Context, env B2CResultEnvelope, raw string) error {
	key, err := env.Result.conversationKey()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "disbursement callback rejected")
	}
	txn, err := s.repo.FindByConversationID(ctx, key)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "disbursement callback lookup failed")
	}
	if txn == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("no transaction matches conversation %s", key))
	}

	ctx = s.logg.WithTransactionID(ctx, txn.ID.String())
	status := enums.TransactionStatusFailed
	if env.Result.ResultCode == 0 {
		status = enums.TransactionStatusCompleted
	}
	var receipt *string
	if env.Result.TransactionID != "" {
		receipt = &env.Result.TransactionID
	}
	applied, err := s.repo.Resolve(ctx, txn.ID, Resolution{
		Status:            status,
		ResultCode:        env.Result.ResultCode,
		ResultDescription: env.Result.ResultDesc,
		ReceiptNumber:     receipt,
		RawCallback:       &raw,
		ReceivedAt:        s.now(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "disbursement transition failed")
	}
	if !applied {
		s.logg.Info(ctx, "disbursement already settled, duplicate callback ignored")
	}
	return nil
}

// HandleDisbursementTimeout marks a disbursement whose processing window
// expired at the gateway.
func (s *Service) HandleDisbursementTimeout(ctx context.Context, env B2CResultEnvelope, raw string) error {
	key, err := env.Result.conversationKey()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "timeout callback rejected")
	}
	txn, err := s.repo.FindByConversationID(ctx, key)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "timeout callback lookup failed")
	}
	if txn == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("no transaction matches conversation %s", key))
	}

	ctx = s.logg.WithTransactionID(ctx, txn.ID.String())
	applied, err := s.repo.Resolve(ctx, txn.ID, Resolution{
		Status:            enums.TransactionStatusTimeout,
		ResultCode:        env.Result.ResultCode,
		ResultDescription: env.Result.ResultDesc,
		RawCallback:       &raw,
		ReceivedAt:        s.now(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "timeout transition failed")
	}
	if !applied {
		s.logg.Info(ctx, "disbursement already settled, timeout callback ignored")
	}
	return nil
}

// IssuePushPayment asks the gateway to prompt the tenant's handset for rent
// and records the transaction through requested and pending.
func (s *Service) IssuePushPayment(ctx context.Context, tenantID uuid.UUID, phone, accountRef string, amount decimal.Decimal) (*models.GatewayTransaction, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "push amount must be positive")
	}
	txn := &models.GatewayTransaction{
		Kind:             enums.TransactionKindStkPush,
		Amount:           amount,
		PhoneNumber:      phone,
		AccountReference: accountRef,
		Status:           enums.TransactionStatusRequested,
		TenantID:         &tenantID,
	}
	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording push request failed")
	}
	ctx = s.logg.WithTransactionID(ctx, txn.ID.String())

	resp, err := s.gateway.InitiatePushPayment(ctx, mpesa.STKPushRequest{
		Amount:           amount.StringFixed(0),
		PhoneNumber:      phone,
		AccountReference: accountRef,
		Description:      "Rent payment",
	})
	if err != nil {
		s.failIssuance(ctx, txn.ID, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway rejected push request")
	}
	rawResp := fmt.Sprintf(`{"ResponseCode":%q,"CustomerMessage":%q}`, resp.ResponseCode, resp.CustomerMessage)
	if err := s.repo.RecordIssuance(ctx, txn.ID, IssuanceFields{
		MerchantRequestID: &resp.MerchantRequestID,
		CheckoutRequestID: &resp.CheckoutRequestID,
		RawResponse:       rawResp,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording push issuance failed")
	}
	s.logg.Info(ctx, "push payment issued")
	return s.repo.FindByID(ctx, txn.ID)
}

// IssueDisbursement sends money out to a landlord and records the transaction.
func (s *Service) IssueDisbursement(ctx context.Context, phone string, amount decimal.Decimal, remarks string) (*models.GatewayTransaction, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "disbursement amount must be positive")
	}
	txn := &models.GatewayTransaction{
		Kind:             enums.TransactionKindDisbursement,
		Amount:           amount,
		PhoneNumber:      phone,
		AccountReference: remarks,
		Status:           enums.TransactionStatusRequested,
	}
	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording disbursement request failed")
	}
	ctx = s.logg.WithTransactionID(ctx, txn.ID.String())

	resp, err := s.gateway.InitiateDisbursement(ctx, mpesa.DisbursementRequest{
		Amount:      amount.StringFixed(0),
		PhoneNumber: phone,
		Remarks:     remarks,
	})
	if err != nil {
		s.failIssuance(ctx, txn.ID, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway rejected disbursement")
	}
	conversationID := resp.ConversationID
	if conversationID == "" {
		conversationID = resp.OriginatorConversationID
	}
	rawResp := fmt.Sprintf(`{"ResponseCode":%q,"ResponseDescription":%q}`, resp.ResponseCode, resp.ResponseDescription)
	if err := s.repo.RecordIssuance(ctx, txn.ID, IssuanceFields{
		ConversationID: &conversationID,
		RawResponse:    rawResp,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording disbursement issuance failed")
	}
	s.logg.Info(ctx, "disbursement issued")
	return s.repo.FindByID(ctx, txn.ID)
}

func (s *Service) createUnsolicited(ctx context.Context, cb C2BCallback, amount decimal.Decimal, raw string) (*models.GatewayTransaction, error) {
	receipt := cb.TransID
	receivedAt := s.now()
	if settled := cb.TransactionTime(); settled != nil {
		receivedAt = *settled
	}
	code := 0
	desc := "unsolicited paybill payment"
	txn := &models.GatewayTransaction{
		Kind:               enums.TransactionKindStkPush,
		ConversationID:     &receipt,
		Amount:             amount,
		PhoneNumber:        cb.MSISDN,
		AccountReference:   cb.BillRefNumber,
		Status:             enums.TransactionStatusCompleted,
		ResultCode:         &code,
		ResultDescription:  &desc,
		ReceiptNumber:      &receipt,
		RawCallback:        &raw,
		CallbackReceivedAt: &receivedAt,
	}
	if tenant, err := s.tenants.FindByAccountRef(ctx, cb.BillRefNumber); err == nil && tenant != nil {
		txn.TenantID = &tenant.ID
	}
	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording unsolicited payment failed")
	}
	s.logg.Info(s.logg.WithTransactionID(ctx, txn.ID.String()), "unsolicited payment recorded")
	return txn, nil
}

// resolveAndMaterialize applies a terminal transition and, on completion,
// hands the transaction to the payment materializer. Materializer failures
// are logged and swallowed; the callback must still be acknowledged and the
// reconciler will not retry a settled transaction, so the unique payment
// constraint is the backstop.
func (s *Service) resolveAndMaterialize(ctx context.Context, txn *models.GatewayTransaction, res Resolution) {
	applied, err := s.repo.Resolve(ctx, txn.ID, res)
	if err != nil {
		s.logg.Error(ctx, "transaction transition failed", err)
		return
	}
	if !applied {
		s.logg.Info(ctx, "transaction already settled, duplicate callback ignored")
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "status", res.Status.String()), "transaction settled")
	if res.Status == enums.TransactionStatusCompleted {
		s.materialize(ctx, txn.ID)
	}
}

func (s *Service) materialize(ctx context.Context, id uuid.UUID) {
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil || txn == nil {
		s.logg.Error(ctx, "reloading completed transaction failed", err)
		return
	}
	if err := s.materializer.MaterializeFromTransaction(ctx, txn); err != nil {
		s.logg.Error(ctx, "payment materialization failed", err)
	}
}

func (s *Service) failIssuance(ctx context.Context, id uuid.UUID, cause error) {
	desc := cause.Error()
	if _, err := s.repo.Resolve(ctx, id, Resolution{
		Status:            enums.TransactionStatusFailed,
		ResultCode:        -1,
		ResultDescription: desc,
		ReceivedAt:        s.now(),
	}); err != nil {
		s.logg.Error(ctx, "marking failed issuance failed", err)
	}
}
