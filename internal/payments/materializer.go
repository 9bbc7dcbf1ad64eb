package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wawire/rentpulse-backend/internal/billing"
	"github.com/wawire/rentpulse-backend/internal/tenants"
	"github.com/wawire/rentpulse-backend/pkg/db"
	"github.com/wawire/rentpulse-backend/pkg/db/models"
	"github.com/wawire/rentpulse-backend/pkg/enums"
	pkgerrors "github.com/wawire/rentpulse-backend/pkg/errors"
	"github.com/wawire/rentpulse-backend/pkg/logger"
)

// TenancySource resolves the tenant details a payment record needs.
type TenancySource interface {
	FindTenancyByID(ctx context.Context, tenantID uuid.UUID) (*tenants.Tenancy, error)
}

// TransactionLinker records the payment id back on the source transaction.
type TransactionLinker interface {
	LinkPayment(ctx context.Context, transactionID, paymentID uuid.UUID) error
}

// MaterializerParams bundles the dependencies for NewMaterializer.
type MaterializerParams struct {
	Repo         Repository
	Tenancies    TenancySource
	Transactions TransactionLinker
	Logger       *logger.Logger
	Now          func() time.Time
}

// Materializer turns completed gateway transactions into payment records,
// exactly once per transaction. It is deliberately forgiving: a transaction
// that cannot be attributed to a tenant is logged and left for manual review
// rather than failing the ingestion path.
type Materializer struct {
	repo         Repository
	tenancies    TenancySource
	transactions TransactionLinker
	logg         *logger.Logger
	now          func() time.Time
}

// NewMaterializer validates dependencies and constructs a Materializer.
func NewMaterializer(params MaterializerParams) (*Materializer, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments: repo is required")
	}
	if params.Tenancies == nil {
		return nil, fmt.Errorf("payments: tenancy source is required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("payments: transaction linker is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("payments: logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Materializer{
		repo:         params.Repo,
		tenancies:    params.Tenancies,
		transactions: params.Transactions,
		logg:         params.Logger,
		now:          now,
	}, nil
}

// MaterializeFromTransaction creates the payment for a completed transaction.
// Safe to call more than once for the same transaction: the unique constraint
// on transaction_ref collapses races to a single payment row, and a duplicate
// call just repairs the back-link.
func (m *Materializer) MaterializeFromTransaction(ctx context.Context, txn *models.GatewayTransaction) error {
	ctx = m.logg.WithTransactionID(ctx, txn.ID.String())

	if txn.Status != enums.TransactionStatusCompleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot materialize transaction in status %s", txn.Status))
	}
	if txn.TenantID == nil {
		m.logg.Warn(ctx, "completed transaction has no tenant attribution, leaving for manual review")
		return nil
	}
	ctx = m.logg.WithTenantID(ctx, txn.TenantID.String())

	tenancy, err := m.tenancies.FindTenancyByID(ctx, *txn.TenantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "tenancy lookup failed")
	}
	if tenancy == nil {
		m.logg.Warn(ctx, "transaction references unknown tenant, leaving for manual review")
		return nil
	}

	account, err := m.repo.FindActiveAccount(ctx, *txn.TenantID, enums.PaymentMethodMpesa)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment account lookup failed")
	}
	if account == nil {
		m.logg.Warn(ctx, "tenant has no active collection account, leaving for manual review")
		return nil
	}

	paymentDate := m.now()
	if txn.CallbackReceivedAt != nil {
		paymentDate = *txn.CallbackReceivedAt
	}
	dueDate := billing.CycleDueDate(paymentDate, tenancy.Tenant.RentDueDay)
	month, year := int(dueDate.Month()), dueDate.Year()

	payment := &models.Payment{
		TenantID:         *txn.TenantID,
		UnitID:           tenancy.Tenant.UnitID,
		PaymentAccountID: account.ID,
		Amount:           txn.Amount,
		Method:           enums.PaymentMethodMpesa,
		Status:           enums.PaymentStatusPending,
		PaymentDate:      paymentDate,
		DueDate:          dueDate,
		BillingMonth:     month,
		BillingYear:      year,
		PhoneNumber:      txn.PhoneNumber,
		ReceiptNumber:    txn.ReceiptNumber,
		TransactionRef:   transactionRef(txn),
	}

	if err := m.repo.Create(ctx, payment); err != nil {
		if db.IsUniqueViolation(err, "payments_transaction_ref_key") {
			m.logg.Info(ctx, "payment already materialized for transaction")
			return m.relink(ctx, txn)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating payment failed")
	}

	if err := m.transactions.LinkPayment(ctx, txn.ID, payment.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "linking payment to transaction failed")
	}
	m.logg.Info(m.logg.WithFields(ctx, map[string]any{
		"payment_id":    payment.ID.String(),
		"billing_month": month,
		"billing_year":  year,
	}), "payment materialized")
	return nil
}

// relink repairs the transaction back-link after losing a materialization race.
func (m *Materializer) relink(ctx context.Context, txn *models.GatewayTransaction) error {
	if txn.PaymentID != nil {
		return nil
	}
	existing, err := m.repo.FindByTransactionRef(ctx, transactionRef(txn))
	if err != nil || existing == nil {
		return err
	}
	return m.transactions.LinkPayment(ctx, txn.ID, existing.ID)
}

// transactionRef is the stable dedupe key for a materialized payment: the
// gateway receipt when it exists, otherwise the strongest correlation key.
func transactionRef(txn *models.GatewayTransaction) string {
	if txn.ReceiptNumber != nil && *txn.ReceiptNumber != "" {
		return *txn.ReceiptNumber
	}
	if txn.CheckoutRequestID != nil && *txn.CheckoutRequestID != "" {
		return *txn.CheckoutRequestID
	}
	return txn.ID.String()
}
