package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/wawire/rentpulse-backend/pkg/config"
	"github.com/wawire/rentpulse-backend/pkg/enums"
	pkgerrors "github.com/wawire/rentpulse-backend/pkg/errors"
	"github.com/wawire/rentpulse-backend/pkg/logger"
	"github.com/wawire/rentpulse-backend/pkg/mpesa"
)

// StatusGateway is the query side of the gateway used to settle push
// requests whose callbacks never arrived.
type StatusGateway interface {
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResult, error)
}

// ReconcilerParams bundles the dependencies for NewReconciler.
type ReconcilerParams struct {
	Repo    Repository
	Service *Service
	Gateway StatusGateway
	Config  config.ReconcilerConfig
	Logger  *logger.Logger
	Now     func() time.Time
}

// Reconciler sweeps push requests stuck in an open status and settles them
// from the gateway's status query endpoint.
type Reconciler struct {
	repo    Repository
	service *Service
	gateway StatusGateway
	cfg     config.ReconcilerConfig
	logg    *logger.Logger
	now     func() time.Time
}

// NewReconciler validates dependencies and constructs a Reconciler.
func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reconciler: repo is required")
	}
	if params.Service == nil {
		return nil, fmt.Errorf("reconciler: service is required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("reconciler: gateway is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("reconciler: logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		repo:    params.Repo,
		service: params.Service,
		gateway: params.Gateway,
		cfg:     params.Config,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// ReconcilePending queries the gateway for one batch of stuck push requests.
// Only requests older than the configured minimum age are touched, so a
// callback that is merely slow still gets there first. Failures on one
// transaction never block the rest of the batch.
func (r *Reconciler) ReconcilePending(ctx context.Context) error {
	cutoff := r.now().Add(-r.cfg.MinAge)
	txns, err := r.repo.FindOpenOlderThan(ctx, enums.TransactionKindStkPush, cutoff, r.cfg.BatchSize)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing stuck transactions failed")
	}
	if len(txns) == 0 {
		return nil
	}

	settled := 0
	for i := range txns {
		if i > 0 {
			// Spacing between queries keeps the gateway's rate limiter happy.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.ItemDelay):
			}
		}
		txn := &txns[i]
		itemCtx := r.logg.WithTransactionID(ctx, txn.ID.String())
		if txn.CheckoutRequestID == nil {
			r.logg.Warn(itemCtx, "open push transaction has no checkout request id, skipping")
			continue
		}
		result, err := r.gateway.QueryStatus(itemCtx, *txn.CheckoutRequestID)
		if err != nil {
			r.logg.Error(itemCtx, "status query failed", err)
			continue
		}
		if err := r.service.ApplyQueryResult(itemCtx, txn, result); err != nil {
			r.logg.Error(itemCtx, "applying query result failed", err)
			continue
		}
		settled++
	}
	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"batch":   len(txns),
		"settled": settled,
	}), "reconcile pass finished")
	return nil
}
