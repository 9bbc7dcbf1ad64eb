package cron

import (
	"context"
	"errors"
)

// transactionReconciler is the sweep the job delegates to.
type transactionReconciler interface {
	ReconcilePending(ctx context.Context) error
}

// ReconcileJob settles gateway transactions whose callbacks never arrived.
type ReconcileJob struct {
	reconciler transactionReconciler
}

// NewReconcileJob builds the reconcile job.
func NewReconcileJob(reconciler transactionReconciler) (*ReconcileJob, error) {
	if reconciler == nil {
		return nil, errors.New("reconciler required")
	}
	return &ReconcileJob{reconciler: reconciler}, nil
}

func (j *ReconcileJob) Name() string { return "transaction_reconcile" }

func (j *ReconcileJob) Run(ctx context.Context) error {
	return j.reconciler.ReconcilePending(ctx)
}
