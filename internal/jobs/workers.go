package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/renovo/backend/internal/ledger"
)

// ReconcileLedgerArgs audits one contractor's balance against their ledger.
type ReconcileLedgerArgs struct {
	ContractorUID uuid.UUID `json:"contractor_uid"`
}

func (ReconcileLedgerArgs) Kind() string { return "reconcile_ledger" }

// ReconcileAllArgs is the periodic sweep over every contractor.
type ReconcileAllArgs struct{}

func (ReconcileAllArgs) Kind() string { return "reconcile_all_ledgers" }

// Reconciler is the slice of the ledger the workers need.
type Reconciler interface {
	Reconcile(ctx context.Context, contractorUID uuid.UUID) (*ledger.Reconciliation, error)
}

// ContractorLister enumerates the accounts the sweep visits.
type ContractorLister interface {
	ListContractorIDs(ctx context.Context) ([]uuid.UUID, error)
}

type ReconcileLedgerWorker struct {
	river.WorkerDefaults[ReconcileLedgerArgs]
	ledger Reconciler
	log    *slog.Logger
}

func NewReconcileLedgerWorker(l Reconciler, log *slog.Logger) *ReconcileLedgerWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ReconcileLedgerWorker{ledger: l, log: log}
}

// Work never fails on drift: drift is a finding, not a retryable error.
func (w *ReconcileLedgerWorker) Work(ctx context.Context, job *river.Job[ReconcileLedgerArgs]) error {
	rec, err := w.ledger.Reconcile(ctx, job.Args.ContractorUID)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", job.Args.ContractorUID, err)
	}
	w.log.Info("ledger reconciled", "contractor", rec.ContractorUID, "balance", rec.Balance, "drift", rec.Drift)
	return nil
}

type ReconcileAllWorker struct {
	river.WorkerDefaults[ReconcileAllArgs]
	ledger      Reconciler
	contractors ContractorLister
	log         *slog.Logger
}

func NewReconcileAllWorker(l Reconciler, contractors ContractorLister, log *slog.Logger) *ReconcileAllWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ReconcileAllWorker{ledger: l, contractors: contractors, log: log}
}

// Work visits every contractor. One failing account does not stop the sweep;
// the job errors at the end so river retries it.
func (w *ReconcileAllWorker) Work(ctx context.Context, job *river.Job[ReconcileAllArgs]) error {
	ids, err := w.contractors.ListContractorIDs(ctx)
	if err != nil {
		return fmt.Errorf("list contractors: %w", err)
	}
	var failed, drifted int
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := w.ledger.Reconcile(ctx, id)
		if err != nil {
			failed++
			w.log.Warn("reconcile failed", "contractor", id, "error", err)
			continue
		}
		if !rec.Balanced() {
			drifted++
		}
	}
	w.log.Info("ledger sweep finished", "contractors", len(ids), "drifted", drifted, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d reconciliations failed", failed, len(ids))
	}
	return nil
}
