package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/renovo/backend/internal/ledger"
)

type fakeReconciler struct {
	drift map[uuid.UUID]int
	fail  map[uuid.UUID]bool
	seen  []uuid.UUID
}

func (f *fakeReconciler) Reconcile(_ context.Context, uid uuid.UUID) (*ledger.Reconciliation, error) {
	f.seen = append(f.seen, uid)
	if f.fail[uid] {
		return nil, errors.New("database unavailable")
	}
	return &ledger.Reconciliation{ContractorUID: uid, Balance: 10, LedgerSum: 10 - f.drift[uid], Drift: f.drift[uid]}, nil
}

type fakeContractors []uuid.UUID

func (f fakeContractors) ListContractorIDs(context.Context) ([]uuid.UUID, error) { return f, nil }

func jobFor[T river.JobArgs](args T) *river.Job[T] {
	return &river.Job[T]{JobRow: &rivertype.JobRow{ID: 1, Attempt: 1}, Args: args}
}

func TestReconcileLedgerWorker(t *testing.T) {
	uid := uuid.New()
	rec := &fakeReconciler{drift: map[uuid.UUID]int{uid: 3}}
	w := NewReconcileLedgerWorker(rec, nil)

	if err := w.Work(context.Background(), jobFor(ReconcileLedgerArgs{ContractorUID: uid})); err != nil {
		t.Fatalf("drift must not fail the job: %v", err)
	}
	if len(rec.seen) != 1 || rec.seen[0] != uid {
		t.Errorf("reconciled %v", rec.seen)
	}

	rec.fail = map[uuid.UUID]bool{uid: true}
	if err := w.Work(context.Background(), jobFor(ReconcileLedgerArgs{ContractorUID: uid})); err == nil {
		t.Error("store failure should be retried")
	}
}

func TestReconcileAllWorkerVisitsEveryone(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	rec := &fakeReconciler{fail: map[uuid.UUID]bool{b: true}}
	w := NewReconcileAllWorker(rec, fakeContractors{a, b, c}, nil)

	err := w.Work(context.Background(), jobFor(ReconcileAllArgs{}))
	if err == nil {
		t.Fatal("expected error for the failed contractor")
	}
	if len(rec.seen) != 3 {
		t.Errorf("visited %d contractors, want 3", len(rec.seen))
	}

	rec.fail = nil
	rec.seen = nil
	if err := w.Work(context.Background(), jobFor(ReconcileAllArgs{})); err != nil {
		t.Errorf("clean sweep: %v", err)
	}
}

func TestEnqueuerWithoutClientIsNoop(t *testing.T) {
	var e *Enqueuer
	if err := e.EnqueueReconcile(context.Background(), uuid.New()); err != nil {
		t.Errorf("nil enqueuer: %v", err)
	}
}

func TestKinds(t *testing.T) {
	if (ReconcileLedgerArgs{}).Kind() == (ReconcileAllArgs{}).Kind() {
		t.Error("job kinds collide")
	}
}
