package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

// Migrate brings river's own tables up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	return nil
}

type Options struct {
	MaxWorkers        int
	ReconcileInterval time.Duration
}

// NewClient registers the workers and the periodic ledger sweep.
func NewClient(pool *pgxpool.Pool, l Reconciler, contractors ContractorLister, opts Options, log *slog.Logger) (*river.Client[pgx.Tx], error) {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 10
	}
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = time.Hour
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewReconcileLedgerWorker(l, log))
	river.AddWorker(workers, NewReconcileAllWorker(l, contractors, log))

	periodic := []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(opts.ReconcileInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return ReconcileAllArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		),
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: opts.MaxWorkers},
		},
		Workers:      workers,
		PeriodicJobs: periodic,
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return client, nil
}

// Enqueuer schedules one-off reconciliations.
type Enqueuer struct {
	client *river.Client[pgx.Tx]
}

func NewEnqueuer(client *river.Client[pgx.Tx]) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) EnqueueReconcile(ctx context.Context, contractorUID uuid.UUID) error {
	if e == nil || e.client == nil {
		return nil
	}
	_, err := e.client.Insert(ctx, ReconcileLedgerArgs{ContractorUID: contractorUID}, &river.InsertOpts{
		UniqueOpts: river.UniqueOpts{ByArgs: true, ByPeriod: time.Minute},
	})
	if err != nil {
		return fmt.Errorf("enqueue reconcile: %w", err)
	}
	return nil
}
