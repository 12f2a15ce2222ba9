package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renovo/backend/internal/models"
)

const unlockColumns = `id, contractor_uid, project_id, homeowner_uid, credit_cost, unlocked_at`

type UnlockRepo struct {
	pool *pgxpool.Pool
}

func NewUnlockRepo(pool *pgxpool.Pool) *UnlockRepo {
	return &UnlockRepo{pool: pool}
}

func scanUnlock(row pgx.Row) (*models.ProjectUnlock, error) {
	var u models.ProjectUnlock
	if err := row.Scan(&u.ID, &u.ContractorUID, &u.ProjectID, &u.HomeownerUID, &u.CreditCost, &u.UnlockedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetTx returns the unlock with the given id, or nil when none exists.
func (r *UnlockRepo) GetTx(ctx context.Context, tx pgx.Tx, id string) (*models.ProjectUnlock, error) {
	u, err := scanUnlock(tx.QueryRow(ctx, `SELECT `+unlockColumns+` FROM project_unlocks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// CreateTx inserts the unlock. A unique violation means the pair is already unlocked.
func (r *UnlockRepo) CreateTx(ctx context.Context, tx pgx.Tx, u *models.ProjectUnlock) error {
	return tx.QueryRow(ctx, `
		INSERT INTO project_unlocks (id, contractor_uid, project_id, homeowner_uid, credit_cost)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING unlocked_at
	`, u.ID, u.ContractorUID, u.ProjectID, u.HomeownerUID, u.CreditCost).Scan(&u.UnlockedAt)
}

// Exists reports whether the contractor holds an unlock for the project.
func (r *UnlockRepo) Exists(ctx context.Context, contractorUID, projectID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM project_unlocks WHERE id = $1)`,
		models.UnlockID(contractorUID, projectID)).Scan(&ok)
	return ok, err
}

// ListByContractor returns a contractor's unlocks newest first.
func (r *UnlockRepo) ListByContractor(ctx context.Context, contractorUID uuid.UUID) ([]*models.ProjectUnlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+unlockColumns+` FROM project_unlocks WHERE contractor_uid = $1 ORDER BY unlocked_at DESC
	`, contractorUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.ProjectUnlock
	for rows.Next() {
		u, err := scanUnlock(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
