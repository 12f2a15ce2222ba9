package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renovo/backend/internal/models"
)

const creditColumns = `id, contractor_uid, type, credit_amount, cost, related_project_id, stripe_transaction_id, timestamp`

type CreditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

// CreateTx inserts a ledger entry inside the given transaction.
func (r *CreditRepo) CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (id, contractor_uid, type, credit_amount, cost, related_project_id, stripe_transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING timestamp
	`, c.ID, c.ContractorUID, c.Type, c.CreditAmount, c.Cost, c.RelatedProjectID, c.StripeTransactionID).Scan(&c.Timestamp)
}

// ListByContractor returns the ledger newest first.
func (r *CreditRepo) ListByContractor(ctx context.Context, contractorUID uuid.UUID) ([]*models.CreditTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+creditColumns+` FROM credit_transactions WHERE contractor_uid = $1 ORDER BY timestamp DESC, id
	`, contractorUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditTransaction
	for rows.Next() {
		var c models.CreditTransaction
		if err := rows.Scan(&c.ID, &c.ContractorUID, &c.Type, &c.CreditAmount, &c.Cost, &c.RelatedProjectID,
			&c.StripeTransactionID, &c.Timestamp); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

// FindRefundTx returns the refund entry for a contractor's unlock of a project, or nil.
func (r *CreditRepo) FindRefundTx(ctx context.Context, tx pgx.Tx, contractorUID, projectID uuid.UUID) (*models.CreditTransaction, error) {
	var c models.CreditTransaction
	err := tx.QueryRow(ctx, `
		SELECT `+creditColumns+` FROM credit_transactions
		WHERE contractor_uid = $1 AND related_project_id = $2 AND type = 'refund'
	`, contractorUID, projectID).Scan(&c.ID, &c.ContractorUID, &c.Type, &c.CreditAmount, &c.Cost,
		&c.RelatedProjectID, &c.StripeTransactionID, &c.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
