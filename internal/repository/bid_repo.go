package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renovo/backend/internal/models"
)

const bidColumns = `id, contractor_uid, homeowner_uid, project_id, contractor_name, project_category,
	itemized_costs, total_cost, estimated_timeline, notes, status, submitted_at, decided_at`

type BidRepo struct {
	pool *pgxpool.Pool
}

func NewBidRepo(pool *pgxpool.Pool) *BidRepo {
	return &BidRepo{pool: pool}
}

func scanBid(row pgx.Row) (*models.Bid, error) {
	var b models.Bid
	err := row.Scan(&b.ID, &b.ContractorUID, &b.HomeownerUID, &b.ProjectID, &b.ContractorName, &b.ProjectCategory,
		&b.ItemizedCosts, &b.TotalCost, &b.EstimatedTimeline, &b.Notes, &b.Status, &b.SubmittedAt, &b.DecidedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BidRepo) Create(ctx context.Context, b *models.Bid) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO bids (id, contractor_uid, homeowner_uid, project_id, contractor_name, project_category,
			itemized_costs, total_cost, estimated_timeline, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING submitted_at
	`, b.ID, b.ContractorUID, b.HomeownerUID, b.ProjectID, b.ContractorName, b.ProjectCategory,
		b.ItemizedCosts, b.TotalCost, b.EstimatedTimeline, b.Notes, b.Status).Scan(&b.SubmittedAt)
}

func (r *BidRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	return scanBid(r.pool.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id))
}

// Decide moves a submitted bid to a terminal status. pgx.ErrNoRows means the
// bid was no longer submitted.
func (r *BidRepo) Decide(ctx context.Context, id uuid.UUID, status string, at time.Time) (*models.Bid, error) {
	return scanBid(r.pool.QueryRow(ctx, `
		UPDATE bids SET status = $2, decided_at = $3
		WHERE id = $1 AND status = 'submitted'
		RETURNING `+bidColumns, id, status, at))
}

func (r *BidRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Bid, error) {
	return r.list(ctx, `SELECT `+bidColumns+` FROM bids WHERE project_id = $1 ORDER BY submitted_at DESC`, projectID)
}

func (r *BidRepo) ListByContractor(ctx context.Context, contractorUID uuid.UUID) ([]*models.Bid, error) {
	return r.list(ctx, `SELECT `+bidColumns+` FROM bids WHERE contractor_uid = $1 ORDER BY submitted_at DESC`, contractorUID)
}

func (r *BidRepo) ListByHomeowner(ctx context.Context, homeownerUID uuid.UUID) ([]*models.Bid, error) {
	return r.list(ctx, `SELECT `+bidColumns+` FROM bids WHERE homeowner_uid = $1 ORDER BY submitted_at DESC`, homeownerUID)
}

func (r *BidRepo) list(ctx context.Context, sql string, arg any) ([]*models.Bid, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}
