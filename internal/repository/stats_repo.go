package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renovo/backend/internal/models"
)

type StatsRepo struct {
	pool *pgxpool.Pool
}

func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

func (r *StatsRepo) Admin(ctx context.Context) (*models.AdminStats, error) {
	s := &models.AdminStats{ProjectsByStatus: map[string]int{}}
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE role = 'homeowner'),
			count(*) FILTER (WHERE role = 'contractor'),
			count(*) FILTER (WHERE role = 'admin'),
			count(*) FILTER (WHERE role = 'contractor' AND verification_status = 'approved'),
			count(*) FILTER (WHERE role = 'contractor' AND verification_status = 'pending'),
			count(*) FILTER (WHERE role = 'contractor' AND verification_status = 'rejected'),
			coalesce(sum(credit_balance) FILTER (WHERE role = 'contractor'), 0)
		FROM users
	`).Scan(&s.Homeowners, &s.Contractors, &s.Admins, &s.VerifiedContractors, &s.PendingContractors,
		&s.RejectedContractors, &s.TotalCreditsInCirculation)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM bids),
			(SELECT count(*) FROM bids WHERE status = 'accepted'),
			(SELECT count(*) FROM conversations),
			(SELECT count(*) FROM project_unlocks)
	`).Scan(&s.Bids, &s.AcceptedBids, &s.Conversations, &s.Unlocks)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM projects GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		s.ProjectsByStatus[status] = n
		s.Projects += n
	}
	return s, rows.Err()
}

func (r *StatsRepo) Contractor(ctx context.Context, uid uuid.UUID) (*models.ContractorStats, error) {
	var s models.ContractorStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM bids WHERE contractor_uid = $1),
			(SELECT count(*) FROM bids WHERE contractor_uid = $1 AND status = 'accepted'),
			(SELECT count(*) FROM project_unlocks WHERE contractor_uid = $1),
			(SELECT coalesce(sum(credit_amount), 0) FROM credit_transactions WHERE contractor_uid = $1 AND type = 'unlock'),
			(SELECT credit_balance FROM users WHERE uid = $1)
	`, uid).Scan(&s.TotalBids, &s.AcceptedBids, &s.UnlockedProjects, &s.CreditsSpent, &s.CreditBalance)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StatsRepo) Homeowner(ctx context.Context, uid uuid.UUID) (*models.HomeownerStats, error) {
	var s models.HomeownerStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM projects WHERE homeowner_uid = $1),
			(SELECT count(*) FROM projects WHERE homeowner_uid = $1 AND status = 'open'),
			(SELECT count(*) FROM bids WHERE homeowner_uid = $1),
			(SELECT count(*) FROM bids WHERE homeowner_uid = $1 AND status = 'accepted')
	`, uid).Scan(&s.Projects, &s.OpenProjects, &s.BidsReceived, &s.AcceptedBids)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
