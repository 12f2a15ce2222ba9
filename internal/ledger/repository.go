package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/renovo/backend/internal/models"
)

// The ledger reads and writes through these narrow views of the repository
// package so tests can run against in-memory stores.

type UserStore interface {
	GetByID(ctx context.Context, uid uuid.UUID) (*models.User, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, uid uuid.UUID) (*models.User, error)
	DeductCredits(ctx context.Context, tx pgx.Tx, uid uuid.UUID, amount int) (newBalance int, err error)
	AddCredits(ctx context.Context, tx pgx.Tx, uid uuid.UUID, amount int) (newBalance int, err error)
}

type ProjectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Project, error)
	GetPrivateDetails(ctx context.Context, projectID uuid.UUID) (*models.ProjectPrivateDetails, error)
}

type UnlockStore interface {
	GetTx(ctx context.Context, tx pgx.Tx, id string) (*models.ProjectUnlock, error)
	CreateTx(ctx context.Context, tx pgx.Tx, u *models.ProjectUnlock) error
	Exists(ctx context.Context, contractorUID, projectID uuid.UUID) (bool, error)
	ListByContractor(ctx context.Context, contractorUID uuid.UUID) ([]*models.ProjectUnlock, error)
}

type CreditStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditTransaction) error
	ListByContractor(ctx context.Context, contractorUID uuid.UUID) ([]*models.CreditTransaction, error)
	FindRefundTx(ctx context.Context, tx pgx.Tx, contractorUID, projectID uuid.UUID) (*models.CreditTransaction, error)
}
