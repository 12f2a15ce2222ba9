package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renovo/backend/internal/models"
)

const userColumns = `uid, email, password_hash, full_name, phone, role, profile_picture,
	company_name, contact_name, business_number, obr_number, verification_status,
	verified_date, admin_notes, credit_balance, created_at, updated_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.UID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.Role, &u.ProfilePicture,
		&u.CompanyName, &u.ContactName, &u.BusinessNumber, &u.OBRNumber, &u.VerificationStatus,
		&u.VerifiedDate, &u.AdminNotes, &u.CreditBalance, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (uid, email, password_hash, full_name, phone, role, profile_picture,
			company_name, contact_name, business_number, obr_number, verification_status, credit_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, u.UID, u.Email, u.PasswordHash, u.FullName, u.Phone, u.Role, u.ProfilePicture,
		u.CompanyName, u.ContactName, u.BusinessNumber, u.OBRNumber, u.VerificationStatus, u.CreditBalance,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, uid uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1`, uid))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetByIDForUpdate locks the user row. Call within a transaction.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, uid uuid.UUID) (*models.User, error) {
	return scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1 FOR UPDATE`, uid))
}

// DeductCredits atomically deducts amount if balance >= amount. pgx.ErrNoRows
// means the balance was too low.
func (r *UserRepo) DeductCredits(ctx context.Context, tx pgx.Tx, uid uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET credit_balance = credit_balance - $1, updated_at = now()
		WHERE uid = $2 AND role = 'contractor' AND credit_balance >= $1
		RETURNING credit_balance
	`, amount, uid).Scan(&newBalance)
	return newBalance, err
}

// AddCredits adds amount to a contractor and returns the new balance.
func (r *UserRepo) AddCredits(ctx context.Context, tx pgx.Tx, uid uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET credit_balance = credit_balance + $1, updated_at = now()
		WHERE uid = $2 AND role = 'contractor'
		RETURNING credit_balance
	`, amount, uid).Scan(&newBalance)
	return newBalance, err
}

// UpdateProfile writes the user-editable fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		UPDATE users SET full_name = $2, phone = $3, profile_picture = $4, company_name = $5,
			contact_name = $6, updated_at = now()
		WHERE uid = $1
		RETURNING updated_at
	`, u.UID, u.FullName, u.Phone, u.ProfilePicture, u.CompanyName, u.ContactName).Scan(&u.UpdatedAt)
}

// SetVerification records an admin decision on a contractor.
func (r *UserRepo) SetVerification(ctx context.Context, uid uuid.UUID, status string, verifiedDate *time.Time, notes string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET verification_status = $2, verified_date = $3, admin_notes = $4, updated_at = now()
		WHERE uid = $1 AND role = 'contractor'
		RETURNING `+userColumns, uid, status, verifiedDate, notes))
}

// List returns users newest first. An empty role returns everyone.
func (r *UserRepo) List(ctx context.Context, role string) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC
	`, role)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// ListContractors filters contractors by verification status; empty means all.
func (r *UserRepo) ListContractors(ctx context.Context, status string) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE role = 'contractor' AND ($1 = '' OR verification_status = $1)
		ORDER BY created_at ASC
	`, status)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// ListContractorIDs returns every contractor uid, for reconciliation sweeps.
func (r *UserRepo) ListContractorIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT uid FROM users WHERE role = 'contractor' ORDER BY uid`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func collectUsers(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()
	var list []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
