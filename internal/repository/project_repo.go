package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renovo/backend/internal/models"
)

const projectColumns = `id, homeowner_uid, project_title, category, category_name, property_type,
	ownership_status, budget_range, budget_label, preferred_start_date, city, credit_cost, status,
	created_at, updated_at`

const privateColumns = `project_id, homeowner_name, homeowner_email, homeowner_phone, full_description,
	street_address, unit, province, postal_code, scope_of_work, has_drawings, has_permits,
	materials_provider, deadline, contact_preference, parking_available, building_restrictions, photos`

// ProjectFilter narrows the marketplace listing. Empty fields match everything.
type ProjectFilter struct {
	Category    string
	City        string
	BudgetRange string
}

type ProjectRepo struct {
	pool *pgxpool.Pool
}

func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.HomeownerUID, &p.ProjectTitle, &p.Category, &p.CategoryName, &p.PropertyType,
		&p.OwnershipStatus, &p.BudgetRange, &p.BudgetLabel, &p.PreferredStartDate, &p.City, &p.CreditCost,
		&p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateTx inserts the public projection and its private block in the caller's transaction.
func (r *ProjectRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.Project, d *models.ProjectPrivateDetails) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO projects (id, homeowner_uid, project_title, category, category_name, property_type,
			ownership_status, budget_range, budget_label, preferred_start_date, city, credit_cost, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, p.ID, p.HomeownerUID, p.ProjectTitle, p.Category, p.CategoryName, p.PropertyType,
		p.OwnershipStatus, p.BudgetRange, p.BudgetLabel, p.PreferredStartDate, p.City, p.CreditCost, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO project_private_details (`+privateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, p.ID, d.HomeownerName, d.HomeownerEmail, d.HomeownerPhone, d.FullDescription,
		d.StreetAddress, d.Unit, d.Province, d.PostalCode, nonNil(d.ScopeOfWork), d.HasDrawings, d.HasPermits,
		d.MaterialsProvider, d.Deadline, d.ContactPreference, d.ParkingAvailable, d.BuildingRestrictions, nonNil(d.Photos))
	return err
}

func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

// GetByIDTx reads a project inside the caller's transaction.
func (r *ProjectRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Project, error) {
	return scanProject(tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

func (r *ProjectRepo) GetPrivateDetails(ctx context.Context, projectID uuid.UUID) (*models.ProjectPrivateDetails, error) {
	var d models.ProjectPrivateDetails
	err := r.pool.QueryRow(ctx, `SELECT `+privateColumns+` FROM project_private_details WHERE project_id = $1`, projectID).
		Scan(&d.ProjectID, &d.HomeownerName, &d.HomeownerEmail, &d.HomeownerPhone, &d.FullDescription,
			&d.StreetAddress, &d.Unit, &d.Province, &d.PostalCode, &d.ScopeOfWork, &d.HasDrawings, &d.HasPermits,
			&d.MaterialsProvider, &d.Deadline, &d.ContactPreference, &d.ParkingAvailable, &d.BuildingRestrictions, &d.Photos)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListOpen returns open projects newest first.
func (r *ProjectRepo) ListOpen(ctx context.Context, f ProjectFilter) ([]*models.Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE status = 'open'
			AND ($1 = '' OR category = $1)
			AND ($2 = '' OR lower(city) = lower($2))
			AND ($3 = '' OR budget_range = $3)
		ORDER BY created_at DESC
	`, f.Category, f.City, f.BudgetRange)
	if err != nil {
		return nil, err
	}
	return collectProjects(rows)
}

func (r *ProjectRepo) ListByHomeowner(ctx context.Context, homeownerUID uuid.UUID) ([]*models.Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE homeowner_uid = $1 ORDER BY created_at DESC
	`, homeownerUID)
	if err != nil {
		return nil, err
	}
	return collectProjects(rows)
}

// UpdateStatus moves a project from one status to another. pgx.ErrNoRows means
// the project was no longer in the from status.
func (r *ProjectRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (*models.Project, error) {
	return scanProject(r.pool.QueryRow(ctx, `
		UPDATE projects SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+projectColumns, id, from, to))
}

func collectProjects(rows pgx.Rows) ([]*models.Project, error) {
	defer rows.Close()
	var list []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
