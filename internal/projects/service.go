package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/renovo/backend/internal/database"
	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/realtime"
	"github.com/renovo/backend/internal/repository"
)

var (
	ErrNotFound          = errors.New("project not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid project status transition")
)

// Input is a homeowner's project submission. The public fields become the
// marketplace listing; the rest stay private until unlocked.
type Input struct {
	ProjectTitle         string   `json:"projectTitle"`
	Category             string   `json:"category"`
	PropertyType         string   `json:"propertyType"`
	OwnershipStatus      string   `json:"ownershipStatus"`
	BudgetRange          string   `json:"budgetRange"`
	PreferredStartDate   string   `json:"preferredStartDate"`
	City                 string   `json:"city"`
	FullDescription      string   `json:"fullDescription"`
	StreetAddress        string   `json:"streetAddress"`
	Unit                 string   `json:"unit"`
	Province             string   `json:"province"`
	PostalCode           string   `json:"postalCode"`
	ScopeOfWork          []string `json:"scopeOfWork"`
	HasDrawings          string   `json:"hasDrawings"`
	HasPermits           string   `json:"hasPermits"`
	MaterialsProvider    string   `json:"materialsProvider"`
	Deadline             string   `json:"deadline"`
	ContactPreference    string   `json:"contactPreference"`
	ParkingAvailable     string   `json:"parkingAvailable"`
	BuildingRestrictions string   `json:"buildingRestrictions"`
	Photos               []string `json:"photos"`
}

// Listing is a marketplace entry as seen by one contractor.
type Listing struct {
	*models.Project
	Unlocked bool `json:"unlocked"`
}

type ProjectStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Project, d *models.ProjectPrivateDetails) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListOpen(ctx context.Context, f repository.ProjectFilter) ([]*models.Project, error)
	ListByHomeowner(ctx context.Context, homeownerUID uuid.UUID) ([]*models.Project, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (*models.Project, error)
}

type UserStore interface {
	GetByID(ctx context.Context, uid uuid.UUID) (*models.User, error)
}

type UnlockStore interface {
	ListByContractor(ctx context.Context, contractorUID uuid.UUID) ([]*models.ProjectUnlock, error)
}

type Service interface {
	CreateProject(ctx context.Context, actor models.Actor, raw json.RawMessage) (*models.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListOpenProjects(ctx context.Context, f repository.ProjectFilter) ([]*models.Project, error)
	ListMarketplace(ctx context.Context, contractorUID uuid.UUID, f repository.ProjectFilter) ([]Listing, error)
	ListHomeownerProjects(ctx context.Context, homeownerUID uuid.UUID) ([]*models.Project, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id uuid.UUID, status string) (*models.Project, error)
}

type service struct {
	db        database.TxBeginner
	projects  ProjectStore
	users     UserStore
	unlocks   UnlockStore
	validator *Validator
	pub       realtime.Publisher
	log       *slog.Logger
}

func NewService(db database.TxBeginner, projects ProjectStore, users UserStore, unlocks UnlockStore, validator *Validator, pub realtime.Publisher, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	return &service{db: db, projects: projects, users: users, unlocks: unlocks, validator: validator, pub: pub, log: log}
}

var _ Service = (*service)(nil)

func (s *service) CreateProject(ctx context.Context, actor models.Actor, raw json.RawMessage) (*models.Project, error) {
	if !actor.Is(models.RoleHomeowner) {
		return nil, ErrForbidden
	}
	if err := s.validator.Validate(raw); err != nil {
		return nil, err
	}
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	cost, ok := models.CreditCostFor(in.BudgetRange)
	if !ok {
		return nil, fmt.Errorf("%w: unknown budget range %q", ErrValidation, in.BudgetRange)
	}

	owner, err := s.users.GetByID(ctx, actor.UID)
	if err != nil {
		return nil, fmt.Errorf("load homeowner: %w", database.Classify(err))
	}

	p := &models.Project{
		ID:                 uuid.New(),
		HomeownerUID:       actor.UID,
		ProjectTitle:       strings.TrimSpace(in.ProjectTitle),
		Category:           in.Category,
		CategoryName:       models.CategoryLabels[in.Category],
		PropertyType:       in.PropertyType,
		OwnershipStatus:    in.OwnershipStatus,
		BudgetRange:        in.BudgetRange,
		BudgetLabel:        models.BudgetLabels[in.BudgetRange],
		PreferredStartDate: in.PreferredStartDate,
		City:               strings.TrimSpace(in.City),
		CreditCost:         cost,
		Status:             models.ProjectStatusOpen,
	}
	d := &models.ProjectPrivateDetails{
		ProjectID:            p.ID,
		HomeownerName:        owner.FullName,
		HomeownerEmail:       owner.Email,
		HomeownerPhone:       owner.Phone,
		FullDescription:      strings.TrimSpace(in.FullDescription),
		StreetAddress:        in.StreetAddress,
		Unit:                 in.Unit,
		Province:             in.Province,
		PostalCode:           strings.ToUpper(in.PostalCode),
		ScopeOfWork:          lo.Compact(in.ScopeOfWork),
		HasDrawings:          in.HasDrawings,
		HasPermits:           in.HasPermits,
		MaterialsProvider:    in.MaterialsProvider,
		Deadline:             in.Deadline,
		ContactPreference:    in.ContactPreference,
		ParkingAvailable:     in.ParkingAvailable,
		BuildingRestrictions: in.BuildingRestrictions,
		Photos:               in.Photos,
	}

	err = database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		return s.projects.CreateTx(ctx, tx, p, d)
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", database.Classify(err))
	}
	s.log.Info("project created", "project", p.ID, "homeowner", actor.UID, "budget", p.BudgetRange, "credit_cost", p.CreditCost)
	s.pub.Publish(ctx, realtime.ProjectTopic(p.ID), "created", p.ID.String())
	return p, nil
}

func (s *service) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", database.Classify(err))
	}
	return p, nil
}

func (s *service) ListOpenProjects(ctx context.Context, f repository.ProjectFilter) ([]*models.Project, error) {
	list, err := s.projects.ListOpen(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", database.Classify(err))
	}
	if list == nil {
		list = []*models.Project{}
	}
	return list, nil
}

// ListMarketplace marks the open projects the contractor has already unlocked.
func (s *service) ListMarketplace(ctx context.Context, contractorUID uuid.UUID, f repository.ProjectFilter) ([]Listing, error) {
	open, err := s.ListOpenProjects(ctx, f)
	if err != nil {
		return nil, err
	}
	unlocks, err := s.unlocks.ListByContractor(ctx, contractorUID)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", database.Classify(err))
	}
	unlocked := lo.SliceToMap(unlocks, func(u *models.ProjectUnlock) (uuid.UUID, bool) {
		return u.ProjectID, true
	})
	return lo.Map(open, func(p *models.Project, _ int) Listing {
		return Listing{Project: p, Unlocked: unlocked[p.ID]}
	}), nil
}

func (s *service) ListHomeownerProjects(ctx context.Context, homeownerUID uuid.UUID) ([]*models.Project, error) {
	list, err := s.projects.ListByHomeowner(ctx, homeownerUID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", database.Classify(err))
	}
	if list == nil {
		list = []*models.Project{}
	}
	return list, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor models.Actor, id uuid.UUID, status string) (*models.Project, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.HomeownerUID != actor.UID {
		return nil, ErrForbidden
	}
	if !models.CanTransitionProject(p.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, p.Status, status)
	}
	updated, err := s.projects.UpdateStatus(ctx, id, p.Status, status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("update status: %w", database.Classify(err))
	}
	s.pub.Publish(ctx, realtime.ProjectTopic(id), "status", status)
	return updated, nil
}
