package bids

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/renovo/backend/internal/database"
	"github.com/renovo/backend/internal/metrics"
	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/realtime"
)

var (
	ErrProjectLocked     = errors.New("project must be unlocked before bidding")
	ErrProjectNotFound   = errors.New("project not found")
	ErrProjectNotOpen    = errors.New("project is not accepting bids")
	ErrBidNotFound       = errors.New("bid not found")
	ErrDuplicateBid      = errors.New("bid already submitted for this project")
	ErrInvalidTransition = errors.New("invalid bid status transition")
	ErrForbidden         = errors.New("forbidden")
)

// ValidationError carries a readable description of rejected input.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

type Submission struct {
	ItemizedCosts     []models.BidItem `json:"itemizedCosts" validate:"required,min=1,max=50,dive"`
	EstimatedTimeline string           `json:"estimatedTimeline" validate:"required,max=100"`
	Notes             string           `json:"notes" validate:"max=2000"`
}

type BidStore interface {
	Create(ctx context.Context, b *models.Bid) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	Decide(ctx context.Context, id uuid.UUID, status string, at time.Time) (*models.Bid, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Bid, error)
	ListByContractor(ctx context.Context, contractorUID uuid.UUID) ([]*models.Bid, error)
	ListByHomeowner(ctx context.Context, homeownerUID uuid.UUID) ([]*models.Bid, error)
}

type ProjectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

type UserStore interface {
	GetByID(ctx context.Context, uid uuid.UUID) (*models.User, error)
}

type UnlockChecker interface {
	Exists(ctx context.Context, contractorUID, projectID uuid.UUID) (bool, error)
}

type Service interface {
	SubmitBid(ctx context.Context, actor models.Actor, projectID uuid.UUID, sub Submission) (*models.Bid, error)
	UpdateBidStatus(ctx context.Context, actor models.Actor, bidID uuid.UUID, status string) (*models.Bid, error)
	GetBidsForProject(ctx context.Context, actor models.Actor, projectID uuid.UUID) ([]*models.Bid, error)
	GetContractorBids(ctx context.Context, contractorUID uuid.UUID) ([]*models.Bid, error)
	GetHomeownerBids(ctx context.Context, homeownerUID uuid.UUID) ([]*models.Bid, error)
}

type service struct {
	bids     BidStore
	projects ProjectStore
	users    UserStore
	unlocks  UnlockChecker
	validate *validator.Validate
	pub      realtime.Publisher
	now      func() time.Time
	log      *slog.Logger
}

func NewService(bids BidStore, projects ProjectStore, users UserStore, unlocks UnlockChecker, pub realtime.Publisher, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return &service{
		bids:     bids,
		projects: projects,
		users:    users,
		unlocks:  unlocks,
		validate: v,
		pub:      pub,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

var _ Service = (*service)(nil)

// SubmitBid records a contractor's quote. The total is always recomputed
// from the line items.
func (s *service) SubmitBid(ctx context.Context, actor models.Actor, projectID uuid.UUID, sub Submission) (*models.Bid, error) {
	if !actor.Is(models.RoleContractor) {
		return nil, ErrForbidden
	}
	for i := range sub.ItemizedCosts {
		sub.ItemizedCosts[i].Description = strings.TrimSpace(sub.ItemizedCosts[i].Description)
	}
	sub.EstimatedTimeline = strings.TrimSpace(sub.EstimatedTimeline)
	if err := s.validate.Struct(sub); err != nil {
		return nil, &ValidationError{Err: err}
	}
	total, ok := models.BidTotal(sub.ItemizedCosts)
	if !ok {
		return nil, &ValidationError{Err: fmt.Errorf("itemizedCosts: total exceeds %d", models.MaxBidTotal)}
	}

	unlocked, err := s.unlocks.Exists(ctx, actor.UID, projectID)
	if err != nil {
		return nil, fmt.Errorf("probe unlock: %w", database.Classify(err))
	}
	if !unlocked {
		return nil, ErrProjectLocked
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", database.Classify(err))
	}
	if project.Status != models.ProjectStatusOpen {
		return nil, ErrProjectNotOpen
	}

	contractor, err := s.users.GetByID(ctx, actor.UID)
	if err != nil {
		return nil, fmt.Errorf("load contractor: %w", database.Classify(err))
	}

	b := &models.Bid{
		ID:                uuid.New(),
		ContractorUID:     actor.UID,
		HomeownerUID:      project.HomeownerUID,
		ProjectID:         projectID,
		ContractorName:    contractor.DisplayName(),
		ProjectCategory:   project.CategoryName,
		ItemizedCosts:     sub.ItemizedCosts,
		TotalCost:         total,
		EstimatedTimeline: sub.EstimatedTimeline,
		Notes:             sub.Notes,
		Status:            models.BidStatusSubmitted,
	}
	if err := s.bids.Create(ctx, b); err != nil {
		if database.IsDuplicate(err) {
			return nil, ErrDuplicateBid
		}
		return nil, fmt.Errorf("create bid: %w", database.Classify(err))
	}

	s.log.Info("bid submitted", "bid", b.ID, "project", projectID, "contractor", actor.UID, "total", b.TotalCost)
	s.pub.Publish(ctx, realtime.BidsTopic(projectID), "submitted", b.ID.String())
	return b, nil
}

// UpdateBidStatus lets the project's homeowner accept or reject a submitted
// bid. Decided bids never change again.
func (s *service) UpdateBidStatus(ctx context.Context, actor models.Actor, bidID uuid.UUID, status string) (b *models.Bid, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "rejected"
		}
		metrics.ObserveBidDecision(status, result)
	}()

	if status != models.BidStatusAccepted && status != models.BidStatusRejected {
		return nil, fmt.Errorf("%w: target %q", ErrInvalidTransition, status)
	}
	current, err := s.bids.GetByID(ctx, bidID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load bid: %w", database.Classify(err))
	}
	if current.HomeownerUID != actor.UID {
		return nil, ErrForbidden
	}
	if !models.CanTransitionBid(current.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, status)
	}

	b, err = s.bids.Decide(ctx, bidID, status, s.now())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: bid decided concurrently", ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("decide bid: %w", database.Classify(err))
	}

	s.log.Info("bid decided", "bid", bidID, "status", status, "homeowner", actor.UID)
	s.pub.Publish(ctx, realtime.BidsTopic(b.ProjectID), "status", b.ID.String())
	return b, nil
}

func (s *service) GetBidsForProject(ctx context.Context, actor models.Actor, projectID uuid.UUID) ([]*models.Bid, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", database.Classify(err))
	}
	if project.HomeownerUID != actor.UID && !actor.Is(models.RoleAdmin) {
		return nil, ErrForbidden
	}
	return s.list(s.bids.ListByProject(ctx, projectID))
}

func (s *service) GetContractorBids(ctx context.Context, contractorUID uuid.UUID) ([]*models.Bid, error) {
	return s.list(s.bids.ListByContractor(ctx, contractorUID))
}

func (s *service) GetHomeownerBids(ctx context.Context, homeownerUID uuid.UUID) ([]*models.Bid, error) {
	return s.list(s.bids.ListByHomeowner(ctx, homeownerUID))
}

func (s *service) list(list []*models.Bid, err error) ([]*models.Bid, error) {
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", database.Classify(err))
	}
	if list == nil {
		list = []*models.Bid{}
	}
	return list, nil
}
