package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/renovo/backend/internal/database"
	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/realtime"
)

var (
	ErrForbidden     = errors.New("admin role required")
	ErrInvalidStatus = errors.New("verification status must be approved or rejected")
	ErrInvalidFilter = errors.New("unknown filter value")
	ErrNotFound      = errors.New("contractor not found")
)

type UserStore interface {
	List(ctx context.Context, role string) ([]*models.User, error)
	ListContractors(ctx context.Context, status string) ([]*models.User, error)
	SetVerification(ctx context.Context, uid uuid.UUID, status string, verifiedDate *time.Time, notes string) (*models.User, error)
}

// Enqueuer schedules a ledger audit for a newly approved contractor.
type Enqueuer interface {
	EnqueueReconcile(ctx context.Context, contractorUID uuid.UUID) error
}

type Service interface {
	ListContractors(ctx context.Context, actor models.Actor, status string) ([]*models.User, error)
	ListUsers(ctx context.Context, actor models.Actor, role string) ([]*models.User, error)
	SetVerification(ctx context.Context, actor models.Actor, contractorUID uuid.UUID, status, notes string) (*models.User, error)
}

type service struct {
	users UserStore
	jobs  Enqueuer
	pub   realtime.Publisher
	now   func() time.Time
	log   *slog.Logger
}

func NewService(users UserStore, jobs Enqueuer, pub realtime.Publisher, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	return &service{users: users, jobs: jobs, pub: pub, now: func() time.Time { return time.Now().UTC() }, log: log}
}

var _ Service = (*service)(nil)

func (s *service) ListContractors(ctx context.Context, actor models.Actor, status string) ([]*models.User, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, ErrForbidden
	}
	switch status {
	case "", models.VerificationPending, models.VerificationApproved, models.VerificationRejected:
	default:
		return nil, fmt.Errorf("%w: status %q", ErrInvalidFilter, status)
	}
	list, err := s.users.ListContractors(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list contractors: %w", database.Classify(err))
	}
	return nonNil(list), nil
}

func (s *service) ListUsers(ctx context.Context, actor models.Actor, role string) ([]*models.User, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, ErrForbidden
	}
	switch role {
	case "", models.RoleHomeowner, models.RoleContractor, models.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: role %q", ErrInvalidFilter, role)
	}
	list, err := s.users.List(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", database.Classify(err))
	}
	return nonNil(list), nil
}

// SetVerification approves or rejects a contractor. Approval stamps the
// verified date; rejection clears it. Nobody is moved back to pending.
func (s *service) SetVerification(ctx context.Context, actor models.Actor, contractorUID uuid.UUID, status, notes string) (*models.User, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, ErrForbidden
	}
	var verified *time.Time
	switch status {
	case models.VerificationApproved:
		now := s.now()
		verified = &now
	case models.VerificationRejected:
	default:
		return nil, ErrInvalidStatus
	}

	u, err := s.users.SetVerification(ctx, contractorUID, status, verified, strings.TrimSpace(notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set verification: %w", database.Classify(err))
	}

	s.log.Info("contractor verification set", "contractor", contractorUID, "status", status, "admin", actor.UID)
	s.pub.Publish(ctx, realtime.UserTopic(contractorUID), "verification", status)

	if status == models.VerificationApproved && s.jobs != nil {
		if err := s.jobs.EnqueueReconcile(ctx, contractorUID); err != nil {
			s.log.Warn("could not schedule ledger audit", "contractor", contractorUID, "error", err)
		}
	}
	return u, nil
}

func nonNil(list []*models.User) []*models.User {
	if list == nil {
		return []*models.User{}
	}
	return list
}
