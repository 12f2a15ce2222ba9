package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/renovo/backend/internal/models"
)

// UserStore is the slice of the user repository that identity needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, uid uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, u *models.User) error
}
