package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/renovo/backend/internal/config"
	"github.com/renovo/backend/internal/database"
	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/realtime"
)

var (
	// ErrDuplicateEmail is returned when registering with an email that already exists.
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
)

// ValidationError carries a readable description of rejected input.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

type HomeownerRegistration struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72,strong_password"`
	FullName string `json:"fullName" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"required,phone"`
}

type ContractorRegistration struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8,max=72,strong_password"`
	CompanyName    string `json:"companyName" validate:"required,max=150"`
	ContactName    string `json:"contactName" validate:"required,max=100"`
	Phone          string `json:"phone" validate:"required,phone"`
	BusinessNumber string `json:"businessNumber" validate:"required,business_number"`
	OBRNumber      string `json:"obrNumber" validate:"required,obr_number"`
}

// ProfileUpdate is a partial update; nil fields are left alone.
type ProfileUpdate struct {
	FullName       *string `json:"fullName" validate:"omitempty,min=1,max=100"`
	Phone          *string `json:"phone" validate:"omitempty,phone"`
	ProfilePicture *string `json:"profilePicture" validate:"omitempty,url"`
	CompanyName    *string `json:"companyName" validate:"omitempty,min=1,max=150"`
	ContactName    *string `json:"contactName" validate:"omitempty,min=1,max=100"`
}

// Profile is what /auth/me returns.
type Profile struct {
	*models.User
	DashboardRoute string `json:"dashboardRoute"`
}

type Service interface {
	RegisterHomeowner(ctx context.Context, req HomeownerRegistration) (*models.User, string, error)
	RegisterContractor(ctx context.Context, req ContractorRegistration) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error)
	Me(ctx context.Context, uid uuid.UUID) (*Profile, error)
	UpdateProfile(ctx context.Context, uid uuid.UUID, patch ProfileUpdate) (*models.User, error)
	CreateAdmin(ctx context.Context, email, password, fullName string) (*models.User, error)
}

type service struct {
	users    UserStore
	pub      realtime.Publisher
	validate *validator.Validate
	secret   []byte
	issuer   string
	ttl      time.Duration
	cost     int
	log      *slog.Logger
}

func NewService(users UserStore, pub realtime.Publisher, cfg config.AuthConfig, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &service{
		users:    users,
		pub:      pub,
		validate: NewValidator(),
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		ttl:      ttl,
		cost:     cost,
		log:      log,
	}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func (s *service) RegisterHomeowner(ctx context.Context, req HomeownerRegistration) (*models.User, string, error) {
	req.Email = normalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validate.Struct(req); err != nil {
		return nil, "", &ValidationError{Err: err}
	}
	u := &models.User{
		UID:      uuid.New(),
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     models.RoleHomeowner,
	}
	return s.register(ctx, u, req.Password)
}

func (s *service) RegisterContractor(ctx context.Context, req ContractorRegistration) (*models.User, string, error) {
	req.Email = normalizeEmail(req.Email)
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.ContactName = strings.TrimSpace(req.ContactName)
	if err := s.validate.Struct(req); err != nil {
		return nil, "", &ValidationError{Err: err}
	}
	u := &models.User{
		UID:                uuid.New(),
		Email:              req.Email,
		FullName:           req.ContactName,
		Phone:              req.Phone,
		Role:               models.RoleContractor,
		CompanyName:        req.CompanyName,
		ContactName:        req.ContactName,
		BusinessNumber:     strings.ToUpper(req.BusinessNumber),
		OBRNumber:          strings.ToUpper(req.OBRNumber),
		VerificationStatus: models.VerificationPending,
	}
	return s.register(ctx, u, req.Password)
}

func (s *service) register(ctx context.Context, u *models.User, password string) (*models.User, string, error) {
	if err := s.create(ctx, u, password); err != nil {
		return nil, "", err
	}
	token, err := s.issueToken(u.UID, u.Role)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("user registered", "uid", u.UID, "role", u.Role)
	return u, token, nil
}

func (s *service) create(ctx context.Context, u *models.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	if err := s.users.Create(ctx, u); err != nil {
		if database.IsDuplicate(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", database.Classify(err))
	}
	return nil
}

func (s *service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("load user: %w", database.Classify(err))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.issueToken(u.UID, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *service) issueToken(uid uuid.UUID, role string) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid.String(),
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *service) ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, c.Role, nil
}

func (s *service) Me(ctx context.Context, uid uuid.UUID) (*Profile, error) {
	u, err := s.load(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &Profile{User: u, DashboardRoute: models.DashboardRoute(u.Role)}, nil
}

func (s *service) UpdateProfile(ctx context.Context, uid uuid.UUID, patch ProfileUpdate) (*models.User, error) {
	if err := s.validate.Struct(patch); err != nil {
		return nil, &ValidationError{Err: err}
	}
	u, err := s.load(ctx, uid)
	if err != nil {
		return nil, err
	}
	if patch.FullName != nil {
		u.FullName = strings.TrimSpace(*patch.FullName)
	}
	if patch.Phone != nil {
		u.Phone = *patch.Phone
	}
	if patch.ProfilePicture != nil {
		u.ProfilePicture = *patch.ProfilePicture
	}
	if u.IsContractor() {
		if patch.CompanyName != nil {
			u.CompanyName = strings.TrimSpace(*patch.CompanyName)
		}
		if patch.ContactName != nil {
			u.ContactName = strings.TrimSpace(*patch.ContactName)
		}
	}
	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, fmt.Errorf("update profile: %w", database.Classify(err))
	}
	s.pub.Publish(ctx, realtime.UserTopic(uid), "profile", "")
	return u, nil
}

// CreateAdmin is reachable only from the operator CLI.
func (s *service) CreateAdmin(ctx context.Context, email, password, fullName string) (*models.User, error) {
	u := &models.User{
		UID:      uuid.New(),
		Email:    normalizeEmail(email),
		FullName: strings.TrimSpace(fullName),
		Role:     models.RoleAdmin,
	}
	if err := s.validate.Var(u.Email, "required,email"); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if len(password) < 8 || !isStrongPassword(password) {
		return nil, &ValidationError{Err: errors.New("password must be at least 8 characters with upper, lower and digit")}
	}
	if err := s.create(ctx, u, password); err != nil {
		return nil, err
	}
	s.log.Info("admin created", "uid", u.UID, "email", u.Email)
	return u, nil
}

func (s *service) load(ctx context.Context, uid uuid.UUID) (*models.User, error) {
	u, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", database.Classify(err))
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
