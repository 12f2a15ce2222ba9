package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles.
const (
	RoleHomeowner  = "homeowner"
	RoleContractor = "contractor"
	RoleAdmin      = "admin"
)

// Contractor verification statuses.
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// User is a marketplace account. Contractor-only fields are zero for other roles.
type User struct {
	UID            uuid.UUID `json:"uid"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	FullName       string    `json:"fullName"`
	Phone          string    `json:"phone"`
	Role           string    `json:"role"`
	ProfilePicture string    `json:"profilePicture,omitempty"`

	CompanyName        string     `json:"companyName,omitempty"`
	ContactName        string     `json:"contactName,omitempty"`
	BusinessNumber     string     `json:"businessNumber,omitempty"`
	OBRNumber          string     `json:"obrNumber,omitempty"`
	VerificationStatus string     `json:"verificationStatus,omitempty"`
	VerifiedDate       *time.Time `json:"verifiedDate,omitempty"`
	AdminNotes         string     `json:"adminNotes,omitempty"`
	CreditBalance      int        `json:"creditBalance"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) IsContractor() bool { return u.Role == RoleContractor }

// IsApproved reports whether the user is a contractor cleared by an admin.
func (u *User) IsApproved() bool {
	return u.Role == RoleContractor && u.VerificationStatus == VerificationApproved
}

// DisplayName is the name shown to the other side of a conversation or bid.
func (u *User) DisplayName() string {
	if u.Role == RoleContractor && u.CompanyName != "" {
		return u.CompanyName
	}
	return u.FullName
}

// ValidRole reports whether role may be used for self-registration.
func ValidRole(role string) bool {
	return role == RoleHomeowner || role == RoleContractor
}

// DashboardRoute returns the landing page for a role.
func DashboardRoute(role string) string {
	switch role {
	case RoleHomeowner:
		return "/dashboard/homeowner"
	case RoleContractor:
		return "/dashboard/contractor"
	case RoleAdmin:
		return "/dashboard/admin"
	default:
		return "/login"
	}
}

// Actor is the authenticated caller of a domain operation.
type Actor struct {
	UID  uuid.UUID
	Role string
}

func (a Actor) Is(role string) bool { return a.Role == role }
