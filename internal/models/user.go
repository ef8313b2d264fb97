package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the marketplace.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleSeller Role = "seller"
	RoleBuyer  Role = "buyer"
)

// PlanType is the seller's subscription plan.
type PlanType string

const (
	PlanFree    PlanType = "free"
	PlanStarter PlanType = "starter"
	PlanPro     PlanType = "pro"
	PlanPremium PlanType = "premium"
)

// User represents a marketplace user. Sellers carry a subscription plan
// that gates live selling.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Password    string    `json:"-"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	Plan        PlanType  `json:"plan"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	Plan        PlanType  `json:"plan"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Plan:        u.Plan,
		CreatedAt:   u.CreatedAt,
	}
}
