package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Identity lifecycle statuses
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

// Role tags granted to identities
const (
	RoleSeeker    = "seeker"
	RoleRecruiter = "recruiter"
	RoleAdmin     = "admin"
)

// Identity is the auth-only account record: one per phone number. Profile
// data for seekers and recruiters lives in their own tables and is keyed
// off this record.
type Identity struct {
	// gorm.Model gives us ID (uint), CreatedAt, UpdatedAt, DeletedAt
	gorm.Model

	Phone           string     `json:"phone" gorm:"uniqueIndex;not null"`
	PasswordHash    *string    `json:"-"` // nullable: OTP-only identities may never set one
	IsPhoneVerified bool       `json:"is_phone_verified" gorm:"default:false"`
	Status          string     `json:"status" gorm:"default:'active'"`
	Roles           string     `json:"roles"` // comma-separated role tags
	LastLoginAt     *time.Time `json:"last_login_at"`

	// PasswordVersion is embedded in every access token at mint time and
	// compared on each authenticated request. Bumping it invalidates all
	// outstanding access tokens without a revocation list.
	PasswordVersion int `json:"-" gorm:"default:0"`

	FailedLogins int        `json:"-" gorm:"default:0"`
	LockedUntil  *time.Time `json:"-"`
}

// BeforeCreate hook to normalize data and apply defaults
func (i *Identity) BeforeCreate(tx *gorm.DB) error {
	// Normalize phone number (ensure it starts with +98 if not already)
	if !strings.HasPrefix(i.Phone, "+") {
		i.Phone = "+98" + strings.TrimPrefix(i.Phone, "98")
	}

	if i.Status == "" {
		i.Status = StatusActive
	}
	if i.Roles == "" {
		i.Roles = RoleSeeker
	}

	return nil
}

// HasRole reports whether the identity carries the given role tag.
func (i *Identity) HasRole(role string) bool {
	for _, r := range strings.Split(i.Roles, ",") {
		if strings.TrimSpace(r) == role {
			return true
		}
	}
	return false
}

// GrantRole adds a role tag if not already present.
func (i *Identity) GrantRole(role string) {
	if i.HasRole(role) {
		return
	}
	if i.Roles == "" {
		i.Roles = role
		return
	}
	i.Roles = i.Roles + "," + role
}

// RoleList returns the role tags as a slice.
func (i *Identity) RoleList() []string {
	if i.Roles == "" {
		return nil
	}
	parts := strings.Split(i.Roles, ",")
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			roles = append(roles, trimmed)
		}
	}
	return roles
}

// IsLocked reports whether the identity is under a failed-login lockout.
func (i *Identity) IsLocked(now time.Time) bool {
	return i.LockedUntil != nil && now.Before(*i.LockedUntil)
}

// CanAuthenticate reports whether the identity may start a new session.
func (i *Identity) CanAuthenticate() bool {
	return i.Status == StatusActive
}

// IdentitySummary is the user object returned to clients after auth flows.
type IdentitySummary struct {
	ID              uint       `json:"id"`
	Phone           string     `json:"phone"`
	IsPhoneVerified bool       `json:"is_phone_verified"`
	Status          string     `json:"status"`
	Roles           []string   `json:"roles"`
	LastLoginAt     *time.Time `json:"last_login_at"`
}

// Summary builds the client-facing view of the identity.
func (i *Identity) Summary() *IdentitySummary {
	return &IdentitySummary{
		ID:              i.ID,
		Phone:           i.Phone,
		IsPhoneVerified: i.IsPhoneVerified,
		Status:          i.Status,
		Roles:           i.RoleList(),
		LastLoginAt:     i.LastLoginAt,
	}
}
