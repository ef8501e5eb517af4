package models

import (
	"time"

	"gorm.io/gorm"
)

// RefreshToken records one issued session-renewal credential. The opaque
// plaintext value is returned to the client exactly once; only its SHA256
// hash is stored, and lookups go by hash.
type RefreshToken struct {
	gorm.Model

	IdentityID uint   `gorm:"not null;index"`
	TokenHash  string `gorm:"uniqueIndex;not null"`

	ExpiresAt time.Time `gorm:"not null"`

	// RevokedAt is set on rotation, logout, logout-all, or password change.
	RevokedAt *time.Time

	IssuedIP  string
	UserAgent string

	// RotatedFromID points at the token this one replaced. Null for the
	// first token in a chain.
	RotatedFromID *uint `gorm:"index"`
}

// IsRevoked reports whether the token has been revoked.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsUsable reports whether the token can still mint access tokens.
func (t *RefreshToken) IsUsable(now time.Time) bool {
	return t.RevokedAt == nil && !now.After(t.ExpiresAt)
}
