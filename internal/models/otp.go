package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OTP purposes
const (
	OtpPurposeLogin    = "login"
	OtpPurposeRegister = "register"
)

// OtpRequest records one OTP issuance. Only the SHA256 hash of the code is
// stored; the plaintext exists in memory just long enough to hand to the SMS
// channel.
type OtpRequest struct {
	gorm.Model

	// RequestID is the opaque public handle returned to the client.
	RequestID string `gorm:"uniqueIndex;not null"`

	Phone    string `gorm:"not null;index"`
	Purpose  string `gorm:"not null"` // "login", "register"
	CodeHash string `gorm:"not null"`

	ExpiresAt         time.Time `gorm:"not null"`
	ResendAvailableAt time.Time `gorm:"not null"`

	// AttemptsLeft only ever decreases; at zero the request is dead
	// regardless of code correctness.
	AttemptsLeft int `gorm:"not null"`

	RequestIP string
	UserAgent string

	// UsedAt transitions null -> set exactly once.
	UsedAt *time.Time

	// IdentityID links to the identity the request ultimately verified.
	// Null during registration, since the identity may not exist yet.
	IdentityID *uint `gorm:"index"`
}

// BeforeCreate hook to assign the public request handle
func (o *OtpRequest) BeforeCreate(tx *gorm.DB) error {
	if o.RequestID == "" {
		o.RequestID = uuid.NewString()
	}
	return nil
}

// IsUsed reports whether the request was already consumed.
func (o *OtpRequest) IsUsed() bool {
	return o.UsedAt != nil
}

// IsExpired reports whether the request is past its expiry.
func (o *OtpRequest) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// IsExhausted reports whether all verification attempts are spent.
func (o *OtpRequest) IsExhausted() bool {
	return o.AttemptsLeft <= 0
}
