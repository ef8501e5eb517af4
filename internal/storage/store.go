package storage

import (
	"errors"
	"time"

	"github.com/kariyab/kariyab-backend/internal/models"
)

// Sentinel errors returned by Store implementations
var (
	ErrNotFound = errors.New("record not found")

	// ErrNoAttemptsLeft signals the conditional decrement found no
	// attempts remaining (the request is exhausted).
	ErrNoAttemptsLeft = errors.New("no attempts left")

	// ErrAlreadyUsed signals a conditional consume found the record already
	// spent (OTP used_at set, refresh token revoked_at set).
	ErrAlreadyUsed = errors.New("already used")

	// ErrDuplicate signals a unique-constraint violation.
	ErrDuplicate = errors.New("duplicate record")
)

// Store defines the interface for storage operations. Conditional updates
// (attempts decrement, token revocation, consume-once) are atomic at this
// layer so the engines stay correct under concurrent requests.
type Store interface {
	// Identity operations
	CreateIdentity(identity *models.Identity) (*models.Identity, error)
	GetIdentityByID(id uint) (*models.Identity, error)
	GetIdentityByPhone(phone string) (*models.Identity, error)
	UpdateIdentity(identity *models.Identity) error

	// OTP operations
	// WithPhoneLock serializes OTP issuance for one phone: fn runs while
	// the lock is held, so a cooldown check and the insert behind it
	// cannot interleave across concurrent requests.
	WithPhoneLock(phone string, fn func() error) error
	CreateOtpRequest(req *models.OtpRequest) (*models.OtpRequest, error)
	GetOtpRequestByRequestID(requestID string) (*models.OtpRequest, error)
	GetActiveOtpRequestByPhone(phone string) (*models.OtpRequest, error)
	// DecrementOtpAttempts atomically decrements attempts_left if still
	// positive and returns the remaining count; ErrNoAttemptsLeft otherwise.
	DecrementOtpAttempts(id uint) (remaining int, err error)
	// MarkOtpUsed sets used_at exactly once; ErrAlreadyUsed if set.
	MarkOtpUsed(id uint, usedAt time.Time, identityID *uint) error
	// LinkOtpIdentity records the identity a consumed request verified.
	LinkOtpIdentity(id uint, identityID uint) error
	DeleteExpiredOtpRequests(before time.Time) (int64, error)

	// Refresh token operations
	CreateRefreshToken(token *models.RefreshToken) (*models.RefreshToken, error)
	GetRefreshTokenByHash(tokenHash string) (*models.RefreshToken, error)
	// RevokeRefreshToken sets revoked_at if not already set. Returns
	// whether this call performed the revocation (false when the token
	// was already revoked).
	RevokeRefreshToken(id uint, revokedAt time.Time) (bool, error)
	// RotateRefreshToken atomically revokes the old token and persists its
	// successor. ErrAlreadyUsed when another rotation claimed the old
	// token first; in that case no successor is created.
	RotateRefreshToken(oldID uint, revokedAt time.Time, successor *models.RefreshToken) (*models.RefreshToken, error)
	RevokeAllRefreshTokensForIdentity(identityID uint, revokedAt time.Time) error
	DeleteExpiredRefreshTokens(before time.Time) (int64, error)

	// Job operations
	CreateJob(job *models.Job) (*models.Job, error)
	GetJobByJobID(jobID string) (*models.Job, error)
	SearchJobs(search *models.JobSearch) ([]*models.Job, error)
	UpdateJob(job *models.Job) error

	// Application operations
	CreateApplication(app *models.Application) (*models.Application, error)
	GetApplicationsByJob(jobID uint) ([]*models.Application, error)
	GetApplicationsBySeeker(seekerID uint) ([]*models.Application, error)
}
