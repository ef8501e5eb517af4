package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kariyab/kariyab-backend/internal/models"
)

// DatabaseStore implements Store on top of GORM/PostgreSQL
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database-backed storage
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// Identity operations

func (s *DatabaseStore) CreateIdentity(identity *models.Identity) (*models.Identity, error) {
	if err := s.db.Create(identity).Error; err != nil {
		return nil, translate(err)
	}
	return identity, nil
}

func (s *DatabaseStore) GetIdentityByID(id uint) (*models.Identity, error) {
	var identity models.Identity
	if err := s.db.First(&identity, id).Error; err != nil {
		return nil, translate(err)
	}
	return &identity, nil
}

func (s *DatabaseStore) GetIdentityByPhone(phone string) (*models.Identity, error) {
	var identity models.Identity
	if err := s.db.Where("phone = ?", phone).First(&identity).Error; err != nil {
		return nil, translate(err)
	}
	return &identity, nil
}

func (s *DatabaseStore) UpdateIdentity(identity *models.Identity) error {
	return translate(s.db.Save(identity).Error)
}

// OTP operations

// WithPhoneLock takes a transaction-scoped advisory lock keyed on the phone.
// Concurrent issuers for the same phone queue here, so the cooldown check
// and the insert behind it never interleave.
func (s *DatabaseStore) WithPhoneLock(phone string, fn func() error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", phone).Error; err != nil {
			return err
		}
		return fn()
	})
}

func (s *DatabaseStore) CreateOtpRequest(req *models.OtpRequest) (*models.OtpRequest, error) {
	if err := s.db.Create(req).Error; err != nil {
		return nil, translate(err)
	}
	return req, nil
}

func (s *DatabaseStore) GetOtpRequestByRequestID(requestID string) (*models.OtpRequest, error) {
	var req models.OtpRequest
	if err := s.db.Where("request_id = ?", requestID).First(&req).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (s *DatabaseStore) GetActiveOtpRequestByPhone(phone string) (*models.OtpRequest, error) {
	var req models.OtpRequest
	err := s.db.
		Where("phone = ? AND used_at IS NULL", phone).
		Order("created_at DESC").
		First(&req).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// DecrementOtpAttempts uses a conditional UPDATE so two concurrent verify
// calls can never push attempts_left below zero.
func (s *DatabaseStore) DecrementOtpAttempts(id uint) (int, error) {
	var remaining int
	res := s.db.Raw(`
		UPDATE otp_requests
		SET attempts_left = attempts_left - 1, updated_at = NOW()
		WHERE id = ? AND attempts_left > 0
		RETURNING attempts_left
	`, id).Scan(&remaining)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNoAttemptsLeft
	}
	return remaining, nil
}

// MarkOtpUsed sets used_at only when it is still NULL; the used_at
// transition happens at most once even under concurrent verification.
func (s *DatabaseStore) MarkOtpUsed(id uint, usedAt time.Time, identityID *uint) error {
	res := s.db.Model(&models.OtpRequest{}).
		Where("id = ? AND used_at IS NULL", id).
		Updates(map[string]interface{}{
			"used_at":     usedAt,
			"identity_id": identityID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyUsed
	}
	return nil
}

func (s *DatabaseStore) LinkOtpIdentity(id uint, identityID uint) error {
	return s.db.Model(&models.OtpRequest{}).
		Where("id = ?", id).
		Update("identity_id", identityID).Error
}

func (s *DatabaseStore) DeleteExpiredOtpRequests(before time.Time) (int64, error) {
	res := s.db.Unscoped().
		Where("expires_at < ?", before).
		Delete(&models.OtpRequest{})
	return res.RowsAffected, res.Error
}

// Refresh token operations

func (s *DatabaseStore) CreateRefreshToken(token *models.RefreshToken) (*models.RefreshToken, error) {
	if err := s.db.Create(token).Error; err != nil {
		return nil, translate(err)
	}
	return token, nil
}

func (s *DatabaseStore) GetRefreshTokenByHash(tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := s.db.Where("token_hash = ?", tokenHash).First(&token).Error; err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

// RevokeRefreshToken is conditional on revoked_at IS NULL so only one of
// two concurrent rotations can claim the token.
func (s *DatabaseStore) RevokeRefreshToken(id uint, revokedAt time.Time) (bool, error) {
	res := s.db.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", revokedAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RotateRefreshToken revokes the old token and persists its successor in one
// transaction: a failed insert rolls the revocation back, and a race loser
// observes the token already revoked.
func (s *DatabaseStore) RotateRefreshToken(oldID uint, revokedAt time.Time, successor *models.RefreshToken) (*models.RefreshToken, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", oldID).
			Update("revoked_at", revokedAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyUsed
		}
		return tx.Create(successor).Error
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyUsed) {
			return nil, ErrAlreadyUsed
		}
		return nil, translate(err)
	}
	return successor, nil
}

func (s *DatabaseStore) RevokeAllRefreshTokensForIdentity(identityID uint, revokedAt time.Time) error {
	return s.db.Model(&models.RefreshToken{}).
		Where("identity_id = ? AND revoked_at IS NULL", identityID).
		Update("revoked_at", revokedAt).Error
}

func (s *DatabaseStore) DeleteExpiredRefreshTokens(before time.Time) (int64, error) {
	res := s.db.Unscoped().
		Where("expires_at < ?", before).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

// Job operations

func (s *DatabaseStore) CreateJob(job *models.Job) (*models.Job, error) {
	if err := s.db.Create(job).Error; err != nil {
		return nil, translate(err)
	}
	return job, nil
}

func (s *DatabaseStore) GetJobByJobID(jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, translate(err)
	}
	return &job, nil
}

func (s *DatabaseStore) SearchJobs(search *models.JobSearch) ([]*models.Job, error) {
	query := s.db.Where("status = ?", models.JobStatusOpen)
	if search != nil && search.City != "" {
		query = query.Where("LOWER(city) = LOWER(?)", search.City)
	}
	if search != nil && search.Keyword != "" {
		pattern := "%" + search.Keyword + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	}

	var jobs []*models.Job
	if err := query.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *DatabaseStore) UpdateJob(job *models.Job) error {
	return translate(s.db.Save(job).Error)
}

// Application operations

func (s *DatabaseStore) CreateApplication(app *models.Application) (*models.Application, error) {
	if err := s.db.Create(app).Error; err != nil {
		return nil, translate(err)
	}
	return app, nil
}

func (s *DatabaseStore) GetApplicationsByJob(jobID uint) ([]*models.Application, error) {
	var apps []*models.Application
	if err := s.db.Where("job_id = ?", jobID).Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (s *DatabaseStore) GetApplicationsBySeeker(seekerID uint) ([]*models.Application, error) {
	var apps []*models.Application
	if err := s.db.Where("seeker_id = ?", seekerID).Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}
