package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kariyab/kariyab-backend/internal/models"
)

// MemoryStore holds all data in memory for testing
type MemoryStore struct {
	identities map[uint]*models.Identity
	otps       map[uint]*models.OtpRequest
	refresh    map[uint]*models.RefreshToken
	jobs       map[uint]*models.Job
	apps       map[uint]*models.Application

	// Mutexes for thread safety
	identityMu sync.RWMutex
	otpMu      sync.Mutex
	refreshMu  sync.Mutex
	jobMu      sync.RWMutex

	// Per-phone issuance locks
	phoneLocks  map[string]*sync.Mutex
	phoneLockMu sync.Mutex

	// Counters for ID generation
	identityCounter uint
	otpCounter      uint
	refreshCounter  uint
	jobCounter      uint
	appCounter      uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[uint]*models.Identity),
		otps:       make(map[uint]*models.OtpRequest),
		refresh:    make(map[uint]*models.RefreshToken),
		jobs:       make(map[uint]*models.Job),
		apps:       make(map[uint]*models.Application),
		phoneLocks: make(map[string]*sync.Mutex),
	}
}

// Identity operations

func (m *MemoryStore) CreateIdentity(identity *models.Identity) (*models.Identity, error) {
	m.identityMu.Lock()
	defer m.identityMu.Unlock()

	if !strings.HasPrefix(identity.Phone, "+") {
		identity.Phone = "+98" + strings.TrimPrefix(identity.Phone, "98")
	}
	for _, existing := range m.identities {
		if existing.Phone == identity.Phone {
			return nil, ErrDuplicate
		}
	}

	m.identityCounter++
	identity.ID = m.identityCounter
	identity.CreatedAt = time.Now()
	identity.UpdatedAt = time.Now()
	if identity.Status == "" {
		identity.Status = models.StatusActive
	}
	if identity.Roles == "" {
		identity.Roles = models.RoleSeeker
	}

	copied := *identity
	m.identities[identity.ID] = &copied
	return identity, nil
}

func (m *MemoryStore) GetIdentityByID(id uint) (*models.Identity, error) {
	m.identityMu.RLock()
	defer m.identityMu.RUnlock()

	identity, exists := m.identities[id]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *identity
	return &copied, nil
}

func (m *MemoryStore) GetIdentityByPhone(phone string) (*models.Identity, error) {
	m.identityMu.RLock()
	defer m.identityMu.RUnlock()

	for _, identity := range m.identities {
		if identity.Phone == phone {
			copied := *identity
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateIdentity(identity *models.Identity) error {
	m.identityMu.Lock()
	defer m.identityMu.Unlock()

	if _, exists := m.identities[identity.ID]; !exists {
		return ErrNotFound
	}
	identity.UpdatedAt = time.Now()
	copied := *identity
	m.identities[identity.ID] = &copied
	return nil
}

// OTP operations

func (m *MemoryStore) WithPhoneLock(phone string, fn func() error) error {
	m.phoneLockMu.Lock()
	lock, ok := m.phoneLocks[phone]
	if !ok {
		lock = &sync.Mutex{}
		m.phoneLocks[phone] = lock
	}
	m.phoneLockMu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn()
}

func (m *MemoryStore) CreateOtpRequest(req *models.OtpRequest) (*models.OtpRequest, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	m.otpCounter++
	req.ID = m.otpCounter
	req.CreatedAt = time.Now()
	req.UpdatedAt = time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	copied := *req
	m.otps[req.ID] = &copied
	return req, nil
}

func (m *MemoryStore) GetOtpRequestByRequestID(requestID string) (*models.OtpRequest, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	for _, req := range m.otps {
		if req.RequestID == requestID {
			copied := *req
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetActiveOtpRequestByPhone(phone string) (*models.OtpRequest, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	var latest *models.OtpRequest
	for _, req := range m.otps {
		if req.Phone != phone || req.UsedAt != nil {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (m *MemoryStore) DecrementOtpAttempts(id uint) (int, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	req, exists := m.otps[id]
	if !exists {
		return 0, ErrNotFound
	}
	if req.AttemptsLeft <= 0 {
		return 0, ErrNoAttemptsLeft
	}
	req.AttemptsLeft--
	req.UpdatedAt = time.Now()
	return req.AttemptsLeft, nil
}

func (m *MemoryStore) MarkOtpUsed(id uint, usedAt time.Time, identityID *uint) error {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	req, exists := m.otps[id]
	if !exists {
		return ErrNotFound
	}
	if req.UsedAt != nil {
		return ErrAlreadyUsed
	}
	req.UsedAt = &usedAt
	req.IdentityID = identityID
	req.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) LinkOtpIdentity(id uint, identityID uint) error {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	req, exists := m.otps[id]
	if !exists {
		return ErrNotFound
	}
	req.IdentityID = &identityID
	req.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) DeleteExpiredOtpRequests(before time.Time) (int64, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	var deleted int64
	for id, req := range m.otps {
		if req.ExpiresAt.Before(before) {
			delete(m.otps, id)
			deleted++
		}
	}
	return deleted, nil
}

// Refresh token operations

func (m *MemoryStore) CreateRefreshToken(token *models.RefreshToken) (*models.RefreshToken, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.refreshCounter++
	token.ID = m.refreshCounter
	token.CreatedAt = time.Now()
	token.UpdatedAt = time.Now()

	copied := *token
	m.refresh[token.ID] = &copied
	return token, nil
}

func (m *MemoryStore) GetRefreshTokenByHash(tokenHash string) (*models.RefreshToken, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	for _, token := range m.refresh {
		if token.TokenHash == tokenHash {
			copied := *token
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) RevokeRefreshToken(id uint, revokedAt time.Time) (bool, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	token, exists := m.refresh[id]
	if !exists {
		return false, ErrNotFound
	}
	if token.RevokedAt != nil {
		return false, nil
	}
	token.RevokedAt = &revokedAt
	token.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) RotateRefreshToken(oldID uint, revokedAt time.Time, successor *models.RefreshToken) (*models.RefreshToken, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	old, exists := m.refresh[oldID]
	if !exists {
		return nil, ErrNotFound
	}
	if old.RevokedAt != nil {
		return nil, ErrAlreadyUsed
	}
	old.RevokedAt = &revokedAt
	old.UpdatedAt = time.Now()

	m.refreshCounter++
	successor.ID = m.refreshCounter
	successor.CreatedAt = time.Now()
	successor.UpdatedAt = time.Now()

	copied := *successor
	m.refresh[successor.ID] = &copied
	return successor, nil
}

func (m *MemoryStore) RevokeAllRefreshTokensForIdentity(identityID uint, revokedAt time.Time) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	for _, token := range m.refresh {
		if token.IdentityID == identityID && token.RevokedAt == nil {
			t := revokedAt
			token.RevokedAt = &t
			token.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (m *MemoryStore) DeleteExpiredRefreshTokens(before time.Time) (int64, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	var deleted int64
	for id, token := range m.refresh {
		if token.ExpiresAt.Before(before) {
			delete(m.refresh, id)
			deleted++
		}
	}
	return deleted, nil
}

// Job operations

func (m *MemoryStore) CreateJob(job *models.Job) (*models.Job, error) {
	m.jobMu.Lock()
	defer m.jobMu.Unlock()

	m.jobCounter++
	job.ID = m.jobCounter
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobStatusOpen
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = time.Now()

	copied := *job
	m.jobs[job.ID] = &copied
	return job, nil
}

func (m *MemoryStore) GetJobByJobID(jobID string) (*models.Job, error) {
	m.jobMu.RLock()
	defer m.jobMu.RUnlock()

	for _, job := range m.jobs {
		if job.JobID == jobID {
			copied := *job
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) SearchJobs(search *models.JobSearch) ([]*models.Job, error) {
	m.jobMu.RLock()
	defer m.jobMu.RUnlock()

	var results []*models.Job
	for _, job := range m.jobs {
		if job.Status != models.JobStatusOpen {
			continue
		}
		if search != nil && search.City != "" && !strings.EqualFold(job.City, search.City) {
			continue
		}
		if search != nil && search.Keyword != "" {
			keyword := strings.ToLower(search.Keyword)
			if !strings.Contains(strings.ToLower(job.Title), keyword) &&
				!strings.Contains(strings.ToLower(job.Description), keyword) {
				continue
			}
		}
		copied := *job
		results = append(results, &copied)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

func (m *MemoryStore) UpdateJob(job *models.Job) error {
	m.jobMu.Lock()
	defer m.jobMu.Unlock()

	if _, exists := m.jobs[job.ID]; !exists {
		return ErrNotFound
	}
	job.UpdatedAt = time.Now()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

// Application operations

func (m *MemoryStore) CreateApplication(app *models.Application) (*models.Application, error) {
	m.jobMu.Lock()
	defer m.jobMu.Unlock()

	for _, existing := range m.apps {
		if existing.JobID == app.JobID && existing.SeekerID == app.SeekerID {
			return nil, ErrDuplicate
		}
	}

	m.appCounter++
	app.ID = m.appCounter
	if app.Status == "" {
		app.Status = models.ApplicationSubmitted
	}
	app.CreatedAt = time.Now()
	app.UpdatedAt = time.Now()

	copied := *app
	m.apps[app.ID] = &copied
	return app, nil
}

func (m *MemoryStore) GetApplicationsByJob(jobID uint) ([]*models.Application, error) {
	m.jobMu.RLock()
	defer m.jobMu.RUnlock()

	var results []*models.Application
	for _, app := range m.apps {
		if app.JobID == jobID {
			copied := *app
			results = append(results, &copied)
		}
	}
	return results, nil
}

func (m *MemoryStore) GetApplicationsBySeeker(seekerID uint) ([]*models.Application, error) {
	m.jobMu.RLock()
	defer m.jobMu.RUnlock()

	var results []*models.Application
	for _, app := range m.apps {
		if app.SeekerID == seekerID {
			copied := *app
			results = append(results, &copied)
		}
	}
	return results, nil
}
