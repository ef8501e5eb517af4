package services

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kariyab/kariyab-backend/internal/apperrors"
	"github.com/kariyab/kariyab-backend/internal/models"
	"github.com/kariyab/kariyab-backend/internal/storage"
)

// Failed password logins before a temporary lockout
const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
)

// AuthService composes the OTP engine, token engine, and credential store
// into the user-facing auth flows.
type AuthService struct {
	store  storage.Store
	otp    *OTPService
	tokens *TokenService
	now    func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(store storage.Store, otp *OTPService, tokens *TokenService) *AuthService {
	return &AuthService{
		store:  store,
		otp:    otp,
		tokens: tokens,
		now:    time.Now,
	}
}

// AuthSession is the response payload for flows that establish a session.
type AuthSession struct {
	User         *models.IdentitySummary `json:"user"`
	AccessToken  string                  `json:"access_token"`
	RefreshToken string                  `json:"refresh_token"`
}

// TokenPair is the response payload for the refresh flow.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RequestOtp issues an OTP for login or registration.
func (s *AuthService) RequestOtp(phone, purpose, ip, userAgent string) (*OtpIssueResult, error) {
	return s.otp.CreateOtpRequest(phone, purpose, ip, userAgent)
}

// OtpLogin verifies the OTP and establishes a session, creating the
// identity on first contact. The phone is marked verified either way.
func (s *AuthService) OtpLogin(requestID, code, ip, userAgent string) (*AuthSession, error) {
	verification, err := s.otp.VerifyOtp(requestID, code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	identity, err := s.store.GetIdentityByPhone(verification.Phone)
	if errors.Is(err, storage.ErrNotFound) {
		identity, err = s.store.CreateIdentity(&models.Identity{
			Phone:           verification.Phone,
			IsPhoneVerified: true,
			LastLoginAt:     &now,
		})
		if err != nil {
			return nil, apperrors.Internal("failed to create identity")
		}
	} else if err != nil {
		return nil, apperrors.Internal("failed to load identity")
	} else {
		if !identity.CanAuthenticate() {
			return nil, apperrors.Unauthorized("ACCOUNT_INACTIVE", "account is not active")
		}
		identity.IsPhoneVerified = true
		identity.LastLoginAt = &now
		identity.FailedLogins = 0
		identity.LockedUntil = nil
		if err := s.store.UpdateIdentity(identity); err != nil {
			return nil, apperrors.Internal("failed to update identity")
		}
	}

	s.otp.LinkOtpToIdentity(requestID, identity.ID)

	return s.establishSession(identity, ip, userAgent)
}

// PasswordLogin authenticates with phone and password. Missing identity
// and wrong password collapse into one generic failure so the endpoint
// cannot be used to probe which numbers are registered.
func (s *AuthService) PasswordLogin(phone, password, ip, userAgent string) (*AuthSession, error) {
	identity, err := s.store.GetIdentityByPhone(phone)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.Unauthorized("INVALID_CREDENTIALS", "invalid phone or password")
		}
		return nil, apperrors.Internal("failed to load identity")
	}

	now := s.now()
	if identity.IsLocked(now) {
		return nil, apperrors.Unauthorized("ACCOUNT_LOCKED", "too many failed attempts, try again later")
	}
	if !identity.CanAuthenticate() {
		return nil, apperrors.Unauthorized("ACCOUNT_INACTIVE", "account is not active")
	}

	// Account exists but never set a password: distinct operational
	// conflict that steers the client to the OTP flow.
	if identity.PasswordHash == nil {
		return nil, apperrors.Conflict("PASSWORD_NOT_SET", "no password set for this account, use OTP login")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*identity.PasswordHash), []byte(password)); err != nil {
		identity.FailedLogins++
		if identity.FailedLogins >= maxFailedLogins {
			until := now.Add(lockoutDuration)
			identity.LockedUntil = &until
			identity.FailedLogins = 0
		}
		if err := s.store.UpdateIdentity(identity); err != nil {
			return nil, apperrors.Internal("failed to update identity")
		}
		return nil, apperrors.Unauthorized("INVALID_CREDENTIALS", "invalid phone or password")
	}

	identity.FailedLogins = 0
	identity.LockedUntil = nil
	identity.LastLoginAt = &now
	if err := s.store.UpdateIdentity(identity); err != nil {
		return nil, apperrors.Internal("failed to update identity")
	}

	return s.establishSession(identity, ip, userAgent)
}

// SetPassword sets a new password for an authenticated identity, bumps the
// password version (retiring every outstanding access token), and revokes
// all refresh tokens so every device has to log in again.
func (s *AuthService) SetPassword(identity *models.Identity, newPassword string) error {
	if len(newPassword) < 8 {
		return apperrors.Validation("PASSWORD_TOO_SHORT", "password must be at least 8 characters")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Internal("failed to hash password")
	}

	hash := string(hashed)
	identity.PasswordHash = &hash
	identity.PasswordVersion++
	if err := s.store.UpdateIdentity(identity); err != nil {
		return apperrors.Internal("failed to update identity")
	}

	return s.tokens.RevokeAllForIdentity(identity.ID)
}

// Refresh rotates the presented refresh token and mints a new access token
// from the identity's current state.
func (s *AuthService) Refresh(refreshToken, ip, userAgent string) (*TokenPair, error) {
	record, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	identity, err := s.store.GetIdentityByID(record.IdentityID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.Unauthorized("IDENTITY_NOT_FOUND", "account no longer exists")
		}
		return nil, apperrors.Internal("failed to load identity")
	}
	if !identity.CanAuthenticate() {
		return nil, apperrors.Unauthorized("ACCOUNT_INACTIVE", "account is not active")
	}

	newRefresh, err := s.tokens.RotateRefreshToken(refreshToken, identity, ip, userAgent)
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.GenerateAccessToken(identity.ID, identity.Phone, identity.PasswordVersion)
	if err != nil {
		return nil, apperrors.Internal("failed to mint access token")
	}

	return &TokenPair{AccessToken: access, RefreshToken: newRefresh}, nil
}

// Logout revokes exactly the presented refresh token. Idempotent.
func (s *AuthService) Logout(refreshToken string) error {
	return s.tokens.RevokeRefreshToken(refreshToken)
}

// LogoutAll revokes every refresh token the identity owns.
func (s *AuthService) LogoutAll(identityID uint) error {
	return s.tokens.RevokeAllForIdentity(identityID)
}

// AuthenticateAccessToken is the gate behind every protected endpoint:
// verify signature and expiry, load the identity, and reject tokens minted
// under a previous password version.
func (s *AuthService) AuthenticateAccessToken(token string) (*models.Identity, *AccessClaims, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, nil, err
	}

	identity, err := s.store.GetIdentityByID(claims.IdentityID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperrors.Unauthorized("IDENTITY_NOT_FOUND", "account no longer exists")
		}
		return nil, nil, apperrors.Internal("failed to load identity")
	}
	if !identity.CanAuthenticate() {
		return nil, nil, apperrors.Unauthorized("ACCOUNT_INACTIVE", "account is not active")
	}
	if identity.PasswordVersion != claims.PasswordVersion {
		return nil, nil, apperrors.Unauthorized("SESSION_EXPIRED", "session expired, please log in again")
	}

	return identity, claims, nil
}

func (s *AuthService) establishSession(identity *models.Identity, ip, userAgent string) (*AuthSession, error) {
	access, err := s.tokens.GenerateAccessToken(identity.ID, identity.Phone, identity.PasswordVersion)
	if err != nil {
		return nil, apperrors.Internal("failed to mint access token")
	}

	refresh, err := s.tokens.GenerateRefreshToken(identity, ip, userAgent)
	if err != nil {
		return nil, apperrors.Internal("failed to mint refresh token")
	}

	return &AuthSession{
		User:         identity.Summary(),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
