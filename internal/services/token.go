package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kariyab/kariyab-backend/internal/apperrors"
	"github.com/kariyab/kariyab-backend/internal/models"
	"github.com/kariyab/kariyab-backend/internal/storage"
	"github.com/kariyab/kariyab-backend/internal/utils"
)

// AccessClaims is the access token payload. PasswordVersion is a snapshot
// taken at mint time; the auth gate compares it against current identity
// state, which is how password changes retire every outstanding token.
type AccessClaims struct {
	IdentityID      uint   `json:"identity_id"`
	Phone           string `json:"phone"`
	PasswordVersion int    `json:"password_version"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies access tokens (stateless, HS256-signed)
// and manages opaque refresh tokens against the refresh token ledger.
type TokenService struct {
	store          storage.Store
	secret         []byte
	accessTTL      time.Duration
	refreshMinDays int
	refreshMaxDays int
	jitter         utils.Jitter
	now            func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(store storage.Store, secret string, accessTTL time.Duration, refreshMinDays, refreshMaxDays int, jitter utils.Jitter) *TokenService {
	return &TokenService{
		store:          store,
		secret:         []byte(secret),
		accessTTL:      accessTTL,
		refreshMinDays: refreshMinDays,
		refreshMaxDays: refreshMaxDays,
		jitter:         jitter,
		now:            time.Now,
	}
}

// GenerateAccessToken mints a signed, short-lived access token
func (s *TokenService) GenerateAccessToken(identityID uint, phone string, passwordVersion int) (string, error) {
	now := s.now()
	claims := &AccessClaims{
		IdentityID:      identityID,
		Phone:           phone,
		PasswordVersion: passwordVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", identityID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken checks signature and expiry. It does not compare
// PasswordVersion against the identity; that is the auth gate's job,
// since this service has no view of current identity state.
func (s *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, apperrors.Unauthorized("ACCESS_TOKEN_INVALID", "invalid or expired access token")
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, apperrors.Unauthorized("ACCESS_TOKEN_INVALID", "invalid or expired access token")
	}
	return claims, nil
}

// GenerateRefreshToken mints an opaque refresh token for the identity and
// persists its hash. The plaintext is returned exactly once. The TTL is
// jittered inside the configured day window so tokens issued together do
// not all expire together.
func (s *TokenService) GenerateRefreshToken(identity *models.Identity, ip, userAgent string) (string, error) {
	record, plaintext, err := s.newRefreshRecord(identity, ip, userAgent, nil)
	if err != nil {
		return "", err
	}
	if _, err := s.store.CreateRefreshToken(record); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return plaintext, nil
}

func (s *TokenService) newRefreshRecord(identity *models.Identity, ip, userAgent string, rotatedFromID *uint) (*models.RefreshToken, string, error) {
	plaintext, err := utils.GenerateRefreshTokenValue()
	if err != nil {
		return nil, "", err
	}

	minTTL := time.Duration(s.refreshMinDays) * 24 * time.Hour
	maxTTL := time.Duration(s.refreshMaxDays) * 24 * time.Hour

	return &models.RefreshToken{
		IdentityID:    identity.ID,
		TokenHash:     utils.HashSecret(plaintext),
		ExpiresAt:     s.now().Add(s.jitter.DurationBetween(minTTL, maxTTL)),
		IssuedIP:      ip,
		UserAgent:     userAgent,
		RotatedFromID: rotatedFromID,
	}, plaintext, nil
}

// VerifyRefreshToken resolves a plaintext token to its ledger record.
// Unknown, revoked, and expired tokens all fail with Unauthorized.
func (s *TokenService) VerifyRefreshToken(plaintext string) (*models.RefreshToken, error) {
	record, err := s.store.GetRefreshTokenByHash(utils.HashSecret(plaintext))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.Unauthorized("REFRESH_TOKEN_INVALID", "invalid refresh token")
		}
		return nil, apperrors.Internal("failed to look up refresh token")
	}

	if record.IsRevoked() {
		return nil, apperrors.Unauthorized("REFRESH_TOKEN_REVOKED", "refresh token has been revoked")
	}
	if s.now().After(record.ExpiresAt) {
		return nil, apperrors.Unauthorized("REFRESH_TOKEN_EXPIRED", "refresh token has expired")
	}
	return record, nil
}

// RotateRefreshToken exchanges the old token for a new one. Revocation and
// successor creation are one atomic storage operation, so of two concurrent
// rotations only one can win, and a failed mint never leaves the old token
// revoked without a successor. The new token records its lineage back to
// the old one.
func (s *TokenService) RotateRefreshToken(oldPlaintext string, identity *models.Identity, ip, userAgent string) (string, error) {
	record, err := s.VerifyRefreshToken(oldPlaintext)
	if err != nil {
		return "", err
	}

	successor, plaintext, err := s.newRefreshRecord(identity, ip, userAgent, &record.ID)
	if err != nil {
		return "", apperrors.Internal("failed to mint refresh token")
	}

	if _, err := s.store.RotateRefreshToken(record.ID, s.now(), successor); err != nil {
		if errors.Is(err, storage.ErrAlreadyUsed) {
			// Lost the race: another rotation already consumed this token.
			return "", apperrors.Unauthorized("REFRESH_TOKEN_REVOKED", "refresh token has been revoked")
		}
		return "", apperrors.Internal("failed to rotate refresh token")
	}
	return plaintext, nil
}

// RevokeRefreshToken revokes the presented token if it exists and is still
// active. Idempotent: unknown and already-revoked tokens are not errors,
// so logout never leaks whether a token was valid.
func (s *TokenService) RevokeRefreshToken(plaintext string) error {
	record, err := s.store.GetRefreshTokenByHash(utils.HashSecret(plaintext))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return apperrors.Internal("failed to look up refresh token")
	}

	if _, err := s.store.RevokeRefreshToken(record.ID, s.now()); err != nil {
		return apperrors.Internal("failed to revoke refresh token")
	}
	return nil
}

// RevokeAllForIdentity revokes every active refresh token the identity
// owns. Used by logout-all and forced invalidation on password change.
func (s *TokenService) RevokeAllForIdentity(identityID uint) error {
	if err := s.store.RevokeAllRefreshTokensForIdentity(identityID, s.now()); err != nil {
		return apperrors.Internal("failed to revoke refresh tokens")
	}
	return nil
}
