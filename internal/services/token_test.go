package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kariyab/kariyab-backend/internal/apperrors"
	"github.com/kariyab/kariyab-backend/internal/models"
	"github.com/kariyab/kariyab-backend/internal/storage"
	"github.com/kariyab/kariyab-backend/internal/utils"
)

func testIdentity(t *testing.T, store storage.Store) *models.Identity {
	t.Helper()
	identity, err := store.CreateIdentity(&models.Identity{
		Phone:           testPhone,
		IsPhoneVerified: true,
	})
	require.NoError(t, err)
	return identity
}

func TestAccessToken_RoundTrip(t *testing.T) {
	f := newFixture(t)

	signed, err := f.tokens.GenerateAccessToken(42, testPhone, 3)
	require.NoError(t, err)

	claims, err := f.tokens.VerifyAccessToken(signed)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.IdentityID)
	assert.Equal(t, testPhone, claims.Phone)
	assert.Equal(t, 3, claims.PasswordVersion)
}

func TestAccessToken_ExpiredFailsUnauthorized(t *testing.T) {
	f := newFixture(t)
	expired := NewTokenService(f.store, "test-secret-at-least-32-characters", -time.Minute, 14, 30, utils.FixedJitter{Value: 24 * time.Hour})
	expired.now = f.clock.Now

	signed, err := expired.GenerateAccessToken(1, testPhone, 0)
	require.NoError(t, err)

	_, err = f.tokens.VerifyAccessToken(signed)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "ACCESS_TOKEN_INVALID", appErr.Code)
	assert.Equal(t, 401, appErr.Status)
}

func TestAccessToken_TamperedSignatureFails(t *testing.T) {
	f := newFixture(t)

	signed, err := f.tokens.GenerateAccessToken(1, testPhone, 0)
	require.NoError(t, err)

	tampered := signed[:len(signed)-2] + "xx"
	_, err = f.tokens.VerifyAccessToken(tampered)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "ACCESS_TOKEN_INVALID", appErr.Code)
}

func TestRefreshToken_MintAndVerify(t *testing.T) {
	f := newFixture(t)
	identity := testIdentity(t, f.store)

	plaintext, err := f.tokens.GenerateRefreshToken(identity, "10.0.0.1", "test-agent")
	require.NoError(t, err)
	assert.NotEmpty(t, plaintext)

	record, err := f.tokens.VerifyRefreshToken(plaintext)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, record.IdentityID)
	assert.Nil(t, record.RotatedFromID)

	// Jittered TTL lands inside the configured window
	ttl := record.ExpiresAt.Sub(f.clock.Now())
	assert.GreaterOrEqual(t, ttl, 14*24*time.Hour)
	assert.LessOrEqual(t, ttl, 30*24*time.Hour)

	// Ledger never holds the plaintext
	assert.NotEqual(t, plaintext, record.TokenHash)
}

func TestRefreshToken_UnknownFailsUnauthorized(t *testing.T) {
	f := newFixture(t)

	_, err := f.tokens.VerifyRefreshToken("not-a-token")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "REFRESH_TOKEN_INVALID", appErr.Code)
	assert.Equal(t, 401, appErr.Status)
}

func TestRefreshToken_ExpiredFailsUnauthorized(t *testing.T) {
	f := newFixture(t)
	identity := testIdentity(t, f.store)

	plaintext, err := f.tokens.GenerateRefreshToken(identity, "", "")
	require.NoError(t, err)

	f.clock.Advance(21 * 24 * time.Hour)

	_, err = f.tokens.VerifyRefreshToken(plaintext)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "REFRESH_TOKEN_EXPIRED", appErr.Code)
}

func TestRefreshToken_RotationIsSingleUseWithLineage(t *testing.T) {
	f := newFixture(t)
	identity := testIdentity(t, f.store)

	tokenA, err := f.tokens.GenerateRefreshToken(identity, "", "")
	require.NoError(t, err)
	recordA, err := f.tokens.VerifyRefreshToken(tokenA)
	require.NoError(t, err)

	tokenB, err := f.tokens.RotateRefreshToken(tokenA, identity, "", "")
	require.NoError(t, err)

	// Replaying the rotated token fails: A is revoked
	_, err = f.tokens.RotateRefreshToken(tokenA, identity, "", "")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "REFRESH_TOKEN_REVOKED", appErr.Code)

	// Rotating B works and the chain stays intact: C -> B -> A
	recordB, err := f.tokens.VerifyRefreshToken(tokenB)
	require.NoError(t, err)
	require.NotNil(t, recordB.RotatedFromID)
	assert.Equal(t, recordA.ID, *recordB.RotatedFromID)

	tokenC, err := f.tokens.RotateRefreshToken(tokenB, identity, "", "")
	require.NoError(t, err)
	recordC, err := f.tokens.VerifyRefreshToken(tokenC)
	require.NoError(t, err)
	require.NotNil(t, recordC.RotatedFromID)
	assert.Equal(t, recordB.ID, *recordC.RotatedFromID)
}

func TestRevokeRefreshToken_Idempotent(t *testing.T) {
	f := newFixture(t)
	identity := testIdentity(t, f.store)

	plaintext, err := f.tokens.GenerateRefreshToken(identity, "", "")
	require.NoError(t, err)

	require.NoError(t, f.tokens.RevokeRefreshToken(plaintext))
	require.NoError(t, f.tokens.RevokeRefreshToken(plaintext))
	require.NoError(t, f.tokens.RevokeRefreshToken("never-issued"))

	_, err = f.tokens.VerifyRefreshToken(plaintext)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "REFRESH_TOKEN_REVOKED", appErr.Code)
}

func TestRevokeAllForIdentity(t *testing.T) {
	f := newFixture(t)
	identity := testIdentity(t, f.store)

	token1, err := f.tokens.GenerateRefreshToken(identity, "", "")
	require.NoError(t, err)
	token2, err := f.tokens.GenerateRefreshToken(identity, "", "")
	require.NoError(t, err)

	require.NoError(t, f.tokens.RevokeAllForIdentity(identity.ID))

	for _, token := range []string{token1, token2} {
		_, err = f.tokens.VerifyRefreshToken(token)
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, "REFRESH_TOKEN_REVOKED", appErr.Code)
	}
}
