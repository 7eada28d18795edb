package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grigorev-se/vending-machine/internal/models"
)

func newTokenService(t *testing.T) *TokenService {
	t.Helper()
	return &TokenService{
		DB:            initTestDB(t),
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
}

func TestIssuePair_RegistersBothTokens(t *testing.T) {
	svc := newTokenService(t)

	pair, err := svc.IssuePair(1, models.RoleBuyer)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	var records []models.Token
	require.NoError(t, svc.DB.Where("user_id = ?", 1).Find(&records).Error)
	require.Len(t, records, 2)

	types := map[string]bool{}
	for _, record := range records {
		types[record.TokenType] = true
		assert.False(t, record.Revoked)
		assert.NotEmpty(t, record.JTI)
	}
	assert.True(t, types[TokenTypeAccess])
	assert.True(t, types[TokenTypeRefresh])
}

func TestIsValid_FailsClosed(t *testing.T) {
	svc := newTokenService(t)

	// A jti the registry has never seen is treated as revoked.
	valid, err := svc.IsValid("never-issued")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestIsValid_RegisteredThenRevoked(t *testing.T) {
	svc := newTokenService(t)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, svc.Register("jti-1", TokenTypeAccess, 7, exp, ""))

	valid, err := svc.IsValid("jti-1")
	require.NoError(t, err)
	assert.True(t, valid)

	require.NoError(t, svc.Revoke("jti-1", 7))

	valid, err = svc.IsValid("jti-1")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestRevoke_ForeignOrMissingToken(t *testing.T) {
	svc := newTokenService(t)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, svc.Register("jti-owned", TokenTypeAccess, 7, exp, ""))

	// Wrong owner is indistinguishable from a missing token.
	err := svc.Revoke("jti-owned", 8)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	err = svc.Revoke("jti-missing", 7)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	valid, err := svc.IsValid("jti-owned")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestRevokeAll(t *testing.T) {
	svc := newTokenService(t)

	_, err := svc.IssuePair(3, models.RoleBuyer)
	require.NoError(t, err)
	_, err = svc.IssuePair(3, models.RoleBuyer)
	require.NoError(t, err)
	_, err = svc.IssuePair(4, models.RoleSeller)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(3))

	var live int64
	require.NoError(t, svc.DB.Model(&models.Token{}).
		Where("user_id = ? AND revoked = ?", 3, false).
		Count(&live).Error)
	assert.Zero(t, live)

	// The other user's tokens are untouched.
	require.NoError(t, svc.DB.Model(&models.Token{}).
		Where("user_id = ? AND revoked = ?", 4, false).
		Count(&live).Error)
	assert.EqualValues(t, 2, live)
}

func TestRevokeAll_UnknownUser(t *testing.T) {
	svc := newTokenService(t)

	err := svc.RevokeAll(99)
	assert.ErrorIs(t, err, ErrNoUserTokens)
}

func TestHasOtherActiveSession(t *testing.T) {
	svc := newTokenService(t)

	active, err := svc.HasOtherActiveSession(5)
	require.NoError(t, err)
	assert.False(t, active)

	_, err = svc.IssuePair(5, models.RoleBuyer)
	require.NoError(t, err)

	active, err = svc.HasOtherActiveSession(5)
	require.NoError(t, err)
	assert.False(t, active)

	_, err = svc.IssuePair(5, models.RoleBuyer)
	require.NoError(t, err)

	active, err = svc.HasOtherActiveSession(5)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestHasOtherActiveSession_OddTokenCount(t *testing.T) {
	svc := newTokenService(t)

	first, err := svc.IssuePair(5, models.RoleBuyer)
	require.NoError(t, err)
	_, err = svc.IssuePair(5, models.RoleBuyer)
	require.NoError(t, err)

	// Revoking one half of a pair leaves three live tokens, which still
	// means more than one session.
	claims, err := svc.ParseAccess(first.AccessToken)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(claims["jti"].(string), 5))

	active, err := svc.HasOtherActiveSession(5)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestParseAccess(t *testing.T) {
	svc := newTokenService(t)

	pair, err := svc.IssuePair(6, models.RoleSeller)
	require.NoError(t, err)

	claims, err := svc.ParseAccess(pair.AccessToken)
	require.NoError(t, err)

	userID, ok := ClaimsUserID(claims)
	require.True(t, ok)
	assert.EqualValues(t, 6, userID)
	assert.Equal(t, models.RoleSeller, claims["role"])

	// A refresh token is rejected where an access token is expected.
	_, err = svc.ParseAccess(pair.RefreshToken)
	require.Error(t, err)
}

func TestParseAccess_RevokedToken(t *testing.T) {
	svc := newTokenService(t)

	pair, err := svc.IssuePair(6, models.RoleBuyer)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(6))

	_, err = svc.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRotate_RevokesOldRefresh(t *testing.T) {
	svc := newTokenService(t)

	pair, err := svc.IssuePair(9, models.RoleBuyer)
	require.NoError(t, err)

	rotated, err := svc.Rotate(pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.AccessToken)
	require.NotEmpty(t, rotated.RefreshToken)

	// The old refresh token cannot be replayed.
	_, err = svc.Rotate(pair.RefreshToken)
	require.Error(t, err)

	// The rotated one still works.
	_, err = svc.ParseRefresh(rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRotate_RevokesOldAccessToken(t *testing.T) {
	svc := newTokenService(t)

	pair, err := svc.IssuePair(9, models.RoleBuyer)
	require.NoError(t, err)

	rotated, err := svc.Rotate(pair.RefreshToken)
	require.NoError(t, err)

	// Rotation retires the whole old pair, not just the refresh half.
	_, err = svc.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = svc.ParseAccess(rotated.AccessToken)
	require.NoError(t, err)

	// Only the fresh pair stays live, so the session count is unskewed.
	var live int64
	require.NoError(t, svc.DB.Model(&models.Token{}).
		Where("user_id = ? AND revoked = ?", 9, false).
		Count(&live).Error)
	assert.EqualValues(t, 2, live)
}

func TestRotate_RejectsAccessToken(t *testing.T) {
	svc := newTokenService(t)

	pair, err := svc.IssuePair(9, models.RoleBuyer)
	require.NoError(t, err)

	_, err = svc.Rotate(pair.AccessToken)
	require.Error(t, err)
}
