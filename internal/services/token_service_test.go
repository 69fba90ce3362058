package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posts-backend/internal/models"
)

func TestTokenService_GenerateValidate(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.Generate("user-1")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.Expiry(), 2*time.Second)
}

func TestTokenService_Rejects(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	expired, err := svc.GenerateAt("user-1", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	otherKey, err := NewTokenService("other-secret", time.Hour).Generate("user-1")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  "user-1",
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":        expired,
		"wrong key":      otherKey,
		"alg none":       none,
		"missing expiry": noExpiry,
		"garbage":        "not.a.jwt",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Validate(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenService_GenerateForIssuesAfterPasswordChange(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 400*int(time.Millisecond), time.UTC)
	svc := NewTokenService("test-secret", time.Hour)
	svc.now = func() time.Time { return now }

	before, err := svc.GenerateFor(&models.User{ID: "user-1"})
	require.NoError(t, err)

	changed := now.Add(100 * time.Millisecond)
	user := &models.User{ID: "user-1", PasswordLastChanged: &changed}
	after, err := svc.GenerateFor(user)
	require.NoError(t, err)

	claims, err := svc.Validate(before)
	require.NoError(t, err)
	assert.True(t, IsTokenStale(user, claims.IssuedAt.Unix()), "token from the same second before the change")

	claims, err = svc.Validate(after)
	require.NoError(t, err)
	assert.False(t, IsTokenStale(user, claims.IssuedAt.Unix()))
	assert.Equal(t, changed.Unix()+1, claims.IssuedAt.Unix())
	assert.Equal(t, claims.IssuedAt.Add(time.Hour), claims.Expiry())

	now = now.Add(time.Minute)
	later, err := svc.GenerateFor(user)
	require.NoError(t, err)
	claims, err = svc.Validate(later)
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
}
