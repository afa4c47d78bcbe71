package services_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spin-miniapp-backend/internal/services"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := services.NewJWTService(testConfig())

	token, expiresAt, err := svc.GenerateToken("session-1", 42)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "session-1", claims.SessionID)
	assert.Equal(t, int64(42), claims.FID)
}

func TestJWTRejectsForeignSecret(t *testing.T) {
	other := testConfig()
	other.JWTSecret = "someone-else"

	token, _, err := services.NewJWTService(other).GenerateToken("session-1", 42)
	require.NoError(t, err)

	_, err = services.NewJWTService(testConfig()).ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTRejectsExpired(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTTL = -time.Minute

	token, _, err := services.NewJWTService(cfg).GenerateToken("session-1", 42)
	require.NoError(t, err)

	_, err = services.NewJWTService(cfg).ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTRejectsNoneAlgorithm(t *testing.T) {
	claims := &services.Claims{SessionID: "session-1"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = services.NewJWTService(testConfig()).ValidateToken(token)
	assert.Error(t, err)
}
