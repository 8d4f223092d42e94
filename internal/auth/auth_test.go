package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Lllllllleong/identityonboardflow/internal/apperr"
	"github.com/Lllllllleong/identityonboardflow/internal/auth"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.Nil(t, err)
	return token
}

func requestWithToken(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/getAllUsers", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestAuthenticateValidToken(t *testing.T) {
	gate := auth.NewGate(auth.NewJWTVerifier(testSecret))
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	principal, err := gate.Authenticate(requestWithToken(token))
	require.Nil(t, err)
	assert.Equal(t, "user-123", principal.Subject)
}

func TestAuthenticateMissingCredential(t *testing.T) {
	gate := auth.NewGate(auth.NewJWTVerifier(testSecret))
	principal, err := gate.Authenticate(requestWithToken(""))
	assert.Nil(t, principal)
	require.NotNil(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestAuthenticateNonBearerHeader(t *testing.T) {
	gate := auth.NewGate(auth.NewJWTVerifier(testSecret))
	r := httptest.NewRequest(http.MethodGet, "/getAllUsers", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	principal, err := gate.Authenticate(r)
	assert.Nil(t, principal)
	require.NotNil(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestAuthenticateWrongSignature(t *testing.T) {
	gate := auth.NewGate(auth.NewJWTVerifier(testSecret))
	token := signToken(t, "some-other-secret", jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	_, err := gate.Authenticate(requestWithToken(token))
	require.NotNil(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestAuthenticateExpiredToken(t *testing.T) {
	gate := auth.NewGate(auth.NewJWTVerifier(testSecret))
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	_, err := gate.Authenticate(requestWithToken(token))
	require.NotNil(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestAuthenticateTokenWithoutSubject(t *testing.T) {
	gate := auth.NewGate(auth.NewJWTVerifier(testSecret))
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	_, err := gate.Authenticate(requestWithToken(token))
	require.NotNil(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}
