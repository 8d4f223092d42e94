// Package auth implements the credential gate in front of protected routes:
// it extracts the bearer token from the Authorization header and verifies it
// before any handler touches store state.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Lllllllleong/identityonboardflow/internal/apperr"
	"github.com/golang-jwt/jwt/v4"
)

// Principal is the identity resolved from a verified credential.
type Principal struct {
	Subject string
	Email   string
}

// Verifier turns a raw bearer token into a Principal.
type Verifier interface {
	Verify(token string) (*Principal, error)
}

// Gate authenticates HTTP requests through a Verifier.
type Gate struct {
	verifier Verifier
}

func NewGate(verifier Verifier) *Gate {
	return &Gate{verifier: verifier}
}

// Authenticate extracts and verifies the request's bearer credential.
func (g *Gate) Authenticate(r *http.Request) (*Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, apperr.New(apperr.KindAuth, "missing authorization credential")
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, apperr.New(apperr.KindAuth, "authorization header must carry a bearer token")
	}
	principal, err := g.verifier.Verify(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuth, "invalid credential", err)
	}
	return principal, nil
}

// JWTVerifier validates HMAC-signed JWTs against a shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(token string) (*Principal, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token carries no subject")
	}
	return &Principal{Subject: claims.Subject, Email: claims.Email}, nil
}
