package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// RunTokenClaims scope a token to one run. A caller holding a run token can
// poll that run's log but cannot start runs or read other runs.
type RunTokenClaims struct {
	jwt.RegisteredClaims
	RunID string `json:"run_id"`
	Scope string `json:"scope"`
}

type RunTokenManager struct {
	signingKey []byte
	ttl        time.Duration
}

func NewRunTokenManager(signingKey []byte, ttl time.Duration) *RunTokenManager {
	return &RunTokenManager{signingKey: signingKey, ttl: ttl}
}

func (m *RunTokenManager) GenerateRunToken(runID string) (string, error) {
	claims := RunTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   runID,
			Issuer:    "datamorph",
		},
		RunID: runID,
		Scope: "logs,status",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

func (m *RunTokenManager) ValidateRunToken(tokenString string) (*RunTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RunTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.signingKey, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*RunTokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (c *RunTokenClaims) HasScope(required string) bool {
	scopes := strings.Split(c.Scope, ",")
	for _, scope := range scopes {
		if scope == required {
			return true
		}
	}
	return false
}
