package auth

import (
	"fmt"

	"concierge-chat/config"
	"concierge-chat/internal/domain"
	chaterrors "concierge-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates bearer credentials and derives the session identity.
// Token issuance is out of scope; only verification lives here.
type Verifier struct {
	secret []byte
}

func NewVerifier(cfg *config.Config) *Verifier {
	return &Verifier{secret: []byte(cfg.JWTSecret)}
}

// Verify checks the token signature against the configured secret and derives
// the identity from its claims. Missing token, missing secret and any parse or
// signature failure all collapse into ErrUnauthorized.
func (v *Verifier) Verify(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, chaterrors.ErrUnauthorized
	}
	if len(v.secret) == 0 {
		return domain.Identity{}, chaterrors.ErrUnauthorized
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Identity{}, chaterrors.ErrUnauthorized
	}

	return identityFromClaims(claims), nil
}

func identityFromClaims(claims jwt.MapClaims) domain.Identity {
	identity := domain.Identity{
		UUID:     stringClaim(claims, "uuid"),
		FullName: stringClaim(claims, "full_name"),
		Email:    stringClaim(claims, "email"),
		Role:     domain.NormalizeRole(roleClaim(claims)),
	}
	if raw, ok := claims["id"]; ok {
		if n, ok := raw.(float64); ok {
			identity.ID = int64(n)
		}
	}
	return identity
}

// roleClaim reads a nested role.name field when present, falling back to a
// flat role string.
func roleClaim(claims jwt.MapClaims) string {
	switch role := claims["role"].(type) {
	case map[string]interface{}:
		if name, ok := role["name"].(string); ok {
			return name
		}
	case string:
		return role
	}
	return ""
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return value
	}
	return ""
}
