package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any session token that fails verification.
var ErrInvalidToken = errors.New("invalid session token")

// TokenIssuer mints and verifies the HMAC session token a connecting client
// presents to resume an existing player identity without re-authenticating
// through the host's own login flow (spec.md §6 "player_id" handshake).
//
// Grounded on pkg/auth.SupabaseAuth.ValidateToken's HMAC/jwt.MapClaims
// pattern rather than the heavier RS256 service-to-service claims used
// elsewhere in the teacher tree — this is a single-secret, single-issuer
// token scoped to one player id, not a multi-tenant service credential.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds a TokenIssuer. ttl defaults to 24h when zero.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: secret, ttl: ttl}
}

// Issue mints a session token bound to playerID.
func (t *TokenIssuer) Issue(playerID int64) (string, error) {
	if len(t.secret) == 0 {
		return "", fmt.Errorf("issue session token: secret not configured")
	}
	claims := jwt.MapClaims{
		"player": playerID,
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify validates tokenString and returns the bound player entity id.
func (t *TokenIssuer) Verify(tokenString string) (int64, error) {
	if len(t.secret) == 0 {
		return 0, fmt.Errorf("verify session token: secret not configured")
	}
	token, err := jwt.Parse(tokenString, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	raw, ok := claims["player"]
	if !ok {
		return 0, ErrInvalidToken
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, ErrInvalidToken
	}
	return int64(f), nil
}
