package transport

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("s3cr3t"), time.Hour)
	token, err := issuer.Issue(42)
	require.NoError(t, err)

	player, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), player)
}

func TestTokenIssuerRejectsForeignSecret(t *testing.T) {
	issuer := NewTokenIssuer([]byte("s3cr3t"), time.Hour)
	token, err := issuer.Issue(1)
	require.NoError(t, err)

	other := NewTokenIssuer([]byte("different"), time.Hour)
	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestTokenIssuerRejectsExpiredToken(t *testing.T) {
	secret := []byte("s3cr3t")
	claims := jwt.MapClaims{
		"player": float64(7),
		"iat":    time.Now().Add(-2 * time.Hour).Unix(),
		"exp":    time.Now().Add(-time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	issuer := NewTokenIssuer(secret, time.Hour)
	_, err = issuer.Verify(token)
	assert.Error(t, err)
}
