package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT(7, "bursar", "secret")
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "bursar", claims.Role)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestParseJWT_Rejects(t *testing.T) {
	token, err := GenerateJWT(7, "admin", "secret")
	require.NoError(t, err)

	_, err = ParseJWT(token, "other-secret")
	assert.Error(t, err, "wrong secret")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 7,
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	s, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseJWT(s, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	other := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: 7, Role: "admin"})
	s, err = other.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseJWT(s, "secret")
	assert.Error(t, err, "only HS256 is accepted")

	_, err = ParseJWT("garbage", "secret")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	for _, h := range []string{"", "Bearer ", "Token abc", "bearer abc"} {
		_, ok := BearerToken(h)
		assert.False(t, ok, h)
	}
}
