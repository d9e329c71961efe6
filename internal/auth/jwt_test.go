package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator() *JWTAuthenticator {
	return NewJWTAuthenticator("access-secret", "refresh-secret", "cozy", "cozy")
}

func TestGenerateAndValidateTokens(t *testing.T) {
	a := newTestAuthenticator()

	access, refresh, err := a.GenerateTokens("652f1c2e9b1e8a0012345678")
	require.NoError(t, err)

	token, err := a.ValidateAccessToken(access)
	require.NoError(t, err)
	sub, err := Subject(token)
	require.NoError(t, err)
	assert.Equal(t, "652f1c2e9b1e8a0012345678", sub)

	token, err = a.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	sub, err = Subject(token)
	require.NoError(t, err)
	assert.Equal(t, "652f1c2e9b1e8a0012345678", sub)
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	a := newTestAuthenticator()
	access, refresh, err := a.GenerateTokens("652f1c2e9b1e8a0012345678")
	require.NoError(t, err)

	_, err = a.ValidateAccessToken(refresh)
	assert.Error(t, err)

	_, err = a.ValidateRefreshToken(access)
	assert.Error(t, err)
}

func TestRejectsExpiredAndForeignTokens(t *testing.T) {
	a := newTestAuthenticator()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "652f1c2e9b1e8a0012345678",
		"typ": accessTokenType,
		"exp": time.Now().Add(-time.Minute).Unix(),
		"iss": "cozy",
		"aud": "cozy",
	})
	signed, err := expired.SignedString([]byte("access-secret"))
	require.NoError(t, err)
	_, err = a.ValidateAccessToken(signed)
	assert.Error(t, err)

	other := NewJWTAuthenticator("someone-else", "refresh-secret", "cozy", "cozy")
	access, _, err := other.GenerateTokens("652f1c2e9b1e8a0012345678")
	require.NoError(t, err)
	_, err = a.ValidateAccessToken(access)
	assert.Error(t, err)

	_, err = a.ValidateAccessToken("not.a.token")
	assert.Error(t, err)
}
