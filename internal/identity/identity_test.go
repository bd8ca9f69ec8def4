package identity

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatsync_errors "chatsync/pkg/errors"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestUserIDFromToken(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "42", "email": "bob@example.com"})

	id, err := UserIDFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestUserIDFromTokenWithoutSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"email": "bob@example.com"})

	_, err := UserIDFromToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, chatsync_errors.ErrUnauthorized)
}

func TestUserIDFromTokenNonNumericSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "bob"})

	_, err := UserIDFromToken(token)
	assert.ErrorIs(t, err, chatsync_errors.ErrUnauthorized)
}

func TestUserIDFromGarbage(t *testing.T) {
	_, err := UserIDFromToken("not.a.token")
	assert.ErrorIs(t, err, chatsync_errors.ErrUnauthorized)
}
