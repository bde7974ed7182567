package jwt

import (
	"strings"
	"testing"
	"time"

	"channah-support-chat/internal/model"

	"github.com/stretchr/testify/require"
)

func useSecret(t *testing.T, key string) {
	t.Helper()
	previous, previousTTL := secret(), TokenTTL()
	Configure(key, time.Hour)
	t.Cleanup(func() { Configure(previous, previousTTL) })
}

func TestCreateAndParseToken(t *testing.T) {
	useSecret(t, "test-secret")

	token, err := CreateToken(Subject{UserID: "u1", Email: "ana@example.com", Role: model.RoleAgent}, 0)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "ana@example.com", claims.Email)
	require.Equal(t, model.RoleAgent, claims.Role)
	require.InDelta(t, time.Now().Add(time.Hour).Unix(), claims.ExpiresAt, 5)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	useSecret(t, "test-secret")

	token, err := CreateToken(Subject{UserID: "u1", Role: model.RoleCustomer}, time.Now().Add(-time.Minute).Unix())
	require.NoError(t, err)

	_, err = ParseToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsOtherSecret(t *testing.T) {
	useSecret(t, "first")
	token, err := CreateToken(Subject{UserID: "u1", Role: model.RoleCustomer}, 0)
	require.NoError(t, err)

	Configure("second", 0)
	_, err = ParseToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestCreateTokenRequiresRole(t *testing.T) {
	useSecret(t, "test-secret")
	_, err := CreateToken(Subject{UserID: "u1"}, 0)
	require.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	require.NotEqual(t, "hunter22", hash)
	require.True(t, CheckPassword(hash, "hunter22"))
	require.False(t, CheckPassword(hash, "hunter23"))

	_, err = HashPassword(strings.Repeat("x", 73))
	require.ErrorIs(t, err, ErrPasswordTooLong)
}
