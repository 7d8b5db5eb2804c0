package utils_test

import (
	"strings"
	"testing"

	"inspection_system/internal/utils"

	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := utils.GenerateJWT(42, "dealer", "secret")
	require.NoError(t, err)

	claims, err := utils.ParseJWT(token, "secret")
	require.NoError(t, err)
	require.EqualValues(t, 42, claims.UserID)
	require.Equal(t, "dealer", claims.Role)
	require.True(t, claims.ExpiresAt.After(claims.IssuedAt.Time))
}

func TestJWTRejectsTampering(t *testing.T) {
	token, err := utils.GenerateJWT(42, "customer", "secret")
	require.NoError(t, err)

	_, err = utils.ParseJWT(token, "other-secret")
	require.Error(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	_, err = utils.ParseJWT(parts[0]+"."+parts[1]+".", "secret")
	require.Error(t, err)

	_, err = utils.ParseJWT("not-a-token", "secret")
	require.Error(t, err)
}
