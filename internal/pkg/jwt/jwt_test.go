package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

func TestProviderResolve(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateToken("u1", "Ada", secret, time.Hour)
	require.NoError(t, err)

	claims, err := NewProvider(secret).Resolve(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "Ada", claims.DisplayName)
}

func TestProviderRejectsBadTokens(t *testing.T) {
	secret := []byte("secret")
	expired, err := GenerateToken("u1", "", secret, -time.Minute)
	require.NoError(t, err)
	other, err := GenerateToken("u1", "", []byte("other"), time.Hour)
	require.NoError(t, err)

	p := NewProvider(secret)
	for _, token := range []string{"", "garbage", expired, other} {
		_, err := p.Resolve(token)
		require.Error(t, err)
		require.True(t, errors.Is(err, appErr.ErrUnauthorized))
	}
}
