package auth

import (
	"context"
	"testing"
	"time"

	orderErrors "order-service/internal/errors"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireCustomer(t *testing.T) {
	_, err := RequireCustomer(context.Background())
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonUnauthenticated))

	ctx := NewContext(context.Background(), &Claims{UserID: "u1", Email: "a@example.com"})
	claims, err := RequireCustomer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.False(t, IsAdmin(ctx))
}

func TestRequireAdmin(t *testing.T) {
	ctx := NewContext(context.Background(), &Claims{UserID: "u1", Role: RoleCustomer})
	_, err := RequireAdmin(ctx)
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonAdminRequired))

	ctx = NewContext(context.Background(), &Claims{UserID: "ops", Email: "ops@example.com", Role: RoleAdmin})
	claims, err := RequireAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Operator())
}

func TestSignRoundTrip(t *testing.T) {
	token, err := Sign("secret", &Claims{UserID: "u1", Email: "a@example.com"}, time.Hour)
	require.NoError(t, err)

	parsed, err := jwtv5.ParseWithClaims(token, NewClaims(), func(*jwtv5.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(*Claims)
	assert.Equal(t, "u1", claims.UserID)
	assert.NotNil(t, claims.ExpiresAt)
}
