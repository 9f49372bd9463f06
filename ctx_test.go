package mettle_test

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mettle "github.com/mettlehq/go-mettle"
)

func TestUserContextRoundTrip(t *testing.T) {
	user := &mettle.User{ID: uuid.New(), Email: "ada@example.com"}

	ctx := mettle.WithUserContext(context.Background(), user)
	got, ok := mettle.UserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, user, got)
}

func TestUserFromContextMissing(t *testing.T) {
	_, ok := mettle.UserFromContext(context.Background())
	assert.False(t, ok)
}

func TestClaimsContextRoundTrip(t *testing.T) {
	claims := &mettle.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.New().String()},
	}

	ctx := mettle.WithClaimsContext(context.Background(), claims)
	got, ok := mettle.ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, claims, got)
}

func TestClaimsFromContextMissing(t *testing.T) {
	_, ok := mettle.ClaimsFromContext(context.Background())
	assert.False(t, ok)
}
