package mettle_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mettle "github.com/mettlehq/go-mettle"
)

var hmacSecret = []byte("test-secret")

func mintSessionToken(t *testing.T, claims mettle.SessionClaims) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString(hmacSecret)
	require.NoError(t, err)

	return signed
}

func TestHMACValidatorAcceptsValidToken(t *testing.T) {
	userID := uuid.New()
	token := mintSessionToken(t, mettle.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "ada@example.com",
		Role:  "authenticated",
	})

	validator := mettle.NewHMACValidator(hmacSecret)
	claims, err := validator.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "authenticated", claims.Role)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, id)
}

func TestHMACValidatorRejectsExpiredToken(t *testing.T) {
	token := mintSessionToken(t, mettle.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := mettle.NewHMACValidator(hmacSecret).Validate(token)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "SESSION_EXPIRED", richErr.TextCode)
}

func TestHMACValidatorRejectsWrongSecret(t *testing.T) {
	token := mintSessionToken(t, mettle.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := mettle.NewHMACValidator([]byte("other-secret")).Validate(token)
	require.Error(t, err)
}

func TestHMACValidatorRejectsGarbage(t *testing.T) {
	_, err := mettle.NewHMACValidator(hmacSecret).Validate("not.a.token")
	require.Error(t, err)
}

func TestSessionClaimsUserIDRejectsBadSubject(t *testing.T) {
	claims := &mettle.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid"},
	}

	_, err := claims.UserID()
	require.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(45 * time.Minute).Truncate(time.Second)
	token := mintSessionToken(t, mettle.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	got, ok := mettle.TokenExpiry(token)
	require.True(t, ok)
	assert.WithinDuration(t, exp, got, time.Second)
}

func TestTokenExpiryWithoutClaim(t *testing.T) {
	token := mintSessionToken(t, mettle.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.New().String()},
	})

	_, ok := mettle.TokenExpiry(token)
	assert.False(t, ok)
}

func TestTokenExpiryGarbage(t *testing.T) {
	_, ok := mettle.TokenExpiry("garbage")
	assert.False(t, ok)
}
