package local

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	mettle "github.com/mettlehq/go-mettle"
)

// mintSession issues an HS256-signed session for user, the same shape
// the hosted backend returns from its token endpoint.
func (b *Backend) mintSession(user *AuthUser) (*mettle.Session, error) {
	now := time.Now()
	expires := now.Add(b.tokenTTL)

	claims := &mettle.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    "mettle-local",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email: user.Email,
		Role:  "authenticated",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(b.secret)
	if err != nil {
		return nil, err
	}

	return &mettle.Session{
		AccessToken:  signed,
		RefreshToken: uuid.NewString(),
		TokenType:    "bearer",
		ExpiresAt:    expires,
		User:         toUser(user),
	}, nil
}

func toUser(user *AuthUser) *mettle.User {
	if user == nil {
		return nil
	}

	return &mettle.User{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
