package mettle

import (
	stderrors "errors"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SessionClaims is the slice of the backend-issued access token the
// shell cares about: who the session belongs to and when it lapses.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string         `json:"email,omitempty"`
	Role  string         `json:"role,omitempty"`
	Meta  map[string]any `json:"user_metadata,omitempty"`
}

// UserID returns the subject as a parsed UUID.
func (c *SessionClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenValidator validates backend-issued access tokens and extracts
// session claims without tying callers to a signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (*SessionClaims, error)
}

// JWKSValidator validates tokens against the backend's published JWK
// set, refreshed in the background.
type JWKSValidator struct {
	jwks *keyfunc.JWKS
}

var _ TokenValidator = (*JWKSValidator)(nil)

// NewJWKSValidator fetches the JWK set from cfg's JWKS URL and keeps it
// fresh. Call Shutdown when done with it.
func NewJWKSValidator(cfg Config) (*JWKSValidator, error) {
	jwks, err := keyfunc.Get(cfg.GetJWKSURL(), keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWK set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "could not load backend JWK set")
	}

	return &JWKSValidator{jwks: jwks}, nil
}

// Validate implements TokenValidator.
func (v *JWKSValidator) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc)
	if err != nil {
		return nil, normalizeTokenError(err)
	}

	if !token.Valid {
		return nil, ErrSessionExpired
	}

	return claims, nil
}

// Shutdown stops the background JWK refresh.
func (v *JWKSValidator) Shutdown() {
	v.jwks.EndBackground()
}

// HMACValidator validates tokens signed with the backend's shared
// secret, the scheme used by self-hosted backends and the local
// provider.
type HMACValidator struct {
	secret []byte
}

var _ TokenValidator = (*HMACValidator)(nil)

// NewHMACValidator builds a shared-secret validator.
func NewHMACValidator(secret []byte) *HMACValidator {
	return &HMACValidator{secret: secret}
}

// Validate implements TokenValidator.
func (h *HMACValidator) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return h.secret, nil
	})
	if err != nil {
		return nil, normalizeTokenError(err)
	}

	if !token.Valid {
		return nil, ErrSessionExpired
	}

	return claims, nil
}

func normalizeTokenError(err error) error {
	if err == nil {
		return nil
	}

	clone := goerrors.Wrap(err, goerrors.CategoryAuth, "invalid session token").
		WithCode(goerrors.CodeUnauthorized)

	if stderrors.Is(err, jwt.ErrTokenExpired) {
		return ErrSessionExpired
	}

	return clone
}

// TokenExpiry extracts the expiry from an access token without
// verifying the signature. The refresh loop uses it to schedule the
// rotation; trust decisions always go through a TokenValidator.
func TokenExpiry(tokenString string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := &SessionClaims{}

	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, false
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}
