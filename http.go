package mettle

import (
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	// SessionCookieName holds the access token for server-rendered pages.
	SessionCookieName = "mettle_session"
	// RedirectCookieName remembers where to send the user after login.
	RedirectCookieName = "mettle_redirect"
	// ClaimsContextKey is where the guard stores validated claims.
	ClaimsContextKey = "session_claims"
)

// SessionGuard protects server routes by validating the backend-issued
// access token found in the Authorization header or session cookie. On
// success the claims are stored on the request context; on failure the
// request is handed to onError.
type SessionGuard struct {
	validator TokenValidator
	logger    Logger
}

// NewSessionGuard builds the guard around a token validator.
func NewSessionGuard(validator TokenValidator) *SessionGuard {
	return &SessionGuard{
		validator: validator,
		logger:    defLogger{},
	}
}

func (g *SessionGuard) WithLogger(logger Logger) *SessionGuard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Middleware returns the route middleware. A nil onError falls back to
// a 401 JSON body.
func (g *SessionGuard) Middleware(onError func(router.Context, error) error) router.MiddlewareFunc {
	if onError == nil {
		onError = func(c router.Context, err error) error {
			return c.JSON(router.StatusUnauthorized, map[string]string{
				"error": UserMessage(err),
			})
		}
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			token := tokenFromRequest(c)
			if token == "" {
				return onError(c, ErrNotAuthenticated)
			}

			claims, err := g.validator.Validate(token)
			if err != nil {
				g.logger.Debug("session token rejected", "error", err)
				return onError(c, err)
			}

			c.Locals(ClaimsContextKey, claims)
			c.SetContext(WithClaimsContext(c.Context(), claims))
			return next(c)
		}
	}
}

func tokenFromRequest(c router.Context) string {
	header := c.GetString(router.HeaderAuthorization, "")
	if len(header) > 7 && strings.EqualFold(header[:6], "Bearer") {
		return strings.TrimSpace(header[6:])
	}

	return c.Cookies(SessionCookieName)
}

// ClaimsFromRoute extracts validated session claims placed by the guard.
func ClaimsFromRoute(c router.Context) (*SessionClaims, error) {
	raw := c.Locals(ClaimsContextKey)
	if raw == nil {
		return nil, ErrNotAuthenticated
	}

	claims, ok := raw.(*SessionClaims)
	if !ok {
		return nil, goerrors.New("unexpected claims type on context", goerrors.CategoryInternal)
	}

	return claims, nil
}

// SetRedirect remembers the rejected route so login can send the user
// back where they were headed.
func SetRedirect(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     RedirectCookieName,
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirect pops the remembered destination, falling back to def.
func GetRedirect(c router.Context, def string) string {
	r := c.Cookies(RedirectCookieName)
	clearCookie(c, RedirectCookieName)

	if !IsLocalPath(r) {
		return def
	}
	return r
}

// SetSessionCookie stores the session's access token for later
// server-rendered requests.
func SetSessionCookie(c router.Context, session *Session) {
	expires := session.ExpiresAt
	if expires.IsZero() {
		expires = time.Now().Add(24 * time.Hour)
	}

	c.Cookie(&router.Cookie{
		Name:     SessionCookieName,
		Value:    session.AccessToken,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// ClearSessionCookie drops the session cookie.
func ClearSessionCookie(c router.Context) {
	clearCookie(c, SessionCookieName)
}

func clearCookie(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}
