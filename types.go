package mettle

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// AuthAPI is the authentication surface of the hosted backend.
type AuthAPI interface {
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, newPassword string) error
	Session(ctx context.Context) (*Session, error)
	User(ctx context.Context) (*User, error)
	OnAuthStateChange(fn AuthCallback) Subscription
}

// TableAPI is the database surface of the hosted backend. Rows are
// returned as raw JSON documents; callers decode into their own types.
type TableAPI interface {
	Select(ctx context.Context, table string, q Query) ([]byte, error)
	SelectSingle(ctx context.Context, table string, q Query) ([]byte, error)
	Update(ctx context.Context, table string, q Query, values any) ([]byte, error)
	Insert(ctx context.Context, table string, values any) ([]byte, error)
}

// BackendClient bundles the two backend surfaces behind one handle.
type BackendClient interface {
	Auth() AuthAPI
	Tables() TableAPI
}

// AuthCallback receives auth-state notifications. A nil session means
// the user is signed out.
type AuthCallback func(event AuthEvent, session *Session)

// Subscription is a cancellable handle to an auth-state subscription.
// Unsubscribe is idempotent; after it returns the callback will not be
// invoked again.
type Subscription interface {
	Unsubscribe()
}

// Query captures the small slice of the backend's query language the
// shell needs: equality filters, embedded resources, column selection
// and ordering.
type Query struct {
	Columns    string
	Embed      string
	Filters    map[string]string
	OrderBy    string
	Descending bool
	Limit      int
}

// Eq adds an equality filter and returns the query for chaining.
func (q Query) Eq(column, value string) Query {
	if q.Filters == nil {
		q.Filters = map[string]string{}
	}
	q.Filters[column] = value
	return q
}

// Navigator abstracts client-side routing: programmatic navigation to a
// path plus a refresh of the current route's data.
type Navigator interface {
	Navigate(path string)
	Refresh()
}

// SessionStore persists a session across requests the way a browser
// cookie jar would. Implementations must be safe for concurrent use.
type SessionStore interface {
	Load() (*Session, error)
	Save(session *Session) error
	Clear() error
}

// Config holds backend connection options.
type Config interface {
	GetBackendURL() string
	GetAPIKey() string
	GetAccountDeleteURL() string
	GetJWKSURL() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] METTLE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] METTLE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] METTLE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] METTLE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// RedirectTarget resolves the post-login destination from the page's
// query state, falling back to the dashboard. Only local paths are
// honored; absolute and protocol-relative targets are discarded.
func RedirectTarget(query url.Values) string {
	r := query.Get("redirect")
	if !IsLocalPath(r) {
		return DefaultDashboardPath
	}
	return r
}

// IsLocalPath reports whether p is a same-origin path, the only kind of
// redirect target login handlers accept. A second leading slash would
// make the target protocol-relative.
func IsLocalPath(p string) bool {
	return len(p) > 0 && p[0] == '/' && !strings.HasPrefix(p, "//")
}

const (
	// DefaultDashboardPath is where a successful login lands absent an
	// explicit redirect target.
	DefaultDashboardPath = "/dashboard"
	// LandingPath is the anonymous landing view.
	LandingPath = "/"
	// DefaultAccountDeleteRoute is the application route that performs
	// hard account deletion.
	DefaultAccountDeleteRoute = "/api/account"
)
