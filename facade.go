package mettle

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	profilesTable    = "user_profiles"
	assessmentsTable = "assessments"
	resultsEmbed     = "results(overallScore,tier)"
)

// Accounts is the auth facade: every stateful operation delegates to the
// backend client, normalizing failures into the module's error taxonomy.
// Operations that need a user reject locally with ErrNotAuthenticated
// before any network call.
type Accounts struct {
	client    BackendClient
	http      *http.Client
	deleteURL string
	logger    Logger
}

// NewAccounts returns the facade over client. Clients that know the
// account-deletion endpoint, like *Client, hand it over here; everyone
// else sets one through WithDeleteEndpoint.
func NewAccounts(client BackendClient) *Accounts {
	a := &Accounts{
		client:    client,
		http:      &http.Client{Timeout: 30 * time.Second},
		deleteURL: DefaultAccountDeleteRoute,
		logger:    defLogger{},
	}
	if r, ok := client.(interface{ AccountDeleteURL() string }); ok {
		if url := r.AccountDeleteURL(); url != "" {
			a.deleteURL = url
		}
	}
	return a
}

func (a *Accounts) WithLogger(logger Logger) *Accounts {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithDeleteEndpoint sets the application route that performs hard
// account deletion.
func (a *Accounts) WithDeleteEndpoint(url string) *Accounts {
	if url != "" {
		a.deleteURL = url
	}
	return a
}

// WithHTTPClient replaces the transport used for the deletion endpoint.
func (a *Accounts) WithHTTPClient(hc *http.Client) *Accounts {
	if hc != nil {
		a.http = hc
	}
	return a
}

// SignUp registers a new account.
func (a *Accounts) SignUp(ctx context.Context, email, password string) (*Session, error) {
	session, err := a.client.Auth().SignUp(ctx, email, password)
	if err != nil {
		return nil, normalizeAuthError(err, GenericAuthMessage)
	}
	return session, nil
}

// SignIn exchanges credentials for a session.
func (a *Accounts) SignIn(ctx context.Context, email, password string) (*Session, error) {
	session, err := a.client.Auth().SignIn(ctx, email, password)
	if err != nil {
		return nil, normalizeAuthError(err, "Invalid login credentials")
	}
	return session, nil
}

// SignOut ends the current session.
func (a *Accounts) SignOut(ctx context.Context) error {
	if err := a.client.Auth().SignOut(ctx); err != nil {
		return normalizeAuthError(err, GenericAuthMessage)
	}
	return nil
}

// ResetPassword asks the backend to start a password recovery flow.
func (a *Accounts) ResetPassword(ctx context.Context, email string) error {
	if err := a.client.Auth().ResetPasswordForEmail(ctx, email); err != nil {
		return normalizeAuthError(err, GenericAuthMessage)
	}
	return nil
}

// UpdatePassword sets a new password for the authenticated user.
func (a *Accounts) UpdatePassword(ctx context.Context, newPassword string) error {
	if _, err := a.requireUser(ctx); err != nil {
		return err
	}

	if err := a.client.Auth().UpdatePassword(ctx, newPassword); err != nil {
		return normalizeAuthError(err, GenericAuthMessage)
	}
	return nil
}

// CurrentSession returns the session, nil when anonymous.
func (a *Accounts) CurrentSession(ctx context.Context) (*Session, error) {
	session, err := a.client.Auth().Session(ctx)
	if err != nil {
		return nil, normalizeAuthError(err, GenericAuthMessage)
	}
	return session, nil
}

// CurrentUser returns the authoritative user record, nil when anonymous.
func (a *Accounts) CurrentUser(ctx context.Context) (*User, error) {
	user, err := a.client.Auth().User(ctx)
	if err != nil {
		return nil, normalizeAuthError(err, GenericAuthMessage)
	}
	return user, nil
}

// OnAuthStateChange subscribes fn to auth-state notifications.
func (a *Accounts) OnAuthStateChange(fn AuthCallback) Subscription {
	return a.client.Auth().OnAuthStateChange(fn)
}

// requireUser rejects locally when there is no authenticated user.
func (a *Accounts) requireUser(ctx context.Context) (*User, error) {
	session, err := a.client.Auth().Session(ctx)
	if err != nil {
		return nil, normalizeAuthError(err, GenericAuthMessage)
	}

	if session == nil || session.User == nil {
		return nil, ErrNotAuthenticated
	}

	return session.User, nil
}

// DeleteAccount hard-deletes the authenticated account through the
// application's deletion endpoint, then signs out locally.
func (a *Accounts) DeleteAccount(ctx context.Context) error {
	session, err := a.client.Auth().Session(ctx)
	if err != nil {
		return normalizeAuthError(err, GenericAuthMessage)
	}

	if session == nil {
		return ErrNotAuthenticated
	}

	if !strings.Contains(a.deleteURL, "://") {
		return goerrors.Wrap(ErrMissingConfig, goerrors.CategoryBadInput,
			"account deletion endpoint is not configured").
			WithTextCode("MISSING_CONFIG")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.deleteURL, nil)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not build deletion request")
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)

	res, err := a.http.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, GenericAuthMessage).
			WithTextCode("BACKEND_UNAVAILABLE")
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		payload := struct {
			Error string `json:"error"`
		}{}
		_ = json.NewDecoder(res.Body).Decode(&payload)

		msg := strings.TrimSpace(payload.Error)
		if msg == "" {
			msg = "Account deletion failed"
		}

		return goerrors.New(msg, goerrors.CategoryOperation).
			WithMetadata(map[string]any{"status": res.StatusCode})
	}

	return a.SignOut(ctx)
}

// Profile fetches the user's profile row. Fetch failures degrade to a
// nil profile after logging; callers render the anonymous shape instead
// of an error page.
func (a *Accounts) Profile(ctx context.Context) (*UserProfile, error) {
	user, err := a.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := a.client.Tables().SelectSingle(ctx, profilesTable, Query{}.Eq("id", user.ID.String()))
	if err != nil {
		a.logger.Warn("profile fetch failed, continuing without profile", "user", user.ID, "error", err)
		return nil, nil
	}

	profile := &UserProfile{}
	if err := json.Unmarshal(raw, profile); err != nil {
		a.logger.Warn("profile decode failed, continuing without profile", "user", user.ID, "error", err)
		return nil, nil
	}

	return profile, nil
}

// UpdateProfile validates, normalizes, and writes the mutable profile
// fields. Unlike reads, write failures are surfaced.
func (a *Accounts) UpdateProfile(ctx context.Context, update ProfileUpdate) (*UserProfile, error) {
	user, err := a.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := update.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid profile update")
	}

	if err := update.Normalize("US"); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number")
	}

	raw, err := a.client.Tables().Update(ctx, profilesTable, Query{}.Eq("id", user.ID.String()), update)
	if err != nil {
		return nil, normalizeAuthError(err, "Profile update failed")
	}

	var rows []UserProfile
	if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 {
		// backend accepted the write but returned nothing decodable,
		// re-fetch so the caller never trusts a stale cache
		return a.Profile(ctx)
	}

	return &rows[0], nil
}

// Assessments lists the user's assessments, newest first, with result
// score/tier populated from the joined result row when one exists.
// Fetch failures degrade to an empty list after logging.
func (a *Accounts) Assessments(ctx context.Context) ([]UserAssessment, error) {
	user, err := a.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	q := Query{
		Embed:      resultsEmbed,
		OrderBy:    "created_at",
		Descending: true,
	}.Eq("user_id", user.ID.String())

	raw, err := a.client.Tables().Select(ctx, assessmentsTable, q)
	if err != nil {
		a.logger.Warn("assessment fetch failed, returning empty list", "user", user.ID, "error", err)
		return []UserAssessment{}, nil
	}

	assessments, err := decodeAssessments(raw)
	if err != nil {
		a.logger.Warn("assessment decode failed, returning empty list", "user", user.ID, "error", err)
		return []UserAssessment{}, nil
	}

	return assessments, nil
}
