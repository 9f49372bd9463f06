package mettle_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mettle "github.com/mettlehq/go-mettle"
)

func newAccountsFixture() (*mockBackend, *mettle.Accounts) {
	backend := newMockBackend()
	accounts := mettle.NewAccounts(backend).WithLogger(quietLogger{})
	return backend, accounts
}

func authedSession(userID uuid.UUID) *mettle.Session {
	return &mettle.Session{
		AccessToken: "access-token",
		User:        &mettle.User{ID: userID, Email: "ada@example.com"},
	}
}

func TestAccountsSignInNormalizesErrors(t *testing.T) {
	backend, accounts := newAccountsFixture()

	backend.auth.On("SignIn", mock.Anything, "ada@example.com", "wrong").
		Return((*mettle.Session)(nil), errors.New("Invalid login credentials")).Once()

	_, err := accounts.SignIn(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "Invalid login credentials", richErr.Message)
	assert.Equal(t, goerrors.CategoryAuth, richErr.Category)
}

func TestAccountsSignInPassesSessionThrough(t *testing.T) {
	backend, accounts := newAccountsFixture()

	session := authedSession(uuid.New())
	backend.auth.On("SignIn", mock.Anything, "ada@example.com", "secret123").
		Return(session, nil).Once()

	got, err := accounts.SignIn(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, session, got)
}

func TestAccountsUpdatePasswordRejectsAnonymousLocally(t *testing.T) {
	backend, accounts := newAccountsFixture()

	backend.auth.On("Session", mock.Anything).Return((*mettle.Session)(nil), nil).Once()

	err := accounts.UpdatePassword(context.Background(), "newsecret")
	require.Error(t, err)
	assert.True(t, mettle.IsNotAuthenticated(err))
	backend.auth.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything)
}

func TestAccountsCurrentSessionAnonymousIsNotAnError(t *testing.T) {
	backend, accounts := newAccountsFixture()

	backend.auth.On("Session", mock.Anything).Return((*mettle.Session)(nil), nil).Once()

	session, err := accounts.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestAccountsProfileFetch(t *testing.T) {
	backend, accounts := newAccountsFixture()
	userID := uuid.New()

	backend.auth.On("Session", mock.Anything).Return(authedSession(userID), nil).Once()
	backend.tables.On("SelectSingle", mock.Anything, "user_profiles", mock.MatchedBy(func(q mettle.Query) bool {
		return q.Filters["id"] == userID.String()
	})).Return([]byte(`{"id":"`+userID.String()+`","email":"ada@example.com","display_name":"Ada"}`), nil).Once()

	profile, err := accounts.Profile(context.Background())
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, userID, profile.ID)
	require.NotNil(t, profile.DisplayName)
	assert.Equal(t, "Ada", *profile.DisplayName)
	backend.tables.AssertExpectations(t)
}

func TestAccountsProfileRejectsAnonymousLocally(t *testing.T) {
	backend, accounts := newAccountsFixture()

	backend.auth.On("Session", mock.Anything).Return((*mettle.Session)(nil), nil).Once()

	_, err := accounts.Profile(context.Background())
	require.Error(t, err)
	assert.True(t, mettle.IsNotAuthenticated(err))
	backend.tables.AssertNotCalled(t, "SelectSingle", mock.Anything, mock.Anything, mock.Anything)
}

func TestAccountsProfileFailsSoftOnFetchError(t *testing.T) {
	backend, accounts := newAccountsFixture()

	backend.auth.On("Session", mock.Anything).Return(authedSession(uuid.New()), nil).Once()
	backend.tables.On("SelectSingle", mock.Anything, "user_profiles", mock.Anything).
		Return([]byte(nil), errors.New("backend down")).Once()

	profile, err := accounts.Profile(context.Background())
	require.NoError(t, err, "read failures degrade instead of erroring")
	assert.Nil(t, profile)
}

func TestAccountsProfileFailsSoftOnGarbageRow(t *testing.T) {
	backend, accounts := newAccountsFixture()

	backend.auth.On("Session", mock.Anything).Return(authedSession(uuid.New()), nil).Once()
	backend.tables.On("SelectSingle", mock.Anything, "user_profiles", mock.Anything).
		Return([]byte(`not json`), nil).Once()

	profile, err := accounts.Profile(context.Background())
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestAccountsUpdateProfile(t *testing.T) {
	backend, accounts := newAccountsFixture()
	userID := uuid.New()

	backend.auth.On("Session", mock.Anything).Return(authedSession(userID), nil).Once()
	backend.tables.On("Update", mock.Anything, "user_profiles", mock.Anything, mock.MatchedBy(func(u mettle.ProfileUpdate) bool {
		// the phone must be normalized to E.164 before it hits the wire
		return u.Phone != nil && *u.Phone == "+14155552671"
	})).Return([]byte(`[{"id":"`+userID.String()+`","display_name":"Ada","phone":"+14155552671"}]`), nil).Once()

	update := mettle.ProfileUpdate{
		DisplayName: strptr("Ada"),
		Phone:       strptr("(415) 555-2671"),
	}

	profile, err := accounts.UpdateProfile(context.Background(), update)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "+14155552671", *profile.Phone)
	backend.tables.AssertExpectations(t)
}

func TestAccountsUpdateProfileValidationSurfaced(t *testing.T) {
	backend, accounts := newAccountsFixture()

	backend.auth.On("Session", mock.Anything).Return(authedSession(uuid.New()), nil).Once()

	_, err := accounts.UpdateProfile(context.Background(), mettle.ProfileUpdate{
		Phone: strptr("not-a-number"),
	})

	require.Error(t, err, "write failures are surfaced, not degraded")
	backend.tables.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAccountsUpdateProfileWriteErrorSurfaced(t *testing.T) {
	backend, accounts := newAccountsFixture()

	backend.auth.On("Session", mock.Anything).Return(authedSession(uuid.New()), nil).Once()
	backend.tables.On("Update", mock.Anything, "user_profiles", mock.Anything, mock.Anything).
		Return([]byte(nil), errors.New("constraint violation")).Once()

	_, err := accounts.UpdateProfile(context.Background(), mettle.ProfileUpdate{DisplayName: strptr("Ada")})
	require.Error(t, err)
}

func TestAccountsAssessmentsQueryShape(t *testing.T) {
	backend, accounts := newAccountsFixture()
	userID := uuid.New()
	assessmentID := uuid.New()

	backend.auth.On("Session", mock.Anything).Return(authedSession(userID), nil).Once()
	backend.tables.On("Select", mock.Anything, "assessments", mock.MatchedBy(func(q mettle.Query) bool {
		return q.Embed == "results(overallScore,tier)" &&
			q.OrderBy == "created_at" &&
			q.Descending &&
			q.Filters["user_id"] == userID.String()
	})).Return([]byte(`[
		{"id":"`+assessmentID.String()+`","user_id":"`+userID.String()+`","company_name":"Initech","role_title":"Engineer","status":"completed","results":{"overallScore":87.5,"tier":"strong"}},
		{"id":"`+uuid.New().String()+`","user_id":"`+userID.String()+`","company_name":"Globex","role_title":"Manager","status":"draft"}
	]`), nil).Once()

	assessments, err := accounts.Assessments(context.Background())
	require.NoError(t, err)
	require.Len(t, assessments, 2)

	completed := assessments[0]
	assert.Equal(t, assessmentID, completed.ID)
	assert.Equal(t, mettle.AssessmentCompleted, completed.Status)
	require.NotNil(t, completed.ResultScore)
	assert.InDelta(t, 87.5, *completed.ResultScore, 0.001)
	require.NotNil(t, completed.ResultTier)
	assert.Equal(t, "strong", *completed.ResultTier)

	draft := assessments[1]
	assert.Equal(t, mettle.AssessmentDraft, draft.Status)
	assert.Nil(t, draft.ResultScore, "no linked result leaves the score nil")
	assert.Nil(t, draft.ResultTier)

	backend.tables.AssertExpectations(t)
}

func TestAccountsAssessmentsFailSoftToEmptyList(t *testing.T) {
	backend, accounts := newAccountsFixture()

	backend.auth.On("Session", mock.Anything).Return(authedSession(uuid.New()), nil).Once()
	backend.tables.On("Select", mock.Anything, "assessments", mock.Anything).
		Return([]byte(nil), errors.New("backend down")).Once()

	assessments, err := accounts.Assessments(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, assessments)
	assert.Empty(t, assessments)
}

func TestAccountsDeleteAccount(t *testing.T) {
	var gotAuth string
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	backend, accounts := newAccountsFixture()
	accounts.WithDeleteEndpoint(server.URL + "/api/account")

	backend.auth.On("Session", mock.Anything).Return(authedSession(uuid.New()), nil).Once()
	backend.auth.On("SignOut", mock.Anything).Return(nil).Once()

	require.NoError(t, accounts.DeleteAccount(context.Background()))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "Bearer access-token", gotAuth)
	backend.auth.AssertExpectations(t)
}

func TestAccountsDeleteAccountSurfacesEndpointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"deletion is disabled"}`))
	}))
	defer server.Close()

	backend, accounts := newAccountsFixture()
	accounts.WithDeleteEndpoint(server.URL + "/api/account")

	backend.auth.On("Session", mock.Anything).Return(authedSession(uuid.New()), nil).Once()

	err := accounts.DeleteAccount(context.Background())
	require.Error(t, err)
	assert.Equal(t, "deletion is disabled", mettle.UserMessage(err))
	backend.auth.AssertNotCalled(t, "SignOut", mock.Anything)
}

func TestAccountsDeleteAccountRequiresSession(t *testing.T) {
	backend, accounts := newAccountsFixture()

	backend.auth.On("Session", mock.Anything).Return((*mettle.Session)(nil), nil).Once()

	err := accounts.DeleteAccount(context.Background())
	require.Error(t, err)
	assert.True(t, mettle.IsNotAuthenticated(err))
}

// routedBackend is a backend that knows its own deletion endpoint, the
// way *Client does.
type routedBackend struct {
	*mockBackend
	deleteURL string
}

func (r *routedBackend) AccountDeleteURL() string { return r.deleteURL }

func TestAccountsAdoptClientDeleteEndpoint(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	backend := &routedBackend{
		mockBackend: newMockBackend(),
		deleteURL:   server.URL + "/api/account",
	}
	accounts := mettle.NewAccounts(backend).WithLogger(quietLogger{})

	backend.auth.On("Session", mock.Anything).Return(authedSession(uuid.New()), nil).Once()
	backend.auth.On("SignOut", mock.Anything).Return(nil).Once()

	require.NoError(t, accounts.DeleteAccount(context.Background()))
	assert.Equal(t, http.MethodDelete, gotMethod)
	backend.auth.AssertExpectations(t)
}

func TestAccountsDeleteAccountWithoutEndpoint(t *testing.T) {
	backend, accounts := newAccountsFixture()

	backend.auth.On("Session", mock.Anything).Return(authedSession(uuid.New()), nil).Once()

	err := accounts.DeleteAccount(context.Background())
	require.Error(t, err)

	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, "MISSING_CONFIG", rich.TextCode)
	backend.auth.AssertNotCalled(t, "SignOut", mock.Anything)
}
