package mettle

import (
	"context"
	"net/url"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// LoginState is the login form's lifecycle state.
type LoginState = string

const (
	// LoginIdle accepts input.
	LoginIdle LoginState = "idle"
	// LoginLoading has a submission in flight.
	LoginLoading LoginState = "loading"
	// LoginError shows an inline message with the form re-enabled.
	LoginError LoginState = "error"
)

// LoginPayload is the credential form's content.
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules. Format validation is deferred to
// the backend; only presence is checked here.
func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required),
		validation.Field(&p.Password, validation.Required),
	)
}

// LoginFlow models the credential form: idle → loading → {redirect,
// error}, and error → loading again on retry. A successful submission
// navigates to the redirect target carried in the page's query state,
// defaulting to the dashboard, then refreshes route data. Failure keeps
// the user on the page with the backend's message inline.
type LoginFlow struct {
	accounts *Accounts
	nav      Navigator
	redirect string
	logger   Logger

	mu      sync.Mutex
	state   LoginState
	message string
}

// NewLoginFlow builds the flow; query carries the page's query state.
func NewLoginFlow(accounts *Accounts, nav Navigator, query url.Values) *LoginFlow {
	return &LoginFlow{
		accounts: accounts,
		nav:      nav,
		redirect: RedirectTarget(query),
		logger:   defLogger{},
		state:    LoginIdle,
	}
}

func (f *LoginFlow) WithLogger(logger Logger) *LoginFlow {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// State returns the form's lifecycle state.
func (f *LoginFlow) State() LoginState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// ErrorMessage returns the inline message shown in the error state.
func (f *LoginFlow) ErrorMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Redirect returns the resolved post-login destination.
func (f *LoginFlow) Redirect() string {
	return f.redirect
}

// Submit validates and sends the credentials. A submission already in
// flight rejects re-entry; an error state accepts a retry.
func (f *LoginFlow) Submit(ctx context.Context, payload LoginPayload) error {
	f.mu.Lock()
	if f.state == LoginLoading {
		f.mu.Unlock()
		return goerrors.New("submission already in flight", goerrors.CategoryOperation)
	}
	f.state = LoginLoading
	f.message = ""
	f.mu.Unlock()

	fail := func(err error) error {
		f.mu.Lock()
		f.state = LoginError
		f.message = UserMessage(err)
		f.mu.Unlock()
		return err
	}

	if err := payload.Validate(); err != nil {
		return fail(goerrors.Wrap(err, goerrors.CategoryValidation, "email and password are required"))
	}

	if _, err := f.accounts.SignIn(ctx, payload.Email, payload.Password); err != nil {
		f.logger.Info("login rejected", "email", payload.Email)
		return fail(err)
	}

	f.mu.Lock()
	f.state = LoginIdle
	f.mu.Unlock()

	if f.nav != nil {
		f.nav.Navigate(f.redirect)
		f.nav.Refresh()
	}

	return nil
}
