package mettle

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrNotAuthenticated is returned when an operation that needs a user is
// attempted without a session. It is raised locally, before any network
// call is made.
var ErrNotAuthenticated = goerrors.New("not authenticated", goerrors.CategoryAuth).
	WithTextCode("NOT_AUTHENTICATED").
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is the normalized form of a backend credential
// rejection.
var ErrInvalidCredentials = goerrors.New("invalid login credentials", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionExpired is returned when the stored session can no longer be
// refreshed.
var ErrSessionExpired = goerrors.New("session expired", goerrors.CategoryAuth).
	WithTextCode("SESSION_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrBackendUnavailable covers transport-level failures talking to the
// hosted service.
var ErrBackendUnavailable = goerrors.New("backend request failed", goerrors.CategoryOperation).
	WithTextCode("BACKEND_UNAVAILABLE")

// ErrMissingConfig is returned by constructors when the backend URL or
// API key is absent. Callers treat this as startup-fatal.
var ErrMissingConfig = goerrors.New("missing backend configuration", goerrors.CategoryBadInput).
	WithTextCode("MISSING_CONFIG").
	WithCode(goerrors.CodeBadRequest)

// GenericAuthMessage is shown when the backend gives us nothing better.
const GenericAuthMessage = "Something went wrong. Please try again."

// normalizeAuthError wraps a backend failure into the module's taxonomy,
// keeping the backend-supplied message when one exists so it can be
// surfaced inline.
func normalizeAuthError(err error, fallback string) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = fallback
	}

	return goerrors.Wrap(err, goerrors.CategoryAuth, msg).
		WithCode(goerrors.CodeUnauthorized)
}

// UserMessage extracts a message suitable for inline display, falling
// back to a generic string when the error carries none.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}

	return GenericAuthMessage
}

// IsNotAuthenticated checks for the locally raised missing-auth condition.
func IsNotAuthenticated(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == "NOT_AUTHENTICATED"
	}

	return strings.Contains(err.Error(), "not authenticated")
}

// IsCredentialError checks whether the backend rejected the supplied
// credentials.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == "INVALID_CREDENTIALS" {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "invalid login credentials")
}
