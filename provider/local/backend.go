package local

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	mettle "github.com/mettlehq/go-mettle"
)

// Backend implements the hosted service's auth and table surfaces in
// process. One Backend models one browser context: it holds at most one
// live session, like the cookie-aware client variant.
type Backend struct {
	store    *Store
	hub      *mettle.AuthStateHub
	logger   mettle.Logger
	secret   []byte
	tokenTTL time.Duration

	mu      sync.RWMutex
	session *mettle.Session
}

var _ mettle.BackendClient = (*Backend)(nil)
var _ mettle.AuthAPI = (*Backend)(nil)
var _ mettle.AccountDeleter = (*Backend)(nil)

// BackendOption customizes the local backend.
type BackendOption func(*Backend)

// WithSigningSecret sets the HS256 secret used to mint session tokens.
func WithSigningSecret(secret []byte) BackendOption {
	return func(b *Backend) {
		if len(secret) > 0 {
			b.secret = secret
		}
	}
}

// WithTokenTTL sets the minted token lifetime.
func WithTokenTTL(ttl time.Duration) BackendOption {
	return func(b *Backend) {
		if ttl > 0 {
			b.tokenTTL = ttl
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger mettle.Logger) BackendOption {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBackend builds the in-process backend over store.
func NewBackend(store *Store, opts ...BackendOption) *Backend {
	b := &Backend{
		store:    store,
		hub:      mettle.NewAuthStateHub(),
		logger:   noopLogger{},
		secret:   []byte("mettle-local-dev-secret"),
		tokenTTL: time.Hour,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Auth exposes the authentication surface.
func (b *Backend) Auth() mettle.AuthAPI {
	return b
}

// Tables exposes the database surface.
func (b *Backend) Tables() mettle.TableAPI {
	return &tableBackend{backend: b}
}

// Store exposes the persistence layer for callers that seed or inspect
// rows directly.
func (b *Backend) Store() *Store {
	return b.store
}

// Validator returns a validator for tokens this backend minted.
func (b *Backend) Validator() mettle.TokenValidator {
	return mettle.NewHMACValidator(b.secret)
}

func (b *Backend) currentSession() *mettle.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

func (b *Backend) setSession(s *mettle.Session) {
	b.mu.Lock()
	b.session = s
	b.mu.Unlock()
}

// SignUp registers the account and its profile row in one transaction.
func (b *Backend) SignUp(ctx context.Context, email, password string) (*mettle.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, goerrors.New("email and password are required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &AuthUser{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
	}

	err = b.store.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := b.store.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "email is already registered")
		}

		profile := &Profile{ID: user.ID, Email: user.Email}
		if _, err := b.store.Profiles().CreateTx(ctx, tx, profile); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create profile")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	session, err := b.mintSession(user)
	if err != nil {
		return nil, err
	}

	b.setSession(session)
	b.hub.Emit(mettle.EventSignedIn, session)
	return session, nil
}

// SignIn verifies credentials and establishes a session.
func (b *Backend) SignIn(ctx context.Context, email, password string) (*mettle.Session, error) {
	user, err := b.findByEmail(ctx, email)
	if err != nil {
		return nil, ErrMismatchedHashAndPassword
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, err
	}

	session, err := b.mintSession(user)
	if err != nil {
		return nil, err
	}

	b.setSession(session)
	b.hub.Emit(mettle.EventSignedIn, session)
	return session, nil
}

// SignOut drops the session and notifies subscribers.
func (b *Backend) SignOut(ctx context.Context) error {
	b.setSession(nil)
	b.hub.Emit(mettle.EventSignedOut, nil)
	return nil
}

// ResetPasswordForEmail records a recovery token. There is no mail
// transport locally; the token lands in the log so a developer can
// complete the flow by hand.
func (b *Backend) ResetPasswordForEmail(ctx context.Context, email string) error {
	user, err := b.findByEmail(ctx, email)
	if err != nil {
		// same response whether or not the account exists
		return nil
	}

	now := time.Now()
	user.RecoveryToken = uuid.NewString()
	user.RecoverySent = &now

	if _, err := b.store.Users().Update(ctx, user, repository.UpdateByID(user.ID.String())); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not record recovery token")
	}

	b.logger.Info("password recovery token issued", "email", email, "token", user.RecoveryToken)
	b.hub.Emit(mettle.EventPasswordRecovery, b.currentSession())
	return nil
}

// UpdatePassword rehashes the authenticated user's password.
func (b *Backend) UpdatePassword(ctx context.Context, newPassword string) error {
	session := b.currentSession()
	if session == nil || session.User == nil {
		return mettle.ErrNotAuthenticated
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	user, err := b.findByID(ctx, session.User.ID)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	user.RecoveryToken = ""

	if _, err := b.store.Users().Update(ctx, user, repository.UpdateByID(user.ID.String())); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not update password")
	}

	b.hub.Emit(mettle.EventUserUpdated, session)
	return nil
}

// Session returns the live session, re-minting it when expired so a
// long-running dev session behaves like the hosted refresh flow.
func (b *Backend) Session(ctx context.Context) (*mettle.Session, error) {
	session := b.currentSession()
	if session == nil {
		return nil, nil
	}

	if !session.Expired() {
		return session, nil
	}

	user, err := b.findByID(ctx, session.User.ID)
	if err != nil {
		b.setSession(nil)
		b.hub.Emit(mettle.EventSignedOut, nil)
		return nil, mettle.ErrSessionExpired
	}

	refreshed, err := b.mintSession(user)
	if err != nil {
		return nil, err
	}

	b.setSession(refreshed)
	b.hub.Emit(mettle.EventTokenRefreshed, refreshed)
	return refreshed, nil
}

// User returns the authoritative account record for the session.
func (b *Backend) User(ctx context.Context) (*mettle.User, error) {
	session, err := b.Session(ctx)
	if err != nil {
		return nil, err
	}

	if session == nil {
		return nil, nil
	}

	user, err := b.findByID(ctx, session.User.ID)
	if err != nil {
		return nil, err
	}

	return toUser(user), nil
}

// OnAuthStateChange subscribes fn to auth-state notifications.
func (b *Backend) OnAuthStateChange(fn mettle.AuthCallback) mettle.Subscription {
	return b.hub.Subscribe(fn)
}

// DeleteUser hard-deletes the account and every owned row. When the
// deleted account owns the live session, subscribers see a sign-out.
func (b *Backend) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	err := b.store.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Result)(nil)).
			Where("assessment_id IN (SELECT id FROM assessments WHERE user_id = ?)", userID).
			Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewDelete().Model((*Assessment)(nil)).
			Where("user_id = ?", userID).Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewDelete().Model((*Profile)(nil)).
			Where("id = ?", userID).Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewDelete().Model((*AuthUser)(nil)).
			Where("id = ?", userID).Exec(ctx); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not delete account")
	}

	session := b.currentSession()
	if session != nil && session.User != nil && session.User.ID == userID {
		b.setSession(nil)
		b.hub.Emit(mettle.EventSignedOut, nil)
	}

	return nil
}

// Close releases every subscription.
func (b *Backend) Close() error {
	b.hub.Close()
	return nil
}

func (b *Backend) findByEmail(ctx context.Context, email string) (*AuthUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := b.store.Users().GetByIdentifier(ctx, email)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (b *Backend) findByID(ctx context.Context, id uuid.UUID) (*AuthUser, error) {
	user := &AuthUser{}
	err := b.store.DB().NewSelect().Model(user).
		Where("au.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, goerrors.New("user not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound)
		}
		return nil, err
	}

	return user, nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
