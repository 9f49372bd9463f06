package mettle

import (
	"context"
	"sync"
)

// SessionState is the view-model's notion of the current session.
type SessionState = string

const (
	// SessionLoading means the initial user fetch has not settled yet.
	SessionLoading SessionState = "loading"
	// SessionAuthenticated means a user is present.
	SessionAuthenticated SessionState = "authenticated"
	// SessionAnonymous means no user is present.
	SessionAnonymous SessionState = "anonymous"
)

// Region is a rectangle in screen coordinates, recorded when the menu
// renders and used for outside-pointer detection.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Contains reports whether the point falls inside the region.
func (r Region) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// PointerEvent is a global pointer-down observation.
type PointerEvent struct {
	X float64
	Y float64
}

// SessionSync keeps a mounted view's cached user consistent with the
// backend. The initial fetch seeds the first paint; the auth-state
// subscription is the authoritative path for every later change. Exactly
// one subscription is active per mount and it is released on Unmount, so
// a notification can never mutate a torn-down view.
//
// It also owns the profile menu's transient open/closed state: a
// pointer-down outside the recorded menu region closes it.
type SessionSync struct {
	accounts *Accounts
	nav      Navigator
	logger   Logger

	mu         sync.Mutex
	mounted    bool
	state      SessionState
	user       *User
	sub        Subscription
	menuOpen   bool
	menuRegion *Region
}

// NewSessionSync builds the view-model. Nothing happens until Mount.
func NewSessionSync(accounts *Accounts, nav Navigator) *SessionSync {
	return &SessionSync{
		accounts: accounts,
		nav:      nav,
		logger:   defLogger{},
		state:    SessionLoading,
	}
}

func (s *SessionSync) WithLogger(logger Logger) *SessionSync {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Mount activates the view-model: registers the auth-state subscription
// and issues the initial user fetch asynchronously. Calling Mount on a
// mounted view-model is a no-op.
func (s *SessionSync) Mount(ctx context.Context) {
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = true
	s.state = SessionLoading
	s.sub = s.accounts.OnAuthStateChange(s.onAuthChange)
	s.mu.Unlock()

	go s.initialFetch(ctx)
}

// Unmount deactivates the view-model and releases the subscription. Any
// in-flight fetch or notification that settles afterwards is discarded.
func (s *SessionSync) Unmount() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	sub := s.sub
	s.sub = nil
	s.menuOpen = false
	s.menuRegion = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// State returns the current session state.
func (s *SessionSync) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the cached user copy, nil when anonymous or loading.
func (s *SessionSync) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *SessionSync) initialFetch(ctx context.Context) {
	user, err := s.accounts.CurrentUser(ctx)
	if err != nil {
		s.logger.Warn("initial user fetch failed, rendering anonymous", "error", err)
		user = nil
	}

	s.applyUser(user)
}

func (s *SessionSync) onAuthChange(event AuthEvent, session *Session) {
	if session == nil {
		s.applyUser(nil)
		return
	}
	s.applyUser(session.User)
}

// applyUser overwrites the cached user. Last write wins between the
// initial fetch and racing notifications; both report the same truth.
func (s *SessionSync) applyUser(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted {
		return
	}

	s.user = user
	if user == nil {
		s.state = SessionAnonymous
		s.menuOpen = false
		return
	}
	s.state = SessionAuthenticated
}

// menu handling

// SetMenuRegion records where the menu rendered on screen.
func (s *SessionSync) SetMenuRegion(region Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menuRegion = &region
}

// ToggleMenu flips the menu, only while authenticated and mounted.
func (s *SessionSync) ToggleMenu() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted || s.state != SessionAuthenticated {
		return
	}
	s.menuOpen = !s.menuOpen
}

// MenuOpen reports the menu's transient state.
func (s *SessionSync) MenuOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.menuOpen
}

// HandlePointerDown processes a global pointer-down observation: a hit
// outside the recorded menu region closes the menu, a hit inside leaves
// it open. Unmounted view-models ignore the event.
func (s *SessionSync) HandlePointerDown(ev PointerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted || !s.menuOpen {
		return
	}

	if s.menuRegion != nil && s.menuRegion.Contains(ev.X, ev.Y) {
		return
	}

	s.menuOpen = false
}

// SignOut ends the session, forces the menu closed, clears the cached
// user, then navigates to the landing view and refreshes the current
// route so nothing stale survives.
func (s *SessionSync) SignOut(ctx context.Context) error {
	err := s.accounts.SignOut(ctx)
	if err != nil {
		s.logger.Error("sign-out failed", "error", err)
	}

	s.mu.Lock()
	s.menuOpen = false
	s.user = nil
	if s.mounted {
		s.state = SessionAnonymous
	}
	s.mu.Unlock()

	if s.nav != nil {
		s.nav.Navigate(LandingPath)
		s.nav.Refresh()
	}

	return err
}
