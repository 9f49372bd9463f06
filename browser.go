package mettle

import (
	"context"
	"sync"
	"time"
)

// BrowserClient is the session-persisting variant of Client. It restores
// the session from a SessionStore at construction, writes every session
// change back to the store, and refreshes the access token in the
// background shortly before it expires, emitting TOKEN_REFRESHED to
// subscribers. Close releases the refresh loop and all subscriptions.
type BrowserClient struct {
	*Client

	store     SessionStore
	leeway    time.Duration
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	storeSub  Subscription
}

// BrowserOption customizes the browser client.
type BrowserOption func(*BrowserClient)

// WithRefreshLeeway sets how long before expiry the token is refreshed.
func WithRefreshLeeway(d time.Duration) BrowserOption {
	return func(b *BrowserClient) {
		if d > 0 {
			b.leeway = d
		}
	}
}

// NewBrowserClient builds the session-persisting client variant.
func NewBrowserClient(cfg Config, store SessionStore, opts ...BrowserOption) (*BrowserClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return newBrowserClient(client, store, opts...)
}

// NewBrowserClientFrom wraps an existing client, useful when the caller
// already configured transport or logging options.
func NewBrowserClientFrom(client *Client, store SessionStore, opts ...BrowserOption) (*BrowserClient, error) {
	return newBrowserClient(client, store, opts...)
}

func newBrowserClient(client *Client, store SessionStore, opts ...BrowserOption) (*BrowserClient, error) {
	b := &BrowserClient{
		Client: client,
		store:  store,
		leeway: time.Minute,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	if store != nil {
		if session, err := store.Load(); err != nil {
			client.logger.Warn("could not restore session", "error", err)
		} else if session != nil {
			client.setSession(session)
		}

		b.storeSub = client.OnAuthStateChange(b.persist)
	}

	go b.refreshLoop()

	return b, nil
}

// persist mirrors every auth-state change into the session store.
func (b *BrowserClient) persist(event AuthEvent, session *Session) {
	var err error
	if session == nil {
		err = b.store.Clear()
	} else {
		err = b.store.Save(session)
	}

	if err != nil {
		b.logger.Error("could not persist session", "event", event, "error", err)
	}

	// session changed, recompute the next refresh deadline
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *BrowserClient) refreshLoop() {
	timer := time.NewTimer(b.nextDeadline())
	defer timer.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
		case <-timer.C:
			b.refreshDue()
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(b.nextDeadline())
	}
}

// nextDeadline returns how long to sleep before the next refresh check.
func (b *BrowserClient) nextDeadline() time.Duration {
	session := b.CurrentSession()
	if session == nil || session.ExpiresAt.IsZero() || session.RefreshToken == "" {
		// nothing to refresh, poll lazily for a session to appear
		return time.Minute
	}

	wait := time.Until(session.ExpiresAt) - b.leeway
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

func (b *BrowserClient) refreshDue() {
	session := b.CurrentSession()
	if session == nil || session.RefreshToken == "" || session.ExpiresAt.IsZero() {
		return
	}

	if time.Until(session.ExpiresAt) > b.leeway {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := b.RefreshSession(ctx); err != nil {
		b.logger.Warn("background token refresh failed", "error", err)
	}
}

// Close stops the refresh loop and releases every subscription. The
// client must not be used after Close.
func (b *BrowserClient) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		if b.storeSub != nil {
			b.storeSub.Unsubscribe()
		}
		b.hub.Close()
	})
	return nil
}

// MemorySessionStore is a SessionStore kept in process memory, the
// default for tests and single-process tools.
type MemorySessionStore struct {
	mu      sync.RWMutex
	session *Session
}

var _ SessionStore = (*MemorySessionStore)(nil)

func (m *MemorySessionStore) Load() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, nil
}

func (m *MemorySessionStore) Save(session *Session) error {
	m.mu.Lock()
	m.session = session
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Clear() error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return nil
}
