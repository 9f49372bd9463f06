package mettle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	authPath = "/auth/v1"
	restPath = "/rest/v1"
)

// Client is the general-purpose handle to the hosted auth/database
// service. It keeps the current session in memory; use NewBrowserClient
// when the session must survive the process (or request) boundary.
type Client struct {
	baseURL   string
	apiKey    string
	deleteURL string
	http      *http.Client
	logger    Logger
	hub       *AuthStateHub

	mu      sync.RWMutex
	session *Session
}

var _ BackendClient = (*Client)(nil)
var _ AuthAPI = (*Client)(nil)

// ClientOption customizes client construction.
type ClientOption func(*Client)

// WithHTTPClient replaces the transport used for backend calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a backend client from cfg. A missing endpoint or API
// key is a configuration error the host should treat as fatal.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.GetBackendURL()) == "" || strings.TrimSpace(cfg.GetAPIKey()) == "" {
		return nil, ErrMissingConfig
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.GetBackendURL(), "/"),
		apiKey:  cfg.GetAPIKey(),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  defLogger{},
		hub:     NewAuthStateHub(),
	}
	c.deleteURL = resolveAppRoute(c.baseURL, cfg.GetAccountDeleteURL())

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Auth exposes the authentication surface.
func (c *Client) Auth() AuthAPI {
	return c
}

// Tables exposes the database surface.
func (c *Client) Tables() TableAPI {
	return &tableClient{client: c}
}

// AccountDeleteURL reports the absolute URL of the application's
// account-deletion route. NewAccounts adopts it as the DeleteAccount
// endpoint.
func (c *Client) AccountDeleteURL() string {
	return c.deleteURL
}

// resolveAppRoute anchors a relative application route on the backend
// host. Absolute routes pass through untouched.
func resolveAppRoute(baseURL, route string) string {
	if route == "" {
		route = DefaultAccountDeleteRoute
	}
	if strings.Contains(route, "://") {
		return route
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return baseURL + route
}

// CurrentSession returns the in-memory session copy, nil when anonymous.
func (c *Client) CurrentSession() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// wire shapes

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionEnvelope struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int64           `json:"expires_in"`
	User         json.RawMessage `json:"user"`
}

func (e sessionEnvelope) toSession() (*Session, error) {
	s := &Session{
		AccessToken:  e.AccessToken,
		RefreshToken: e.RefreshToken,
		TokenType:    e.TokenType,
	}

	if e.ExpiresIn > 0 {
		s.ExpiresAt = time.Now().Add(time.Duration(e.ExpiresIn) * time.Second)
	} else if exp, ok := TokenExpiry(e.AccessToken); ok {
		s.ExpiresAt = exp
	}

	if len(e.User) > 0 {
		user := &User{}
		if err := json.Unmarshal(e.User, user); err != nil {
			return nil, err
		}
		s.User = user
	}

	return s, nil
}

type errorEnvelope struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
}

func (e errorEnvelope) message() string {
	for _, m := range []string{e.ErrorDescription, e.Message, e.Msg, e.Error} {
		if strings.TrimSpace(m) != "" {
			return m
		}
	}
	return ""
}

// SignUp registers a new account and returns the issued session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	body, err := c.do(ctx, http.MethodPost, authPath+"/signup", nil, credentialsPayload{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	session, err := decodeSession(body)
	if err != nil {
		return nil, err
	}

	c.setSession(session)
	c.hub.Emit(EventSignedIn, session)
	return session, nil
}

// SignIn exchanges credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body, err := c.do(ctx, http.MethodPost, authPath+"/token", url.Values{
		"grant_type": []string{"password"},
	}, credentialsPayload{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	session, err := decodeSession(body)
	if err != nil {
		return nil, err
	}

	c.setSession(session)
	c.hub.Emit(EventSignedIn, session)
	return session, nil
}

// RefreshSession rotates the access token using the refresh token.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	current := c.CurrentSession()
	if current == nil || current.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}

	body, err := c.do(ctx, http.MethodPost, authPath+"/token", url.Values{
		"grant_type": []string{"refresh_token"},
	}, map[string]string{"refresh_token": current.RefreshToken})
	if err != nil {
		return nil, err
	}

	session, err := decodeSession(body)
	if err != nil {
		return nil, err
	}

	if session.User == nil {
		session.User = current.User
	}

	c.setSession(session)
	c.hub.Emit(EventTokenRefreshed, session)
	return session, nil
}

// SignOut revokes the session server-side and drops the local copy. The
// signed-out notification fires even when the revocation call fails, so
// UI state never outlives the local session.
func (c *Client) SignOut(ctx context.Context) error {
	session := c.CurrentSession()

	c.setSession(nil)
	defer c.hub.Emit(EventSignedOut, nil)

	if session == nil {
		return nil
	}

	if _, err := c.doAuthed(ctx, http.MethodPost, authPath+"/logout", nil, nil, session); err != nil {
		c.logger.Warn("sign-out revocation failed", "error", err)
		return err
	}

	return nil
}

// ResetPasswordForEmail asks the backend to send a recovery link.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email string) error {
	_, err := c.do(ctx, http.MethodPost, authPath+"/recover", nil, map[string]string{"email": email})
	return err
}

// UpdatePassword changes the authenticated user's password.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	session := c.CurrentSession()
	if session == nil {
		return ErrNotAuthenticated
	}

	_, err := c.doAuthed(ctx, http.MethodPut, authPath+"/user", nil, map[string]string{
		"password": newPassword,
	}, session)
	if err != nil {
		return err
	}

	c.hub.Emit(EventUserUpdated, session)
	return nil
}

// Session returns the current session, refreshing it when expired. A nil
// session with a nil error means anonymous.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	session := c.CurrentSession()
	if session == nil {
		return nil, nil
	}

	if !session.Expired() {
		return session, nil
	}

	refreshed, err := c.RefreshSession(ctx)
	if err != nil {
		c.setSession(nil)
		c.hub.Emit(EventSignedOut, nil)
		return nil, ErrSessionExpired
	}

	return refreshed, nil
}

// User fetches the authoritative user record for the current session.
func (c *Client) User(ctx context.Context) (*User, error) {
	session, err := c.Session(ctx)
	if err != nil {
		return nil, err
	}

	if session == nil {
		return nil, nil
	}

	body, err := c.doAuthed(ctx, http.MethodGet, authPath+"/user", nil, nil, session)
	if err != nil {
		return nil, err
	}

	user := &User{}
	if err := json.Unmarshal(body, user); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not decode user")
	}

	return user, nil
}

// OnAuthStateChange registers fn for future auth-state notifications.
func (c *Client) OnAuthStateChange(fn AuthCallback) Subscription {
	return c.hub.Subscribe(fn)
}

// request plumbing

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	return c.doAuthed(ctx, method, path, query, payload, c.CurrentSession())
}

func (c *Client) doAuthed(ctx context.Context, method, path string, query url.Values, payload any, session *Session) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not encode request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not build request")
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	token := c.apiKey
	if session != nil && session.AccessToken != "" {
		token = session.AccessToken
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, GenericAuthMessage).
			WithTextCode("BACKEND_UNAVAILABLE").
			WithMetadata(map[string]any{"cause": err.Error()})
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, GenericAuthMessage)
	}

	if res.StatusCode >= 400 {
		return nil, c.decodeError(res.StatusCode, raw)
	}

	return raw, nil
}

func (c *Client) decodeError(status int, raw []byte) error {
	envelope := errorEnvelope{}
	_ = json.Unmarshal(raw, &envelope)

	msg := envelope.message()
	if msg == "" {
		msg = GenericAuthMessage
	}

	category := goerrors.CategoryAuth
	code := goerrors.CodeUnauthorized
	switch {
	case status == http.StatusNotFound:
		category = goerrors.CategoryNotFound
		code = goerrors.CodeNotFound
	case status >= 500:
		category = goerrors.CategoryOperation
		code = goerrors.CodeInternal
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		category = goerrors.CategoryAuth
		code = goerrors.CodeBadRequest
	}

	return goerrors.New(msg, category).
		WithCode(code).
		WithMetadata(map[string]any{"status": status})
}

func decodeSession(body []byte) (*Session, error) {
	envelope := sessionEnvelope{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not decode session")
	}

	if envelope.AccessToken == "" {
		return nil, goerrors.New("backend returned no session", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	return envelope.toSession()
}

// tableClient implements TableAPI over the backend's REST surface.
type tableClient struct {
	client *Client
}

var _ TableAPI = (*tableClient)(nil)

func (t *tableClient) Select(ctx context.Context, table string, q Query) ([]byte, error) {
	return t.client.do(ctx, http.MethodGet, restPath+"/"+table, q.encode(), nil)
}

func (t *tableClient) SelectSingle(ctx context.Context, table string, q Query) ([]byte, error) {
	q.Limit = 1
	raw, err := t.client.do(ctx, http.MethodGet, restPath+"/"+table, q.encode(), nil)
	if err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not decode rows")
	}

	if len(rows) == 0 {
		return nil, goerrors.New("row not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound)
	}

	return rows[0], nil
}

func (t *tableClient) Update(ctx context.Context, table string, q Query, values any) ([]byte, error) {
	params := q.encode()
	return t.client.do(ctx, http.MethodPatch, restPath+"/"+table, params, values)
}

func (t *tableClient) Insert(ctx context.Context, table string, values any) ([]byte, error) {
	return t.client.do(ctx, http.MethodPost, restPath+"/"+table, nil, values)
}

// encode renders the query in the backend's URL parameter language.
func (q Query) encode() url.Values {
	params := url.Values{}

	selectExpr := q.Columns
	if selectExpr == "" {
		selectExpr = "*"
	}
	if q.Embed != "" {
		selectExpr = fmt.Sprintf("%s,%s", selectExpr, q.Embed)
	}
	params.Set("select", selectExpr)

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params.Set(k, "eq."+q.Filters[k])
	}

	if q.OrderBy != "" {
		direction := "asc"
		if q.Descending {
			direction = "desc"
		}
		params.Set("order", fmt.Sprintf("%s.%s", q.OrderBy, direction))
	}

	if q.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", q.Limit))
	}

	return params
}
