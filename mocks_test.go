package mettle_test

import (
	"context"
	"sync"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	mettle "github.com/mettlehq/go-mettle"
)

// quietLogger discards output so fail-soft paths don't spam test logs.
type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

// MockAuthAPI implements mettle.AuthAPI. Subscriptions go through a
// real hub so tests can emit notifications with Emit.
type MockAuthAPI struct {
	mock.Mock
	hub *mettle.AuthStateHub
}

func NewMockAuthAPI() *MockAuthAPI {
	return &MockAuthAPI{hub: mettle.NewAuthStateHub()}
}

func (m *MockAuthAPI) Emit(event mettle.AuthEvent, session *mettle.Session) {
	m.hub.Emit(event, session)
}

func (m *MockAuthAPI) SignUp(ctx context.Context, email, password string) (*mettle.Session, error) {
	args := m.Called(ctx, email, password)
	return sessionArg(args.Get(0)), args.Error(1)
}

func (m *MockAuthAPI) SignIn(ctx context.Context, email, password string) (*mettle.Session, error) {
	args := m.Called(ctx, email, password)
	return sessionArg(args.Get(0)), args.Error(1)
}

func (m *MockAuthAPI) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAuthAPI) ResetPasswordForEmail(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockAuthAPI) UpdatePassword(ctx context.Context, newPassword string) error {
	args := m.Called(ctx, newPassword)
	return args.Error(0)
}

func (m *MockAuthAPI) Session(ctx context.Context) (*mettle.Session, error) {
	args := m.Called(ctx)
	return sessionArg(args.Get(0)), args.Error(1)
}

func (m *MockAuthAPI) User(ctx context.Context) (*mettle.User, error) {
	args := m.Called(ctx)
	if u, ok := args.Get(0).(*mettle.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthAPI) OnAuthStateChange(fn mettle.AuthCallback) mettle.Subscription {
	return m.hub.Subscribe(fn)
}

func sessionArg(v any) *mettle.Session {
	if s, ok := v.(*mettle.Session); ok {
		return s
	}
	return nil
}

// MockTableAPI implements mettle.TableAPI
type MockTableAPI struct {
	mock.Mock
}

func (m *MockTableAPI) Select(ctx context.Context, table string, q mettle.Query) ([]byte, error) {
	args := m.Called(ctx, table, q)
	return bytesArg(args.Get(0)), args.Error(1)
}

func (m *MockTableAPI) SelectSingle(ctx context.Context, table string, q mettle.Query) ([]byte, error) {
	args := m.Called(ctx, table, q)
	return bytesArg(args.Get(0)), args.Error(1)
}

func (m *MockTableAPI) Update(ctx context.Context, table string, q mettle.Query, values any) ([]byte, error) {
	args := m.Called(ctx, table, q, values)
	return bytesArg(args.Get(0)), args.Error(1)
}

func (m *MockTableAPI) Insert(ctx context.Context, table string, values any) ([]byte, error) {
	args := m.Called(ctx, table, values)
	return bytesArg(args.Get(0)), args.Error(1)
}

func bytesArg(v any) []byte {
	if b, ok := v.([]byte); ok {
		return b
	}
	return nil
}

// mockBackend bundles the two mocked surfaces behind mettle.BackendClient.
type mockBackend struct {
	auth   *MockAuthAPI
	tables *MockTableAPI
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		auth:   NewMockAuthAPI(),
		tables: &MockTableAPI{},
	}
}

func (b *mockBackend) Auth() mettle.AuthAPI    { return b.auth }
func (b *mockBackend) Tables() mettle.TableAPI { return b.tables }

// MockNavigator records programmatic navigation.
type MockNavigator struct {
	mu        sync.Mutex
	paths     []string
	refreshes int
}

func (m *MockNavigator) Navigate(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
}

func (m *MockNavigator) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
}

func (m *MockNavigator) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

func (m *MockNavigator) Refreshes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshes
}

// MockDeleter implements mettle.AccountDeleter
type MockDeleter struct {
	mock.Mock
}

func (m *MockDeleter) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockContext mocks router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}
