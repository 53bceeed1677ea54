package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-authgate"
)

const testSigningKey = "test-signing-key-0123456789"

// baseTime is a whole minute so stored timestamps compare cleanly
var baseTime = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func testOptions() auth.Options {
	opts := auth.DefaultOptions()
	opts.SigningKey = testSigningKey
	opts.Issuer = "test-issuer"
	opts.PasswordCost = bcrypt.MinCost
	return opts
}

// MockUserStore implements auth.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserStore) FindByResetDigest(ctx context.Context, digest string, now time.Time) (*auth.User, error) {
	args := m.Called(ctx, digest, now)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserStore) Create(ctx context.Context, fields auth.UserFields) (*auth.User, error) {
	args := m.Called(ctx, fields)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserStore) Save(ctx context.Context, user *auth.User, opts auth.SaveOptions) error {
	args := m.Called(ctx, user, opts)
	return args.Error(0)
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// captureNotifier keeps every message it is asked to send
type captureNotifier struct {
	mu   sync.Mutex
	msgs []auth.Message
	err  error
}

func (n *captureNotifier) Send(_ context.Context, msg auth.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *captureNotifier) last(t *testing.T) auth.Message {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.msgs, "no message was sent")
	return n.msgs[len(n.msgs)-1]
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// newTestRepo opens a migrated in-memory sqlite store
func newTestRepo(t *testing.T, opts auth.Options) auth.RepositoryManager {
	t.Helper()

	db, err := auth.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := auth.NewRepositoryManager(db, auth.NewCredentialVerifier(opts), opts)
	require.NoError(t, repo.Validate())
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

// testEnv is a fully wired Auther on sqlite with a controllable clock
type testEnv struct {
	opts     auth.Options
	repo     auth.RepositoryManager
	auther   *auth.Auther
	gate     *auth.AccessGate
	notifier *captureNotifier
	clock    *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	opts := testOptions()
	repo := newTestRepo(t, opts)
	clock := newFakeClock(baseTime)
	notifier := &captureNotifier{}

	auther, err := auth.NewAuthenticator(opts, repo.Users(), auth.NewCredentialVerifier(opts), notifier)
	require.NoError(t, err)
	auther.WithClock(clock.Now)
	repo.Users().WithClock(clock.Now)

	gate := auth.NewAccessGate(opts, auther.TokenService(), repo.Users())

	return &testEnv{
		opts:     opts,
		repo:     repo,
		auther:   auther,
		gate:     gate,
		notifier: notifier,
		clock:    clock,
	}
}

func (e *testEnv) signup(t *testing.T, name, email, password string) *auth.AuthResult {
	t.Helper()
	res, err := e.auther.Signup(context.Background(), auth.SignupRequest{
		Name:            name,
		Email:           email,
		Password:        password,
		PasswordConfirm: password,
	})
	require.NoError(t, err)
	return res
}
