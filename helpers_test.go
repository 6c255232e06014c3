package authcore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/password"
)

var testSecret = []byte("authcore-test-secret-0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memIdentityStore struct {
	mu       sync.Mutex
	users    map[string]User
	byEmail  map[string]string
	bySocial map[string]string
	next     int
	findErr  error
	upgrades int
}

func newMemIdentityStore() *memIdentityStore {
	return &memIdentityStore{
		users:    map[string]User{},
		byEmail:  map[string]string{},
		bySocial: map[string]string{},
	}
}

func (m *memIdentityStore) nextID() string {
	m.next++
	return fmt.Sprintf("u%d", m.next)
}

func (m *memIdentityStore) FindByID(_ context.Context, userID string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return User{}, m.findErr
	}
	u, ok := m.users[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memIdentityStore) FindByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return User{}, m.findErr
	}
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *memIdentityStore) CreateUser(_ context.Context, in NewUser) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[in.Email]; ok {
		return User{}, ErrEmailTaken
	}
	u := User{
		ID:           m.nextID(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		UserType:     in.UserType,
		Active:       in.Active,
	}
	m.users[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return u, nil
}

func (m *memIdentityStore) CreateOrGetByExternalIdentity(_ context.Context, id ExternalIdentity) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := id.Provider + "|" + id.SubjectID
	if uid, ok := m.bySocial[key]; ok {
		return m.users[uid], false, nil
	}
	if _, ok := m.byEmail[id.Email]; ok && id.Email != "" {
		return User{}, false, ErrEmailTaken
	}
	u := User{
		ID:         m.nextID(),
		Email:      id.Email,
		UserType:   UserTypeCollector,
		Active:     true,
		SocialType: id.Provider,
		SocialID:   id.SubjectID,
	}
	m.users[u.ID] = u
	m.bySocial[key] = u.ID
	if u.Email != "" {
		m.byEmail[u.Email] = u.ID
	}
	return u, true, nil
}

func (m *memIdentityStore) SetActive(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Active = true
	m.users[userID] = u
	return nil
}

func (m *memIdentityStore) StoredRefreshToken(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	return u.RefreshToken, nil
}

func (m *memIdentityStore) SetStoredRefreshToken(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.RefreshToken = token
	m.users[userID] = u
	return nil
}

func (m *memIdentityStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	u.PasswordHash = hash
	m.users[userID] = u
	m.upgrades++
	return nil
}

func (m *memIdentityStore) user(id string) User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

// addUser stores an active password user hashed with the test parameters.
func (m *memIdentityStore) addUser(t testing.TB, email, plain string) User {
	t.Helper()
	h, err := password.NewArgon2(testPasswordConfig())
	if err != nil {
		t.Fatalf("argon2: %v", err)
	}
	hash, err := h.Hash(plain)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := m.CreateUser(context.Background(), NewUser{
		Email:        email,
		PasswordHash: hash,
		UserType:     UserTypeArtist,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

type recordedJob struct {
	name string
	args []string
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []recordedJob
	err  error
}

func (d *recordingDispatcher) Enqueue(_ context.Context, job string, args ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, recordedJob{name: job, args: append([]string(nil), args...)})
	return nil
}

func (d *recordingDispatcher) last(t *testing.T) recordedJob {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.jobs) == 0 {
		t.Fatal("no job dispatched")
	}
	return d.jobs[len(d.jobs)-1]
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

func testPasswordConfig() password.Config {
	return password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = append([]byte(nil), testSecret...)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.EmailVerification.VerifyURL = "https://app.example.com/verify"
	cfg.Tasks.RetryDelay = time.Millisecond
	return cfg
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type testEnv struct {
	engine     *Engine
	store      *memIdentityStore
	dispatcher *recordingDispatcher
	clock      *testClock
	mr         *miniredis.Miniredis
}

func newTestEnv(t testing.TB, mutate func(*Config, *Builder)) *testEnv {
	t.Helper()
	mr, rdb := newTestRedis(t)
	env := &testEnv{
		store:      newMemIdentityStore(),
		dispatcher: &recordingDispatcher{},
		clock:      newTestClock(),
		mr:         mr,
	}
	cfg := testConfig()
	b := New().
		WithRedis(rdb).
		WithIdentityStore(env.store).
		WithDispatcher(env.dispatcher).
		WithClock(env.clock.Now)
	if mutate != nil {
		mutate(&cfg, b)
	}
	engine, err := b.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}
