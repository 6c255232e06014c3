package authcore

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

func blacklistKeys(env *testEnv) []string {
	var keys []string
	for _, k := range env.mr.Keys() {
		if strings.HasPrefix(k, "blacklist_token:{") {
			keys = append(keys, k)
		}
	}
	return keys
}

func pendingUser(t *testing.T, env *testEnv, email string) User {
	t.Helper()
	u, err := env.store.CreateUser(context.Background(), NewUser{Email: email, UserType: UserTypeCollector})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestEmailVerificationConsumeOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	u, err := env.store.CreateUser(context.Background(), NewUser{Email: "new@example.com", UserType: UserTypeCollector})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	token, err := env.engine.IssueEmailVerificationToken(u.ID, u.Email)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	res, err := env.engine.ConsumeEmailVerification(context.Background(), token)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if res.UserID != u.ID || res.Email != "new@example.com" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !env.store.user(u.ID).Active {
		t.Fatal("user must be active after consume")
	}

	keys := blacklistKeys(env)
	if len(keys) != 1 {
		t.Fatalf("expected one blacklist key, got %v", keys)
	}
	if ttl := env.mr.TTL(keys[0]); ttl != 30*time.Minute {
		t.Fatalf("blacklist ttl = %v, want 30m", ttl)
	}

	if _, err := env.engine.ConsumeEmailVerification(context.Background(), token); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("second consume: expected ErrAlreadyUsed, got %v", err)
	}
}

func TestEmailVerificationExpiredToken(t *testing.T) {
	env := newTestEnv(t, nil)
	u, err := env.store.CreateUser(context.Background(), NewUser{Email: "new@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := env.engine.IssueEmailVerificationToken(u.ID, u.Email)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	env.clock.Advance(31 * time.Minute)

	if _, err := env.engine.ConsumeEmailVerification(context.Background(), token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if len(blacklistKeys(env)) != 0 {
		t.Fatal("expired token must not be blacklisted")
	}
	if env.store.user(u.ID).Active {
		t.Fatal("user must stay inactive")
	}
}

func TestEmailVerificationRejectsOtherTokenKinds(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.addUser(t, "ada@example.com", "correct-horse")

	pair, err := env.engine.Login(context.Background(), "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := env.engine.ConsumeEmailVerification(context.Background(), pair.RefreshToken); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind, got %v", err)
	}
}

func TestEmailVerificationUnknownUserBurnsToken(t *testing.T) {
	env := newTestEnv(t, nil)

	token, err := env.engine.IssueEmailVerificationToken("ghost", "ghost@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := env.engine.ConsumeEmailVerification(context.Background(), token); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := env.engine.ConsumeEmailVerification(context.Background(), token); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed on retry, got %v", err)
	}
}

func TestRequestEmailVerificationDispatchesJob(t *testing.T) {
	env := newTestEnv(t, nil)
	u := pendingUser(t, env, "new@example.com")

	if err := env.engine.RequestEmailVerification(context.Background(), u.ID, "New@Example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}

	job := env.dispatcher.last(t)
	if job.name != JobSendVerificationEmail {
		t.Fatalf("job = %q", job.name)
	}
	if len(job.args) != 2 || job.args[0] != "new@example.com" || job.args[1] == "" {
		t.Fatalf("unexpected job args: %v", job.args)
	}
	if ttl := env.mr.TTL("email_cooldown:{new@example.com}"); ttl != 90*time.Second {
		t.Fatalf("cooldown ttl = %v, want 90s", ttl)
	}
}

func TestRequestEmailVerificationCooldown(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := pendingUser(t, env, "new@example.com")

	if err := env.engine.RequestEmailVerification(ctx, u.ID, "new@example.com"); err != nil {
		t.Fatalf("first request: %v", err)
	}

	err := env.engine.RequestEmailVerification(ctx, u.ID, "new@example.com")
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	var te *ThrottleError
	if !errors.As(err, &te) || te.Reason != ErrCooldownActive {
		t.Fatalf("expected cooldown throttle error, got %v", err)
	}
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatal("throttle error must unwrap to its reason")
	}
	if env.dispatcher.count() != 1 {
		t.Fatalf("throttled request must not dispatch, got %d jobs", env.dispatcher.count())
	}

	env.mr.FastForward(91 * time.Second)

	if err := env.engine.RequestEmailVerification(ctx, u.ID, "new@example.com"); err != nil {
		t.Fatalf("request after cooldown: %v", err)
	}
}

func TestRequestEmailVerificationDailyLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.EmailVerification.DailyLimit = 2
		cfg.EmailVerification.Cooldown = time.Second
	})
	ctx := context.Background()
	u := pendingUser(t, env, "new@example.com")

	for i := 0; i < 2; i++ {
		if err := env.engine.RequestEmailVerification(ctx, u.ID, "new@example.com"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		env.mr.FastForward(2 * time.Second)
	}

	err := env.engine.RequestEmailVerification(ctx, u.ID, "new@example.com")
	if ThrottleReason(err) != ErrDailyLimitExceeded {
		t.Fatalf("expected daily limit, got %v", err)
	}
}

func TestRequestEmailVerificationDispatchFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	u := pendingUser(t, env, "new@example.com")
	env.dispatcher.err = errors.New("queue offline")

	err := env.engine.RequestEmailVerification(context.Background(), u.ID, "new@example.com")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

type captureMailer struct {
	mu   sync.Mutex
	sent []MailMessage
	done chan struct{}
}

func (m *captureMailer) Send(_ context.Context, msg MailMessage) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	close(m.done)
	return nil
}

func TestBuiltInDispatcherSendsVerificationMail(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMemIdentityStore()
	mailer := &captureMailer{done: make(chan struct{})}

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithIdentityStore(store).
		WithMailer(mailer).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	u, err := store.CreateUser(context.Background(), NewUser{Email: "new@example.com", UserType: UserTypeCollector})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := engine.RequestEmailVerification(context.Background(), u.ID, "new@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}

	select {
	case <-mailer.done:
	case <-time.After(5 * time.Second):
		t.Fatal("verification mail was not sent")
	}

	mailer.mu.Lock()
	msg := mailer.sent[0]
	mailer.mu.Unlock()
	if msg.To != "new@example.com" {
		t.Fatalf("mail to %q", msg.To)
	}
	idx := strings.Index(msg.Text, "https://app.example.com/verify?token=")
	if idx < 0 {
		t.Fatalf("mail text lacks verification link: %q", msg.Text)
	}
	link := strings.Fields(msg.Text[idx:])[0]
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}

	if _, err := engine.ConsumeEmailVerification(context.Background(), parsed.Query().Get("token")); err != nil {
		t.Fatalf("consume mailed token: %v", err)
	}
	if !store.user(u.ID).Active {
		t.Fatal("user must be active after consuming the mailed token")
	}
}

func TestRequestEmailVerificationRejectsForeignAddress(t *testing.T) {
	env := newTestEnv(t, nil)
	victim := pendingUser(t, env, "victim@example.com")

	err := env.engine.RequestEmailVerification(context.Background(), victim.ID, "attacker@evil.test")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if env.dispatcher.count() != 0 {
		t.Fatalf("no mail may be sent to a foreign address, got %d jobs", env.dispatcher.count())
	}
	for _, key := range []string{"email_cooldown:{attacker@evil.test}", "email_cooldown:{victim@example.com}"} {
		if env.mr.Exists(key) {
			t.Fatalf("rejected request must not touch the throttle: %s", key)
		}
	}
	if env.store.user(victim.ID).Active {
		t.Fatal("victim must stay inactive")
	}
}

func TestRequestEmailVerificationUnknownUser(t *testing.T) {
	env := newTestEnv(t, nil)

	err := env.engine.RequestEmailVerification(context.Background(), "ghost", "ghost@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if env.dispatcher.count() != 0 {
		t.Fatal("unknown user must not dispatch")
	}
}

func TestEmailVerificationRejectsTokenForChangedEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	u := pendingUser(t, env, "old@example.com")

	token, err := env.engine.IssueEmailVerificationToken(u.ID, "someone-else@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := env.engine.ConsumeEmailVerification(context.Background(), token); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if env.store.user(u.ID).Active {
		t.Fatal("user must stay inactive")
	}
	if _, err := env.engine.ConsumeEmailVerification(context.Background(), token); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed on retry, got %v", err)
	}
}

func TestEmailVerificationExpiredInsideLeeway(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.JWT.Leeway = 30 * time.Second
	})
	u := pendingUser(t, env, "new@example.com")

	token, err := env.engine.IssueEmailVerificationToken(u.ID, u.Email)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	env.clock.Advance(env.engine.config.EmailVerification.TokenTTL + 5*time.Second)

	for i := 0; i < 2; i++ {
		if _, err := env.engine.ConsumeEmailVerification(context.Background(), token); !errors.Is(err, ErrExpired) {
			t.Fatalf("consume %d: expected ErrExpired, got %v", i+1, err)
		}
	}
	if env.store.user(u.ID).Active {
		t.Fatal("user must stay inactive")
	}
}
