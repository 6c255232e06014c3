package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/password"
)

func TestLoginIssuesSessionAndRefreshWorks(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.store.addUser(t, "ada@example.com", "correct-horse")

	pair, err := env.engine.Login(context.Background(), "Ada@Example.com ", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.UserID != u.ID || pair.UserType != UserTypeArtist {
		t.Fatalf("unexpected pair identity: %+v", pair)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if got := env.store.user(u.ID).RefreshToken; got != pair.RefreshToken {
		t.Fatal("refresh token was not stored")
	}

	refreshed, err := env.engine.Refresh(context.Background(), u.ID, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Fatal("expected access token")
	}
	if refreshed.RefreshToken != "" {
		t.Fatal("refresh token must not rotate by default")
	}

	auth, err := env.engine.Authenticate(context.Background(), refreshed.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if auth.UserID != u.ID || auth.Email != "ada@example.com" {
		t.Fatalf("unexpected auth result: %+v", auth)
	}
	if want := env.clock.Now().Add(15 * time.Minute); !auth.ExpiresAt.Equal(want) {
		t.Fatalf("expires at %v, want %v", auth.ExpiresAt, want)
	}
}

func TestSecondLoginSupersedesFirstRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.store.addUser(t, "ada@example.com", "correct-horse")
	ctx := context.Background()

	first, err := env.engine.Login(ctx, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := env.engine.Login(ctx, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if first.RefreshToken == second.RefreshToken {
		t.Fatal("logins must mint distinct refresh tokens")
	}

	if _, err := env.engine.Refresh(ctx, u.ID, first.RefreshToken); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, u.ID, second.RefreshToken); err != nil {
		t.Fatalf("current token refresh: %v", err)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.store.addUser(t, "ada@example.com", "correct-horse")

	pair, err := env.engine.Login(context.Background(), "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	env.clock.Advance(7*24*time.Hour + time.Second)

	if _, err := env.engine.Refresh(context.Background(), u.ID, pair.RefreshToken); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestRefreshRejectsAccessTokenAndGarbage(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.store.addUser(t, "ada@example.com", "correct-horse")

	pair, err := env.engine.Login(context.Background(), "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := env.engine.Refresh(context.Background(), u.ID, pair.AccessToken); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind, got %v", err)
	}
	if _, err := env.engine.Refresh(context.Background(), u.ID, "not-a-token"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := env.engine.Authenticate(context.Background(), pair.RefreshToken); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("authenticate with refresh token: expected ErrWrongKind, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.Session.RotateRefreshOnUse = true
	})
	u := env.store.addUser(t, "ada@example.com", "correct-horse")
	ctx := context.Background()

	pair, err := env.engine.Login(ctx, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	rotated, err := env.engine.Refresh(ctx, u.ID, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == "" || rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("expected a new refresh token")
	}
	if _, err := env.engine.Refresh(ctx, u.ID, pair.RefreshToken); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("old token: expected ErrSuperseded, got %v", err)
	}
}

func TestLogoutInvalidatesRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.store.addUser(t, "ada@example.com", "correct-horse")
	ctx := context.Background()

	pair, err := env.engine.Login(ctx, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.engine.Logout(ctx, u.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := env.engine.Logout(ctx, u.ID); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, u.ID, pair.RefreshToken); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded after logout, got %v", err)
	}
	if err := env.engine.Logout(ctx, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.addUser(t, "ada@example.com", "correct-horse")
	ctx := context.Background()

	_, wrongPassword := env.engine.Login(ctx, "ada@example.com", "wrong-horse")
	_, unknownEmail := env.engine.Login(ctx, "nobody@example.com", "wrong-horse")
	_, empty := env.engine.Login(ctx, "", "")

	for name, err := range map[string]error{
		"wrong password": wrongPassword,
		"unknown email":  unknownEmail,
		"empty":          empty,
	} {
		if !errors.Is(err, ErrAuthFailed) {
			t.Fatalf("%s: expected ErrAuthFailed, got %v", name, err)
		}
		if err.Error() != ErrAuthFailed.Error() {
			t.Fatalf("%s: error text leaks detail: %q", name, err.Error())
		}
	}
}

func TestLoginRateLimitAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.addUser(t, "ada@example.com", "correct-horse")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := env.engine.Login(ctx, "ada@example.com", "wrong-horse"); !errors.Is(err, ErrAuthFailed) {
			t.Fatalf("attempt %d: expected ErrAuthFailed, got %v", i+1, err)
		}
	}
	if _, err := env.engine.Login(ctx, "ada@example.com", "wrong-horse"); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "ada@example.com", "correct-horse"); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("correct password while limited: expected ErrLoginRateLimited, got %v", err)
	}

	env.mr.FastForward(15*time.Minute + time.Second)

	if _, err := env.engine.Login(ctx, "ada@example.com", "correct-horse"); err != nil {
		t.Fatalf("login after cooldown: %v", err)
	}
}

func TestLoginRequireActive(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.Security.RequireActiveForLogin = true
	})
	u := env.store.addUser(t, "ada@example.com", "correct-horse")
	env.store.mu.Lock()
	inactive := env.store.users[u.ID]
	inactive.Active = false
	env.store.users[u.ID] = inactive
	env.store.mu.Unlock()

	if _, err := env.engine.Login(context.Background(), "ada@example.com", "correct-horse"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed for inactive user, got %v", err)
	}

	if err := env.store.SetActive(context.Background(), u.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := env.engine.Login(context.Background(), "ada@example.com", "correct-horse"); err != nil {
		t.Fatalf("login after activation: %v", err)
	}
}

func TestLoginUpgradesLegacyBcryptHash(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.Password.AcceptBcrypt = true
	})
	legacy, err := password.NewBcrypt(4)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	hash, err := legacy.Hash("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := env.store.CreateUser(context.Background(), NewUser{
		Email:        "legacy@example.com",
		PasswordHash: hash,
		UserType:     UserTypeCollector,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := env.engine.Login(context.Background(), "legacy@example.com", "correct-horse"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if env.store.upgrades != 1 {
		t.Fatalf("expected one hash upgrade, got %d", env.store.upgrades)
	}
	if got := env.store.user(u.ID).PasswordHash; got == hash {
		t.Fatal("stored hash was not replaced")
	}
	if _, err := env.engine.Login(context.Background(), "legacy@example.com", "correct-horse"); err != nil {
		t.Fatalf("login with upgraded hash: %v", err)
	}
}

func TestStoreFailureMapsToStoreUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.addUser(t, "ada@example.com", "correct-horse")
	env.store.findErr = errors.New("connection reset")

	_, err := env.engine.Login(context.Background(), "ada@example.com", "correct-horse")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if ErrorKindOf(err) != KindStoreUnavailable {
		t.Fatalf("unexpected kind %q", ErrorKindOf(err))
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.Login(context.Background(), "a@example.com", "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil shutdown: %v", err)
	}
}
