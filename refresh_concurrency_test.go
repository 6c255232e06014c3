package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestConsumeEmailVerificationConcurrencySingleWinner(t *testing.T) {
	env := newTestEnv(t, nil)
	u, err := env.store.CreateUser(context.Background(), NewUser{Email: "new@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := env.engine.IssueEmailVerificationToken(u.ID, u.Email)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := env.engine.ConsumeEmailVerification(context.Background(), token)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrAlreadyUsed) {
			fail++
			continue
		}
		t.Fatalf("unexpected consume error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one consume success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d consume failures, got %d", n-1, fail)
	}
}

func TestConcurrentLoginsLeaveOneValidRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.store.addUser(t, "ada@example.com", "correct-horse")

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)

	pairs := make(chan TokenPair, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			pair, err := env.engine.Login(context.Background(), "ada@example.com", "correct-horse")
			if err != nil {
				t.Errorf("login failed: %v", err)
				return
			}
			pairs <- pair
		}()
	}
	wg.Wait()
	close(pairs)

	valid := 0
	for pair := range pairs {
		_, err := env.engine.Refresh(context.Background(), u.ID, pair.RefreshToken)
		switch {
		case err == nil:
			valid++
		case errors.Is(err, ErrSuperseded):
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if valid != 1 {
		t.Fatalf("expected exactly one live refresh token, got %d", valid)
	}
}
