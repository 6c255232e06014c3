package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	if h := env.engine.Health(context.Background()); !h.RedisAvailable {
		t.Fatal("expected redis available")
	}

	dead := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer dead.Close()
	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(dead).
		WithIdentityStore(newMemIdentityStore()).
		WithDispatcher(&recordingDispatcher{}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()
	if h := engine.Health(context.Background()); h.RedisAvailable {
		t.Fatal("expected redis unavailable")
	}

	var nilEngine *Engine
	if h := nilEngine.Health(context.Background()); h.RedisAvailable {
		t.Fatal("nil engine must report unavailable")
	}
}

func TestGetLoginAttempts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.addUser(t, "ada@example.com", "correct-horse")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = env.engine.Login(ctx, "ada@example.com", "wrong-horse")
	}
	n, err := env.engine.GetLoginAttempts(ctx, "ADA@example.com")
	if err != nil {
		t.Fatalf("attempts: %v", err)
	}
	if n != 3 {
		t.Fatalf("attempts = %d, want 3", n)
	}

	if _, err := env.engine.Login(ctx, "ada@example.com", "correct-horse"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if n, _ := env.engine.GetLoginAttempts(ctx, "ada@example.com"); n != 0 {
		t.Fatalf("attempts after success = %d, want 0", n)
	}
}
