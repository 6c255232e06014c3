package authcore

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSecretsNeverReachLogsOrAudit(t *testing.T) {
	var logs bytes.Buffer
	var auditLog bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, rdb := newTestRedis(t)
	store := newMemIdentityStore()
	store.addUser(t, "ada@example.com", "correct-horse")
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(store).
		WithLogger(logger).
		WithAuditSink(NewJSONWriterSink(&auditLog)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ctx := context.Background()
	pair, err := engine.Login(ctx, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_, _ = engine.Login(ctx, "ada@example.com", "wrong-horse")
	if err := engine.RequestEmailVerification(ctx, "u1", "ada@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = engine.RequestEmailVerification(ctx, "u1", "ada@example.com")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := engine.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	for name, out := range map[string]string{"logs": logs.String(), "audit": auditLog.String()} {
		for _, secret := range []string{"correct-horse", "wrong-horse", pair.AccessToken, pair.RefreshToken, string(testSecret)} {
			if strings.Contains(out, secret) {
				t.Fatalf("%s contain a secret", name)
			}
		}
	}
	if !strings.Contains(auditLog.String(), auditEventEmailVerificationThrottle) {
		t.Fatal("expected throttle event in audit log")
	}
}
