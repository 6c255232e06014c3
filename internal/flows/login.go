package flows

import (
	"context"
	"errors"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureInvalidCredentials
	LoginFailureInactive
	LoginFailureStore
	LoginFailureIssue
)

// LoginAccount is what credential verification yields.
type LoginAccount struct {
	UserID   string
	UserType string
	Active   bool
}

// LoginRateLimiter counts failed logins.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, email, ip string) error
	IncrementLogin(ctx context.Context, email, ip string) error
	ResetLogin(ctx context.Context, email, ip string) error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Session         SessionDeps
	Verify          func(ctx context.Context, email, password string) (LoginAccount, bool, error)
	RateLimiter     LoginRateLimiter
	RateLimited     error
	RequireActive   bool
	ClientIPFromCtx func(context.Context) string
	Warn            func(string, ...any)
}

// LoginResult carries either the issued token pair or failure metadata.
type LoginResult struct {
	Failure      LoginFailureKind
	Err          error
	UserID       string
	UserType     string
	AccessToken  string
	RefreshToken string
}

// RunLogin verifies credentials and issues a new session, superseding any
// refresh token the user held before.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	ip := ""
	if deps.ClientIPFromCtx != nil {
		ip = deps.ClientIPFromCtx(ctx)
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, email, ip); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			return LoginResult{Failure: LoginFailureStore, Err: err}
		}
	}

	acct, ok, err := deps.Verify(ctx, email, password)
	if err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}
	if !ok || (deps.RequireActive && !acct.Active) {
		failure := LoginFailureInvalidCredentials
		if ok {
			failure = LoginFailureInactive
		}
		if deps.RateLimiter != nil {
			if err := deps.RateLimiter.IncrementLogin(ctx, email, ip); err != nil {
				if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
					return LoginResult{Failure: LoginFailureRateLimited, Err: err, UserID: acct.UserID}
				}
				if deps.Warn != nil {
					deps.Warn("authcore: login attempt counter update failed", "error", err)
				}
			}
		}
		return LoginResult{Failure: failure, UserID: acct.UserID}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, email, ip); err != nil && deps.Warn != nil {
			deps.Warn("authcore: login attempt counter reset failed", "error", err)
		}
	}

	issued := RunIssueSession(ctx, acct.UserID, deps.Session)
	if issued.Failure != SessionFailureNone {
		failure := LoginFailureIssue
		if issued.Failure == SessionFailureStore {
			failure = LoginFailureStore
		}
		return LoginResult{Failure: failure, Err: issued.Err, UserID: acct.UserID}
	}

	return LoginResult{
		UserID:       acct.UserID,
		UserType:     acct.UserType,
		AccessToken:  issued.AccessToken,
		RefreshToken: issued.RefreshToken,
	}
}
