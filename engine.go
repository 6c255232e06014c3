package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/credential"
	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/internal/tasks"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/social"
	"github.com/redis/go-redis/v9"
)

// Engine runs the token lifecycle. Build it with [Builder].
type Engine struct {
	config      Config
	codec       *jwt.Codec
	identities  IdentityStore
	redis       redis.UniversalClient
	verifier    *credential.Verifier
	hasher      credential.Hasher
	revocations *stores.RevocationStore
	throttle    *stores.ThrottleStore
	limiter     *rate.Limiter
	providers   *social.Registry
	dispatcher  TaskDispatcher
	ownedTasks  *tasks.Dispatcher
	audit       *audit.Dispatcher
	metrics     *Metrics
	otel        *otelMetrics
	logger      *slog.Logger
	clock       func() time.Time
	flow        internalflows.Service
}

// Shutdown stops the audit dispatcher and, when the engine owns it, the task
// dispatcher, waiting for queued work until ctx ends.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	var err error
	if e.ownedTasks != nil {
		err = e.ownedTasks.Shutdown(ctx)
	}
	e.audit.Close()
	return errors.Join(err, e.otel.close())
}

// Close is Shutdown without a deadline.
func (e *Engine) Close() {
	_ = e.Shutdown(context.Background())
}

// AuditDropped reports audit events dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Providers lists the registered social provider names.
func (e *Engine) Providers() []string {
	if e == nil {
		return nil
	}
	return e.providers.Names()
}

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

// flowDeps wires every flow once. It must run after all engine fields are set.
func (e *Engine) flowDeps() internalflows.Deps {
	session := internalflows.SessionDeps{
		Codec:      e.codec,
		Store:      e.identities,
		AccessTTL:  e.config.JWT.AccessTTL,
		RefreshTTL: e.config.JWT.RefreshTTL,
	}

	login := internalflows.LoginDeps{
		Session: session,
		Verify: func(ctx context.Context, email, password string) (internalflows.LoginAccount, bool, error) {
			acct, ok, err := e.verifier.Verify(ctx, email, password)
			return internalflows.LoginAccount{
				UserID:   acct.UserID,
				UserType: acct.UserType,
				Active:   acct.Active,
			}, ok, err
		},
		RateLimited:     rate.ErrRateLimited,
		RequireActive:   e.config.Security.RequireActiveForLogin,
		ClientIPFromCtx: ClientIPFromContext,
		Warn:            e.logger.Warn,
	}
	if e.limiter != nil {
		login.RateLimiter = e.limiter
	}

	verification := internalflows.EmailVerificationDeps{
		Codec:       e.codec,
		TokenTTL:    e.config.EmailVerification.TokenTTL,
		Cooldown:    e.config.EmailVerification.Cooldown,
		DailyLimit:  e.config.EmailVerification.DailyLimit,
		Throttle:    e.throttle,
		Revocations: e.revocations,
		Enqueue: func(ctx context.Context, email, token string) error {
			return e.dispatcher.Enqueue(ctx, JobSendVerificationEmail, email, token)
		},
		CooldownActive:     stores.ErrCooldownActive,
		DailyLimitExceeded: stores.ErrDailyLimitExceeded,
		NotFound:           ErrUserNotFound,
	}
	verification.StoredEmail = func(ctx context.Context, userID string) (string, error) {
		user, err := e.identities.FindByID(ctx, userID)
		return user.Email, err
	}
	if e.config.EmailVerification.ActivateOnConsume {
		verification.Activate = e.identities.SetActive
	}

	return internalflows.Deps{
		Session: session,
		Login:   login,
		Refresh: internalflows.RefreshDeps{
			Session:  session,
			Rotate:   e.config.Session.RotateRefreshOnUse,
			NotFound: ErrUserNotFound,
		},
		Logout: internalflows.LogoutDeps{
			Store:    e.identities,
			NotFound: ErrUserNotFound,
		},
		EmailVerification: verification,
		Social: internalflows.SocialLoginDeps{
			Session:  session,
			Adapters: e.providers,
			FindOrCreate: func(ctx context.Context, id social.Identity) (internalflows.SocialAccount, error) {
				user, created, err := e.identities.CreateOrGetByExternalIdentity(ctx, id)
				if err != nil {
					return internalflows.SocialAccount{}, err
				}
				return internalflows.SocialAccount{UserID: user.ID, UserType: user.UserType, Created: created}, nil
			},
		},
	}
}

// localDispatcher runs jobs on the engine's in-process worker pool.
type localDispatcher struct {
	pool      *tasks.Dispatcher
	mailer    tasks.Mailer
	verifyURL string
}

func (d *localDispatcher) Enqueue(ctx context.Context, job string, args ...string) error {
	switch job {
	case JobSendVerificationEmail:
		if len(args) != 2 {
			return fmt.Errorf("authcore: job %s wants (email, token), got %d args", job, len(args))
		}
		return d.pool.Enqueue(ctx, tasks.SendVerificationEmail(d.mailer, d.verifyURL, args[0], args[1]))
	default:
		return fmt.Errorf("authcore: unknown job %q", job)
	}
}
