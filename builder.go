package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/credential"
	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/internal/tasks"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/social"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
)

// Builder collects engine dependencies. A Builder builds one Engine.
type Builder struct {
	config     Config
	redis      redis.UniversalClient
	identities IdentityStore
	providers  []SocialAdapter
	dispatcher TaskDispatcher
	mailer     Mailer
	auditSink  AuditSink
	logger     *slog.Logger
	registerer prometheus.Registerer
	meters     metric.MeterProvider
	clock      func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the cache backing revocation, throttling and login limits.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityStore sets the user store.
func (b *Builder) WithIdentityStore(store IdentityStore) *Builder {
	b.identities = store
	return b
}

// WithProviders registers social login adapters. Names must be unique.
func (b *Builder) WithProviders(adapters ...SocialAdapter) *Builder {
	b.providers = append(b.providers, adapters...)
	return b
}

// WithDispatcher replaces the built-in in-process task dispatcher.
func (b *Builder) WithDispatcher(d TaskDispatcher) *Builder {
	b.dispatcher = d
	return b
}

// WithMailer sets the mailer of the built-in dispatcher. Without one,
// verification mail is only logged.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink sets the audit sink. Audit must also be enabled in Config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. The default discards output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsRegisterer enables Prometheus metrics on reg.
func (b *Builder) WithMetricsRegisterer(reg prometheus.Registerer) *Builder {
	b.registerer = reg
	return b
}

// WithMeterProvider additionally records engine metrics through OpenTelemetry.
func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.meters = mp
	return b
}

// WithClock overrides the time source for tokens and throttle windows.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.identities == nil {
		return nil, errors.New("identity store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// -------- TOKENS --------
	codec, err := jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Secret:        cloneBytes(cfg.JWT.Secret),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           b.clock,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	argon, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	var hasher credential.Hasher = argon
	if cfg.Password.AcceptBcrypt {
		legacy, err := password.NewBcrypt(0)
		if err != nil {
			return nil, err
		}
		hasher = password.NewMulti(argon, legacy)
	}

	var rehash credential.Rehash
	if upgrader, ok := b.identities.(PasswordUpgrader); ok && cfg.Password.UpgradeOnLogin {
		rehash = func(ctx context.Context, userID, hash string) error {
			if err := upgrader.UpdatePasswordHash(ctx, userID, hash); err != nil {
				logger.Warn("authcore: password hash upgrade failed", "user_id", userID, "error", err)
				return err
			}
			return nil
		}
	}
	identities := b.identities
	verifier, err := credential.NewVerifier(func(ctx context.Context, email string) (credential.Account, error) {
		user, err := identities.FindByEmail(ctx, email)
		if errors.Is(err, ErrUserNotFound) {
			return credential.Account{}, credential.ErrNotFound
		}
		if err != nil {
			return credential.Account{}, err
		}
		return credential.Account{
			UserID:       user.ID,
			UserType:     user.UserType,
			PasswordHash: user.PasswordHash,
			Active:       user.Active,
		}, nil
	}, hasher, rehash)
	if err != nil {
		return nil, err
	}

	// -------- SOCIAL --------
	registry, err := social.NewRegistry(b.providers...)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		codec:      codec,
		identities: identities,
		redis:      b.redis,
		verifier:   verifier,
		hasher:     hasher,
		providers:  registry,
		logger:     logger,
		clock:      b.clock,
	}

	// -------- REDIS STATE --------
	prefix := cfg.EmailVerification.RedisPrefix
	engine.revocations = stores.NewRevocationStore(b.redis, prefixed(prefix, "blacklist_token"))
	throttleOpts := []stores.ThrottleOption{
		stores.WithThrottlePrefixes(prefixed(prefix, "email_cooldown"), prefixed(prefix, "email_daily_count")),
	}
	if b.clock != nil {
		throttleOpts = append(throttleOpts, stores.WithThrottleClock(b.clock))
	}
	engine.throttle = stores.NewThrottleStore(b.redis, throttleOpts...)
	if cfg.Security.EnableLoginThrottle {
		engine.limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		})
	}

	// -------- OBSERVABILITY --------
	var taskMetrics *tasks.Metrics
	if b.registerer != nil {
		engine.metrics = NewMetrics(b.registerer)
		taskMetrics = tasks.NewMetrics(b.registerer)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(ev audit.Event) {
			logger.Warn("authcore: audit event dropped", "event_type", ev.EventType)
		},
	}, b.auditSink)
	if b.meters != nil {
		engine.otel, err = newOTelMetrics(b.meters.Meter(meterName), engine.AuditDropped)
		if err != nil {
			engine.audit.Close()
			return nil, err
		}
	}

	// -------- DISPATCHER --------
	engine.dispatcher = b.dispatcher
	if engine.dispatcher == nil {
		mailer := b.mailer
		if mailer == nil {
			mailer = tasks.LogMailer{Logger: logger}
		}
		engine.ownedTasks = tasks.NewDispatcher(tasks.Config{
			Workers:    cfg.Tasks.Workers,
			QueueSize:  cfg.Tasks.QueueSize,
			MaxRetries: cfg.Tasks.MaxRetries,
			RetryDelay: cfg.Tasks.RetryDelay,
		}, tasks.WithLogger(logger), tasks.WithMetrics(taskMetrics))
		engine.dispatcher = &localDispatcher{
			pool:      engine.ownedTasks,
			mailer:    mailer,
			verifyURL: cfg.EmailVerification.VerifyURL,
		}
	}

	engine.flow = internalflows.New(engine.flowDeps())
	b.built = true

	return engine, nil
}

func prefixed(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}
