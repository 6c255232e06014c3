package authcore

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/password"
)

// Config holds every engine setting. Start from DefaultConfig and override.
type Config struct {
	JWT               JWTConfig
	Session           SessionConfig
	EmailVerification EmailVerificationConfig
	Security          SecurityConfig
	Password          PasswordConfig
	Signup            SignupConfig
	Audit             AuditConfig
	Tasks             TasksConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing. Secret must be at least 32 bytes.
type JWTConfig struct {
	SigningMethod string // "hs256" (default), "hs384", "hs512"
	Secret        []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	// Leeway tolerates clock skew on iat and nbf. It never extends exp.
	Leeway time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the single-session refresh model.
type SessionConfig struct {
	// RotateRefreshOnUse replaces the stored refresh token on every refresh.
	RotateRefreshOnUse bool
}

/*
====================================
EMAIL VERIFICATION CONFIG
====================================
*/

// EmailVerificationConfig tunes verification tokens and send throttling.
type EmailVerificationConfig struct {
	TokenTTL   time.Duration
	Cooldown   time.Duration
	DailyLimit int
	// VerifyURL is the frontend page that receives ?token=.
	VerifyURL string
	// RedisPrefix namespaces the blacklist and throttle keys.
	RedisPrefix string
	// ActivateOnConsume marks the user active after a successful consume.
	ActivateOnConsume bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds login throttling and activation policy.
type SecurityConfig struct {
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	// RequireActiveForLogin rejects password logins of unverified users.
	RequireActiveForLogin bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id parameters for new hashes.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
	// AcceptBcrypt verifies legacy bcrypt hashes and upgrades them on login.
	AcceptBcrypt bool
}

/*
====================================
SIGNUP CONFIG
====================================
*/

// SignupConfig controls password signup.
type SignupConfig struct {
	DefaultUserType   string
	AllowedUserTypes  []string
	MinPasswordLength int
	SendVerification  bool
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// TasksConfig sizes the built-in background dispatcher.
type TasksConfig struct {
	Workers    int
	QueueSize  int
	MaxRetries uint64
	RetryDelay time.Duration
}

// DefaultConfig returns production defaults. JWT.Secret must still be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
		},
		EmailVerification: EmailVerificationConfig{
			TokenTTL:          30 * time.Minute,
			Cooldown:          90 * time.Second,
			DailyLimit:        500,
			ActivateOnConsume: true,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   true,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Signup: SignupConfig{
			DefaultUserType:   UserTypeCollector,
			AllowedUserTypes:  []string{UserTypeArtist, UserTypeCollector},
			MinPasswordLength: password.MinPasswordBytes,
			SendVerification:  true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Tasks: TasksConfig{
			Workers:    4,
			QueueSize:  256,
			MaxRetries: 3,
			RetryDelay: 60 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.Signup.AllowedUserTypes = slices.Clone(cfg.Signup.AllowedUserTypes)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256", "hs384", "hs512":
	default:
		return fmt.Errorf("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT Secret must be at least 32 bytes")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Email verification
	if c.EmailVerification.TokenTTL <= 0 {
		return errors.New("EmailVerification TokenTTL must be > 0")
	}
	if c.EmailVerification.Cooldown < time.Second {
		return errors.New("EmailVerification Cooldown must be >= 1s")
	}
	if c.EmailVerification.DailyLimit <= 0 {
		return errors.New("EmailVerification DailyLimit must be > 0")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0 when login throttle is enabled")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security LoginCooldownDuration must be > 0 when login throttle is enabled")
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Signup
	if c.Signup.MinPasswordLength < password.MinPasswordBytes {
		return fmt.Errorf("Signup MinPasswordLength must be >= %d", password.MinPasswordBytes)
	}
	if len(c.Signup.AllowedUserTypes) == 0 {
		return errors.New("Signup AllowedUserTypes must not be empty")
	}
	if !slices.Contains(c.Signup.AllowedUserTypes, c.Signup.DefaultUserType) {
		return errors.New("Signup DefaultUserType must be one of AllowedUserTypes")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Tasks
	if c.Tasks.Workers <= 0 {
		return errors.New("Tasks Workers must be > 0")
	}
	if c.Tasks.QueueSize <= 0 {
		return errors.New("Tasks QueueSize must be > 0")
	}
	if c.Tasks.RetryDelay <= 0 {
		return errors.New("Tasks RetryDelay must be > 0")
	}

	return nil
}
