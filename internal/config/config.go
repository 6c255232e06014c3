// Package config loads process configuration for the authcore binary from an
// optional YAML file and AUTHCORE_* environment variables using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/MrEthical07/authcore"
)

// EnvPrefix prefixes every environment variable, e.g. AUTHCORE_JWT_SECRET
// for jwt.secret.
const EnvPrefix = "AUTHCORE"

// File is the decoded process configuration.
type File struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Session   SessionConfig   `mapstructure:"session"`
	Email     EmailConfig     `mapstructure:"email"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Security  SecurityConfig  `mapstructure:"security"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Providers ProvidersConfig `mapstructure:"providers"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   string        `mapstructure:"audience"`
}

type SessionConfig struct {
	RotateRefresh bool `mapstructure:"rotate_refresh"`
}

type EmailConfig struct {
	VerifyURL   string        `mapstructure:"verify_url"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
	DailyLimit  int           `mapstructure:"daily_limit"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
}

// SMTPConfig enables real mail delivery when Addr is set; otherwise mail is
// only logged.
type SMTPConfig struct {
	Addr     string `mapstructure:"addr"`
	From     string `mapstructure:"from"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type SecurityConfig struct {
	RequireActive    bool          `mapstructure:"require_active"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	LoginCooldown    time.Duration `mapstructure:"login_cooldown"`
	// IPThrottle adds a per-client-IP failed-login counter next to the
	// per-email one.
	IPThrottle bool `mapstructure:"ip_throttle"`
}

type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type TasksConfig struct {
	Workers    int           `mapstructure:"workers"`
	MaxRetries uint64        `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// OAuthClient holds one provider's client credentials. A provider with an
// empty ClientID is not registered.
type OAuthClient struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type ProvidersConfig struct {
	Google OAuthClient `mapstructure:"google"`
	GitHub OAuthClient `mapstructure:"github"`
}

func setDefaults(v *viper.Viper) {
	engine := authcore.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.format", "json")
	v.SetDefault("log.level", "info")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_ttl", engine.JWT.AccessTTL)
	v.SetDefault("jwt.refresh_ttl", engine.JWT.RefreshTTL)
	v.SetDefault("jwt.issuer", "authcore")
	v.SetDefault("jwt.audience", "")
	v.SetDefault("session.rotate_refresh", false)
	v.SetDefault("email.verify_url", "")
	v.SetDefault("email.token_ttl", engine.EmailVerification.TokenTTL)
	v.SetDefault("email.cooldown", engine.EmailVerification.Cooldown)
	v.SetDefault("email.daily_limit", engine.EmailVerification.DailyLimit)
	v.SetDefault("email.redis_prefix", "")
	v.SetDefault("smtp.addr", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("security.require_active", false)
	v.SetDefault("security.max_login_attempts", engine.Security.MaxLoginAttempts)
	v.SetDefault("security.login_cooldown", engine.Security.LoginCooldownDuration)
	v.SetDefault("security.ip_throttle", engine.Security.EnableIPThrottle)
	v.SetDefault("audit.enabled", false)
	v.SetDefault("tasks.workers", engine.Tasks.Workers)
	v.SetDefault("tasks.max_retries", engine.Tasks.MaxRetries)
	v.SetDefault("tasks.retry_delay", engine.Tasks.RetryDelay)
	v.SetDefault("providers.google.client_id", "")
	v.SetDefault("providers.google.client_secret", "")
	v.SetDefault("providers.github.client_id", "")
	v.SetDefault("providers.github.client_secret", "")
}

// Load reads path when given, otherwise an optional ./authcore.yaml, then
// applies AUTHCORE_* environment overrides.
func Load(path string) (*File, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("authcore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read authcore.yaml: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	switch f.Log.Format {
	case "json", "text":
	default:
		return nil, fmt.Errorf("config: log.format must be json or text, got %q", f.Log.Format)
	}

	return &f, nil
}

// EngineConfig maps the file onto authcore.DefaultConfig. The result still
// needs Validate; Builder.Build runs it.
func (f *File) EngineConfig() authcore.Config {
	cfg := authcore.DefaultConfig()

	cfg.JWT.Secret = []byte(f.JWT.Secret)
	cfg.JWT.AccessTTL = f.JWT.AccessTTL
	cfg.JWT.RefreshTTL = f.JWT.RefreshTTL
	cfg.JWT.Issuer = f.JWT.Issuer
	cfg.JWT.Audience = f.JWT.Audience

	cfg.Session.RotateRefreshOnUse = f.Session.RotateRefresh

	cfg.EmailVerification.VerifyURL = f.Email.VerifyURL
	cfg.EmailVerification.TokenTTL = f.Email.TokenTTL
	cfg.EmailVerification.Cooldown = f.Email.Cooldown
	cfg.EmailVerification.DailyLimit = f.Email.DailyLimit
	cfg.EmailVerification.RedisPrefix = f.Email.RedisPrefix

	cfg.Security.RequireActiveForLogin = f.Security.RequireActive
	cfg.Security.MaxLoginAttempts = f.Security.MaxLoginAttempts
	cfg.Security.LoginCooldownDuration = f.Security.LoginCooldown
	cfg.Security.EnableIPThrottle = f.Security.IPThrottle

	cfg.Audit.Enabled = f.Audit.Enabled

	cfg.Tasks.Workers = f.Tasks.Workers
	cfg.Tasks.MaxRetries = f.Tasks.MaxRetries
	cfg.Tasks.RetryDelay = f.Tasks.RetryDelay

	return cfg
}
