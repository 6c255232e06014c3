// Package httpapi exposes the engine over JSON HTTP using gin.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authcore"
)

// Auth is the engine surface the handlers need. *authcore.Engine satisfies it.
type Auth interface {
	Signup(ctx context.Context, in authcore.SignupInput) (authcore.SignupResult, error)
	RequestEmailVerification(ctx context.Context, userID, email string) error
	ConsumeEmailVerification(ctx context.Context, token string) (authcore.VerificationResult, error)
	Login(ctx context.Context, email, password string) (authcore.TokenPair, error)
	Refresh(ctx context.Context, userID, refreshToken string) (authcore.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	Authenticate(ctx context.Context, accessToken string) (authcore.AuthResult, error)
	SocialLogin(ctx context.Context, provider, code, redirectURI string) (authcore.SocialLoginResult, error)
	Health(ctx context.Context) authcore.HealthStatus
}

// NewRouter registers every route on a fresh gin engine. logger may be nil.
func NewRouter(auth Auth, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &handler{auth: auth, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), ClientIP(), requestLogger(logger))

	r.GET("/healthz", h.health)

	g := r.Group("/auth")
	g.POST("/signup", h.signup)
	g.POST("/send-verification", h.sendVerification)
	g.POST("/verify-email", h.verifyEmail)
	g.POST("/login", h.login)
	g.POST("/refresh-token", h.refresh)
	g.POST("/social/:provider", h.socialLogin)

	authed := g.Group("")
	authed.Use(RequireBearer(auth))
	authed.POST("/logout", h.logout)
	authed.GET("/me", h.me)

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.LogAttrs(c.Request.Context(), slog.LevelInfo, "http request",
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

// health reports 503 while the cache is unreachable.
func (h *handler) health(c *gin.Context) {
	st := h.auth.Health(c.Request.Context())
	if !st.RedisAvailable {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"redis":            true,
		"redis_latency_ms": st.RedisLatency.Milliseconds(),
	})
}
