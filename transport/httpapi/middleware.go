package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authcore"
)

const authResultKey = "authcore.auth_result"

// RequireBearer rejects requests without a valid access token and stores the
// authenticated identity for AuthResultFrom.
func RequireBearer(auth Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": authcore.KindMalformed})
			return
		}

		res, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}

		c.Set(authResultKey, res)
		c.Next()
	}
}

// AuthResultFrom returns the identity set by RequireBearer.
func AuthResultFrom(c *gin.Context) (authcore.AuthResult, bool) {
	v, ok := c.Get(authResultKey)
	if !ok {
		return authcore.AuthResult{}, false
	}
	res, ok := v.(authcore.AuthResult)
	return res, ok
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	return token, token != ""
}

// ClientIP stores gin's view of the caller address on the request context so
// the engine can throttle logins per IP and stamp audit events.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ip := c.ClientIP(); ip != "" {
			c.Request = c.Request.WithContext(authcore.WithClientIP(c.Request.Context(), ip))
		}
		c.Next()
	}
}
