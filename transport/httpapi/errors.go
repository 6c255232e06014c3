package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authcore"
)

// writeError maps an engine error onto a status and a {error: kind} body.
// Tokens and internal error text never reach the client.
func writeError(c *gin.Context, err error) {
	kind := authcore.ErrorKindOf(err)
	body := gin.H{"error": kind}

	status := http.StatusInternalServerError
	switch kind {
	case authcore.KindExpired, authcore.KindMalformed, authcore.KindWrongKind,
		authcore.KindAlreadyUsed, authcore.KindSuperseded, authcore.KindAuthFailed:
		status = http.StatusUnauthorized
	case authcore.KindThrottled:
		status = http.StatusTooManyRequests
		body["reason"] = throttleReason(err)
	case authcore.KindLoginRateLimited:
		status = http.StatusTooManyRequests
	case authcore.KindUnknownProvider, authcore.KindUserNotFound:
		status = http.StatusNotFound
	case authcore.KindSocialLoginFailed:
		status = http.StatusBadGateway
	case authcore.KindStoreUnavailable, authcore.KindNotReady:
		status = http.StatusServiceUnavailable
	case authcore.KindEmailTaken:
		status = http.StatusConflict
	case authcore.KindInvalidInput:
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

func throttleReason(err error) string {
	switch reason := authcore.ThrottleReason(err); {
	case errors.Is(reason, authcore.ErrCooldownActive):
		return "cooldown_active"
	case errors.Is(reason, authcore.ErrDailyLimitExceeded):
		return "daily_limit_exceeded"
	default:
		return ""
	}
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": authcore.KindInvalidInput})
}
