package authcore

import (
	"context"
	"time"
)

const (
	auditEventLoginSuccess              = "login_success"
	auditEventLoginFailure              = "login_failure"
	auditEventRefreshSuccess            = "refresh_success"
	auditEventRefreshSuperseded         = "refresh_superseded"
	auditEventRefreshFailure            = "refresh_failure"
	auditEventLogout                    = "logout"
	auditEventSignupSuccess             = "signup_success"
	auditEventSignupFailure             = "signup_failure"
	auditEventEmailVerificationRequest  = "email_verification_request"
	auditEventEmailVerificationThrottle = "email_verification_throttled"
	auditEventEmailVerificationConfirm  = "email_verification_confirm"
	auditEventSocialLoginSuccess        = "social_login_success"
	auditEventSocialLoginFailure        = "social_login_failure"
)

type auditFields struct {
	UserID   string
	Email    string
	Provider string
	Metadata map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, err error, f auditFields) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    f.UserID,
		Email:     f.Email,
		Provider:  f.Provider,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  f.Metadata,
	}
	if err != nil {
		event.Error = string(ErrorKindOf(err))
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}
