package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates the purpose of a claim set.
type Kind string

const (
	// KindAccess marks short-lived bearer tokens.
	KindAccess Kind = "access"
	// KindRefresh marks long-lived tokens exchanged for new access tokens.
	KindRefresh Kind = "refresh"
	// KindEmailVerification marks single-use email confirmation tokens.
	KindEmailVerification Kind = "email_verification"
)

// RequiresTokenID reports whether claim sets of this kind must carry a jti.
func (k Kind) RequiresTokenID() bool {
	return k == KindRefresh || k == KindEmailVerification
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAccess, KindRefresh, KindEmailVerification:
		return true
	default:
		return false
	}
}

// Claims is the claim set carried by every token the codec produces.
//
// The subject (sub) is the opaque user id and the registered ID (jti) is the
// token id used for single-use and blacklist tracking.
type Claims struct {
	Kind  Kind   `json:"type"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the claim set.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenID returns the jti of the claim set.
func (c *Claims) TokenID() string {
	return c.ID
}

// ExpiresAtTime returns the expiry as a time.Time, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Remaining returns how long the claim set stays valid after now. It is never
// negative.
func (c *Claims) Remaining(now time.Time) time.Duration {
	exp := c.ExpiresAtTime()
	if exp.IsZero() || !exp.After(now) {
		return 0
	}
	return exp.Sub(now)
}

// NewTokenID returns a fresh, globally unique token id.
func NewTokenID() string {
	return uuid.NewString()
}
