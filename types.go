package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/tasks"
	"github.com/MrEthical07/authcore/social"
)

// User types accepted at signup.
const (
	UserTypeArtist    = "ARTIST"
	UserTypeCollector = "COLLECTOR"
)

// User is the identity record the engine reads. RefreshToken is the user's
// single stored session token, empty when logged out.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	UserType     string
	Active       bool
	SocialType   string
	SocialID     string
	RefreshToken string
	CreatedAt    time.Time
}

// NewUser is the input to IdentityStore.CreateUser.
type NewUser struct {
	Email        string
	Username     string
	PasswordHash string
	UserType     string
	Active       bool
}

// ExternalIdentity is a provider-normalized social identity.
type ExternalIdentity = social.Identity

// SocialAdapter is one OAuth provider integration.
type SocialAdapter = social.Adapter

// IdentityStore persists users. Misses return ErrUserNotFound, duplicate
// emails on create return ErrEmailTaken; anything else is treated as the
// store being unavailable.
type IdentityStore interface {
	FindByID(ctx context.Context, userID string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, input NewUser) (User, error)
	// CreateOrGetByExternalIdentity returns the user keyed by
	// (provider, subject id), creating an active one when absent.
	CreateOrGetByExternalIdentity(ctx context.Context, id ExternalIdentity) (User, bool, error)
	SetActive(ctx context.Context, userID string) error
	StoredRefreshToken(ctx context.Context, userID string) (string, error)
	// SetStoredRefreshToken overwrites the stored token; "" clears it.
	SetStoredRefreshToken(ctx context.Context, userID, token string) error
}

// PasswordUpgrader is implemented by identity stores that accept rehashed
// passwords after a successful login.
type PasswordUpgrader interface {
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// JobSendVerificationEmail takes (email, token) arguments.
const JobSendVerificationEmail = tasks.SendVerificationEmailJob

// TaskDispatcher accepts fire-and-forget jobs with at-least-once delivery.
// A nil error means the job was accepted, not that it ran.
type TaskDispatcher interface {
	Enqueue(ctx context.Context, job string, args ...string) error
}

// Mailer delivers outgoing mail for the built-in dispatcher.
type Mailer = tasks.Mailer

// MailMessage is an outgoing mail.
type MailMessage = tasks.Message

// TokenPair is the result of a login or refresh. RefreshToken is empty after
// a refresh unless rotation is enabled.
type TokenPair struct {
	UserID       string
	UserType     string
	AccessToken  string
	RefreshToken string
}

// AuthResult describes the user behind a valid access token.
type AuthResult struct {
	UserID    string
	Email     string
	UserType  string
	Active    bool
	ExpiresAt time.Time
}

// SignupInput is a password signup request.
type SignupInput struct {
	Email    string
	Username string
	Password string
	UserType string
}

// SignupResult reports the created user. VerificationErr carries a failed
// follow-up verification send; the signup itself still succeeded.
type SignupResult struct {
	UserID          string
	Email           string
	UserType        string
	VerificationErr error
}

// SocialLoginResult carries the session issued for an external identity.
type SocialLoginResult struct {
	TokenPair
	Provider string
	Email    string
	// Created is true when this login created the local user.
	Created bool
}

// VerificationResult is the outcome of consuming a verification token.
type VerificationResult struct {
	UserID string
	Email  string
}
