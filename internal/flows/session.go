package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// TokenCodec is the subset of jwt.Codec the flows use.
type TokenCodec interface {
	NewClaims(kind jwt.Kind, userID string, ttl time.Duration) jwt.Claims
	Encode(claims jwt.Claims) (string, error)
	Decode(tokenStr string, expected jwt.Kind) (*jwt.Claims, error)
	Now() time.Time
}

// SessionStore holds the single stored refresh token of each user.
type SessionStore interface {
	// StoredRefreshToken returns the current token, "" when none is stored.
	StoredRefreshToken(ctx context.Context, userID string) (string, error)
	// SetStoredRefreshToken overwrites the stored token; "" clears it.
	SetStoredRefreshToken(ctx context.Context, userID, token string) error
}

// SessionDeps captures what every session-issuing flow needs.
type SessionDeps struct {
	Codec      TokenCodec
	Store      SessionStore
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SessionFailureKind classifies issuance failures.
type SessionFailureKind int

const (
	SessionFailureNone SessionFailureKind = iota
	SessionFailureEncode
	SessionFailureStore
)

// SessionResult carries a freshly issued token pair.
type SessionResult struct {
	Failure      SessionFailureKind
	Err          error
	AccessToken  string
	RefreshToken string
}

// RunIssueSession mints an access and a refresh token for userID and stores
// the refresh token as the user's only session, replacing any previous one.
func RunIssueSession(ctx context.Context, userID string, deps SessionDeps) SessionResult {
	access, err := deps.Codec.Encode(deps.Codec.NewClaims(jwt.KindAccess, userID, deps.AccessTTL))
	if err != nil {
		return SessionResult{Failure: SessionFailureEncode, Err: err}
	}
	refresh, err := deps.Codec.Encode(deps.Codec.NewClaims(jwt.KindRefresh, userID, deps.RefreshTTL))
	if err != nil {
		return SessionResult{Failure: SessionFailureEncode, Err: err}
	}

	if err := deps.Store.SetStoredRefreshToken(ctx, userID, refresh); err != nil {
		return SessionResult{Failure: SessionFailureStore, Err: err}
	}

	return SessionResult{AccessToken: access, RefreshToken: refresh}
}
