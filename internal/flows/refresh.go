package flows

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/MrEthical07/authcore/jwt"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureSuperseded
	RefreshFailureUserNotFound
	RefreshFailureStore
	RefreshFailureIssue
)

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Session SessionDeps
	// Rotate replaces the stored refresh token on every successful refresh.
	Rotate bool
	// NotFound is the store error that marks an unknown user.
	NotFound error
}

// RefreshResult carries the new access token, and the new refresh token when
// rotation is enabled.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	UserID       string
	AccessToken  string
	RefreshToken string
}

// RunRefresh validates presented against the token stored for userID and
// mints a new access token. An empty userID selects the token's subject.
//
// Decode errors take precedence: an expired token is reported as expired,
// never as superseded.
func RunRefresh(ctx context.Context, userID, presented string, deps RefreshDeps) RefreshResult {
	codec := deps.Session.Codec

	claims, err := codec.Decode(presented, jwt.KindRefresh)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err, UserID: userID}
	}
	if userID == "" {
		userID = claims.UserID()
	}
	if claims.UserID() != userID {
		return RefreshResult{Failure: RefreshFailureSuperseded, UserID: userID}
	}

	stored, err := deps.Session.Store.StoredRefreshToken(ctx, userID)
	if err != nil {
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			return RefreshResult{Failure: RefreshFailureUserNotFound, Err: err, UserID: userID}
		}
		return RefreshResult{Failure: RefreshFailureStore, Err: err, UserID: userID}
	}
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return RefreshResult{Failure: RefreshFailureSuperseded, UserID: userID}
	}

	if deps.Rotate {
		issued := RunIssueSession(ctx, userID, deps.Session)
		if issued.Failure != SessionFailureNone {
			failure := RefreshFailureIssue
			if issued.Failure == SessionFailureStore {
				failure = RefreshFailureStore
			}
			return RefreshResult{Failure: failure, Err: issued.Err, UserID: userID}
		}
		return RefreshResult{
			UserID:       userID,
			AccessToken:  issued.AccessToken,
			RefreshToken: issued.RefreshToken,
		}
	}

	access, err := codec.Encode(codec.NewClaims(jwt.KindAccess, userID, deps.Session.AccessTTL))
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: userID}
	}
	return RefreshResult{UserID: userID, AccessToken: access}
}
