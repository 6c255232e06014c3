package flows

import (
	"context"
	"errors"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Store    SessionStore
	NotFound error
}

// RunLogout clears the stored refresh token of userID. Clearing an already
// empty session succeeds; an unknown user is also treated as logged out.
func RunLogout(ctx context.Context, userID string, deps LogoutDeps) error {
	err := deps.Store.SetStoredRefreshToken(ctx, userID, "")
	if err != nil && deps.NotFound != nil && errors.Is(err, deps.NotFound) {
		return nil
	}
	return err
}
