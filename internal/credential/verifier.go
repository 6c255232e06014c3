package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by a Lookup when no account has the email.
	ErrNotFound = errors.New("account not found")
	// ErrUnavailable wraps identity store or hasher infrastructure failures.
	ErrUnavailable = errors.New("credential store unavailable")
)

// Account is the slice of a user record needed to check a password.
type Account struct {
	UserID       string
	UserType     string
	PasswordHash string
	Active       bool
}

// Lookup resolves an account by email. It returns ErrNotFound on a miss and
// any other error for I/O failures.
type Lookup func(ctx context.Context, email string) (Account, error)

// Hasher verifies passwords against stored hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password string, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Rehash stores an upgraded hash after a successful verification.
type Rehash func(ctx context.Context, userID, newHash string) error

// Verifier checks email and password pairs. It never reveals whether the
// email exists: a miss and a wrong password produce the same result and take
// comparable time.
type Verifier struct {
	lookup    Lookup
	hasher    Hasher
	rehash    Rehash
	dummyHash string
}

// NewVerifier returns a Verifier. rehash may be nil to disable upgrades.
func NewVerifier(lookup Lookup, hasher Hasher, rehash Rehash) (*Verifier, error) {
	if lookup == nil || hasher == nil {
		return nil, errors.New("credential verifier requires lookup and hasher")
	}
	dummy, err := hasher.Hash("timing-equalizer-password")
	if err != nil {
		return nil, fmt.Errorf("derive dummy hash: %w", err)
	}
	return &Verifier{
		lookup:    lookup,
		hasher:    hasher,
		rehash:    rehash,
		dummyHash: dummy,
	}, nil
}

// Verify returns the matching account and true when password matches the
// stored hash for email. A miss or mismatch is (Account{}, false, nil); only
// infrastructure failures return an error.
func (v *Verifier) Verify(ctx context.Context, email, password string) (Account, bool, error) {
	email = NormalizeEmail(email)

	acct, err := v.lookup(ctx, email)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Account{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	target := v.dummyHash
	if found && acct.PasswordHash != "" {
		target = acct.PasswordHash
	}

	ok, verr := v.hasher.Verify(password, target)
	if !found || acct.PasswordHash == "" {
		// Social-only accounts have no password and never match.
		return Account{}, false, nil
	}
	if verr != nil || !ok {
		return Account{}, false, nil
	}

	if v.rehash != nil {
		if upgrade, err := v.hasher.NeedsUpgrade(acct.PasswordHash); err == nil && upgrade {
			if newHash, err := v.hasher.Hash(password); err == nil {
				// Best effort; the login already succeeded.
				_ = v.rehash(ctx, acct.UserID, newHash)
			}
		}
	}

	return acct, true, nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
