package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/MrEthical07/authcore"
)

const uniqueViolation = "23505"

const userColumns = `id, COALESCE(email, ''), username, COALESCE(password_hash, ''), user_type, is_active,
	COALESCE(social_type, ''), COALESCE(social_id, ''), COALESCE(refresh_token, ''), created_at`

// poolIface is the subset of *pgxpool.Pool the store uses, so tests can
// substitute pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pool for dsn and verifies the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return pool, nil
}

// UserStore implements authcore.IdentityStore and authcore.PasswordUpgrader.
type UserStore struct {
	pool poolIface
	now  func() time.Time
}

var (
	_ authcore.IdentityStore    = (*UserStore)(nil)
	_ authcore.PasswordUpgrader = (*UserStore)(nil)
)

// NewUserStore creates a store on pool.
func NewUserStore(pool poolIface) *UserStore {
	return &UserStore{pool: pool, now: time.Now}
}

// FindByID loads a user by id.
func (s *UserStore) FindByID(ctx context.Context, userID string) (authcore.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return authcore.User{}, oops.Code("USER_NOT_FOUND").With("user_id", userID).Wrap(authcore.ErrUserNotFound)
	}
	if err != nil {
		return authcore.User{}, oops.Code("USER_GET_FAILED").With("user_id", userID).Wrap(err)
	}
	return u, nil
}

// FindByEmail loads a user by normalized email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (authcore.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return authcore.User{}, oops.Code("USER_NOT_FOUND").Wrap(authcore.ErrUserNotFound)
	}
	if err != nil {
		return authcore.User{}, oops.Code("USER_GET_FAILED").With("operation", "find by email").Wrap(err)
	}
	return u, nil
}

// CreateUser inserts a password user with a fresh ULID.
func (s *UserStore) CreateUser(ctx context.Context, in authcore.NewUser) (authcore.User, error) {
	id := ulid.Make().String()
	now := s.now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, username, password_hash, user_type, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $7)`,
		id, in.Email, in.Username, in.PasswordHash, in.UserType, in.Active, now)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return authcore.User{}, oops.Code("USER_EMAIL_TAKEN").Wrap(authcore.ErrEmailTaken)
		}
		return authcore.User{}, oops.Code("USER_CREATE_FAILED").With("user_id", id).Wrap(err)
	}

	return authcore.User{
		ID:           id,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		UserType:     in.UserType,
		Active:       in.Active,
		CreatedAt:    now,
	}, nil
}

// CreateOrGetByExternalIdentity returns the user for (provider, subject id),
// inserting an active collector when none exists. created reports the insert.
// Only the email is taken from the identity; the username keeps the column
// default. Emails are stored lowercased, matching password signups.
func (s *UserStore) CreateOrGetByExternalIdentity(ctx context.Context, id authcore.ExternalIdentity) (authcore.User, bool, error) {
	now := s.now().UTC()
	email := strings.ToLower(strings.TrimSpace(id.Email))
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, user_type, is_active, social_type, social_id, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), $3, TRUE, $4, $5, $6, $6)
		 ON CONFLICT (social_type, social_id) DO NOTHING
		 RETURNING `+userColumns,
		ulid.Make().String(), email, authcore.UserTypeCollector, id.Provider, id.SubjectID, now)
	u, err := scanUser(row)
	switch {
	case err == nil:
		return u, true, nil
	case isUniqueViolation(err, "users_email_key"):
		return authcore.User{}, false, oops.Code("USER_EMAIL_TAKEN").
			With("provider", id.Provider).
			Wrap(authcore.ErrEmailTaken)
	case !errors.Is(err, pgx.ErrNoRows):
		return authcore.User{}, false, oops.Code("USER_CREATE_FAILED").With("provider", id.Provider).Wrap(err)
	}

	row = s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE social_type = $1 AND social_id = $2`,
		id.Provider, id.SubjectID)
	u, err = scanUser(row)
	if err != nil {
		return authcore.User{}, false, oops.Code("USER_GET_FAILED").With("provider", id.Provider).Wrap(err)
	}
	return u, false, nil
}

// SetActive marks the user verified.
func (s *UserStore) SetActive(ctx context.Context, userID string) error {
	return s.update(ctx, "USER_ACTIVATE_FAILED", userID,
		`UPDATE users SET is_active = TRUE, updated_at = $2 WHERE id = $1`, userID, s.now().UTC())
}

// StoredRefreshToken returns the user's current refresh token, "" when none.
func (s *UserStore) StoredRefreshToken(ctx context.Context, userID string) (string, error) {
	var token string
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(refresh_token, '') FROM users WHERE id = $1`, userID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.Code("USER_NOT_FOUND").With("user_id", userID).Wrap(authcore.ErrUserNotFound)
	}
	if err != nil {
		return "", oops.Code("REFRESH_TOKEN_GET_FAILED").With("user_id", userID).Wrap(err)
	}
	return token, nil
}

// SetStoredRefreshToken overwrites the stored refresh token; "" clears it.
func (s *UserStore) SetStoredRefreshToken(ctx context.Context, userID, token string) error {
	return s.update(ctx, "REFRESH_TOKEN_SET_FAILED", userID,
		`UPDATE users SET refresh_token = NULLIF($2, ''), updated_at = $3 WHERE id = $1`, userID, token, s.now().UTC())
}

// UpdatePasswordHash replaces the stored hash after a rehash on login.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return s.update(ctx, "PASSWORD_HASH_UPDATE_FAILED", userID,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, userID, hash, s.now().UTC())
}

func (s *UserStore) update(ctx context.Context, code, userID, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code(code).With("user_id", userID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("user_id", userID).Wrap(authcore.ErrUserNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (authcore.User, error) {
	var u authcore.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.UserType, &u.Active,
		&u.SocialType, &u.SocialID, &u.RefreshToken, &u.CreatedAt)
	return u, err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}
