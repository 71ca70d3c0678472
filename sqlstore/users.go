package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pymesuite/authcore"
)

type userRow struct {
	ID              int64          `db:"id"`
	Username        string         `db:"username"`
	Email           string         `db:"email"`
	PasswordHash    string         `db:"password_hash"`
	Role            string         `db:"role"`
	IsActive        bool           `db:"is_active"`
	CreatedAt       time.Time      `db:"created_at"`
	LastLogin       sql.NullTime   `db:"last_login"`
	TwoFactorSecret sql.NullString `db:"two_factor_secret"`
}

func (r userRow) record() authcore.UserRecord {
	rec := authcore.UserRecord{
		ID:              r.ID,
		Username:        r.Username,
		Email:           r.Email,
		PasswordHash:    r.PasswordHash,
		Role:            r.Role,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt.UTC(),
		TwoFactorSecret: r.TwoFactorSecret.String,
	}
	if r.LastLogin.Valid {
		t := r.LastLogin.Time.UTC()
		rec.LastLogin = &t
	}
	return rec
}

const userColumns = `id, username, email, password_hash, role, is_active, created_at, last_login, two_factor_secret`

// CreateUser inserts an active account. Username and email collisions yield
// authcore.ErrDuplicateIdentity.
func (s *Store) CreateUser(ctx context.Context, in authcore.CreateUserInput) (authcore.UserRecord, error) {
	createdAt := in.CreatedAt.UTC()
	if in.CreatedAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var secret sql.NullString
	if in.TwoFactorSecret != "" {
		secret = sql.NullString{String: in.TwoFactorSecret, Valid: true}
	}

	var id int64
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO users (username, email, password_hash, role, is_active, created_at, two_factor_secret)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		in.Username, in.Email, in.PasswordHash, in.Role, true, createdAt, secret,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return authcore.UserRecord{}, authcore.ErrDuplicateIdentity
		}
		return authcore.UserRecord{}, dbErr(err)
	}

	return authcore.UserRecord{
		ID:              id,
		Username:        in.Username,
		Email:           in.Email,
		PasswordHash:    in.PasswordHash,
		Role:            in.Role,
		IsActive:        true,
		CreatedAt:       createdAt,
		TwoFactorSecret: in.TwoFactorSecret,
	}, nil
}

// FindActiveUserByUsername returns authcore.ErrUserNotFound for absent and
// deactivated accounts alike.
func (s *Store) FindActiveUserByUsername(ctx context.Context, username string) (authcore.UserRecord, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ? AND is_active = ?`, username, true)
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (authcore.UserRecord, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (authcore.UserRecord, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) getUser(ctx context.Context, query string, args ...any) (authcore.UserRecord, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, s.q(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authcore.UserRecord{}, authcore.ErrUserNotFound
		}
		return authcore.UserRecord{}, dbErr(err)
	}
	return row.record(), nil
}

func (s *Store) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return s.updateUser(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), id)
}

func (s *Store) UpdateRole(ctx context.Context, id int64, role string) error {
	return s.updateUser(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)
}

func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	return s.updateUser(ctx, `UPDATE users SET is_active = ? WHERE id = ?`, active, id)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return s.updateUser(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
}

// SetTwoFactorSecret stores secret; an empty secret clears the second factor.
func (s *Store) SetTwoFactorSecret(ctx context.Context, id int64, secret string) error {
	var v sql.NullString
	if secret != "" {
		v = sql.NullString{String: secret, Valid: true}
	}
	return s.updateUser(ctx, `UPDATE users SET two_factor_secret = ? WHERE id = ?`, v, id)
}

func (s *Store) updateUser(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbErr(err)
	}
	if n == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}
