package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pymesuite/authcore/session"
)

type sessionRow struct {
	ID        int64        `db:"id"`
	UserID    int64        `db:"user_id"`
	TokenHash []byte       `db:"token_hash"`
	CreatedAt time.Time    `db:"created_at"`
	ExpiresAt time.Time    `db:"expires_at"`
	RevokedAt sql.NullTime `db:"revoked_at"`
}

// CreateSession stores sess and assigns its ID. A reused token hash yields
// session.ErrDuplicateToken.
func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	var id int64
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO sessions (user_id, token_hash, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`),
		sess.UserID, sess.TokenHash[:], sess.CreatedAt.UTC(), sess.ExpiresAt.UTC(),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return session.ErrDuplicateToken
		}
		return dbErr(err)
	}
	sess.ID = id
	return nil
}

// FindSession returns the session stored under hash, revoked or not.
func (s *Store) FindSession(ctx context.Context, hash [32]byte) (*session.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, s.q(`
		SELECT id, user_id, token_hash, created_at, expires_at, revoked_at
		FROM sessions WHERE token_hash = ?`), hash[:])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, dbErr(err)
	}
	if len(row.TokenHash) != len(hash) {
		return nil, session.ErrCorrupt
	}

	out := &session.Session{
		ID:        row.ID,
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt.UTC(),
		ExpiresAt: row.ExpiresAt.UTC(),
	}
	copy(out.TokenHash[:], row.TokenHash)
	if row.RevokedAt.Valid {
		t := row.RevokedAt.Time.UTC()
		out.RevokedAt = &t
	}
	return out, nil
}

// RevokeSession marks the session revoked. The first revocation time is kept.
func (s *Store) RevokeSession(ctx context.Context, hash [32]byte, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE sessions SET revoked_at = COALESCE(revoked_at, ?)
		WHERE token_hash = ?`), at.UTC(), hash[:])
	if err != nil {
		return dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbErr(err)
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

// RevokeUserSessions revokes every live session of userID and returns how
// many were touched.
func (s *Store) RevokeUserSessions(ctx context.Context, userID int64, at time.Time) (int, error) {
	at = at.UTC()
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE sessions SET revoked_at = ?
		WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?`), at, userID, at)
	if err != nil {
		return 0, dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbErr(err)
	}
	return int(n), nil
}

// ActiveSessionCount counts unrevoked, unexpired sessions of userID.
func (s *Store) ActiveSessionCount(ctx context.Context, userID int64, now time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.q(`
		SELECT COUNT(*) FROM sessions
		WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?`), userID, now.UTC())
	if err != nil {
		return 0, dbErr(err)
	}
	return n, nil
}
