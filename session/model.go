package session

import "time"

// Session is the durable record behind an opaque session token. Only the
// SHA-256 of the token is kept.
type Session struct {
	ID        int64
	UserID    int64
	TokenHash [32]byte

	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Valid reports whether s grants access at now: not revoked and now strictly
// before ExpiresAt.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// TTL returns the full lifetime of s.
func (s *Session) TTL() time.Duration {
	return s.ExpiresAt.Sub(s.CreatedAt)
}
