package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when no session exists for a token hash.
	ErrNotFound = errors.New("session not found")
	// ErrDuplicateToken is returned when a token hash is already stored.
	ErrDuplicateToken = errors.New("session token already exists")
	// ErrCorrupt is returned when a stored blob cannot be decoded.
	ErrCorrupt = errors.New("session record corrupt")
	// ErrRedisUnavailable is returned when Redis cannot serve a request.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// DefaultPrefix is the key namespace used when none is configured.
const DefaultPrefix = "as"

// RedisStore keeps sessions in Redis, keyed by the hex SHA-256 of the token.
// Keys expire with the session, and revoked sessions are kept as tombstones
// until then so a revoked token can never validate again.
//
// Key layout:
//
//	<prefix>:s:<hash>   encoded Session, TTL = ExpiresAt - CreatedAt
//	<prefix>:u:<user>   set of live hashes for the user
//	<prefix>:seq        session id sequence
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a session store backed by client. An empty prefix
// selects [DefaultPrefix].
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *RedisStore) key(hash [32]byte) string {
	return s.prefix + ":s:" + hex.EncodeToString(hash[:])
}

func (s *RedisStore) userKey(userID int64) string {
	return s.prefix + ":u:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) seqKey() string {
	return s.prefix + ":seq"
}

// CreateSession assigns sess.ID and stores it. The write fails with
// [ErrDuplicateToken] if the token hash already exists.
//
//	Performance: INCR + SET NX + one pipelined index update.
func (s *RedisStore) CreateSession(ctx context.Context, sess *Session) error {
	ttl := sess.TTL()
	if ttl <= 0 {
		return errors.New("session lifetime must be positive")
	}

	id, err := s.redis.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	sess.ID = id

	data, err := Encode(sess)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.key(sess.TokenHash), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return ErrDuplicateToken
	}

	userKey := s.userKey(sess.UserID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, userKey, hex.EncodeToString(sess.TokenHash[:]))
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// FindSession returns the session stored under hash, revoked or not.
// Validity against a clock is the caller's decision.
//
//	Performance: 1 Redis GET.
func (s *RedisStore) FindSession(ctx context.Context, hash [32]byte) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return sess, nil
}

// RevokeSession marks the session revoked at at, keeping its remaining TTL.
// Revoking an already revoked session keeps the first timestamp.
func (s *RedisStore) RevokeSession(ctx context.Context, hash [32]byte, at time.Time) error {
	key := s.key(hash)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		sess, err := Decode(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if sess.RevokedAt != nil {
			return nil
		}

		revokedAt := at.UTC()
		sess.RevokedAt = &revokedAt
		encoded, err := Encode(sess)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, encoded, redis.SetArgs{KeepTTL: true})
			pipe.SRem(ctx, s.userKey(sess.UserID), hex.EncodeToString(hash[:]))
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}, key)

	return classify(err)
}

// RevokeUserSessions revokes every live session of userID and returns how
// many were revoked.
//
// ATOMICITY NOTE: the user's index is read first and each member revoked in
// its own transaction. A session created between the two phases survives
// this call; callers needing a hard cut-off deactivate the account first.
func (s *RedisStore) RevokeUserSessions(ctx context.Context, userID int64, at time.Time) (int, error) {
	members, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var revoked int
	for _, member := range members {
		raw, decodeErr := hex.DecodeString(member)
		if decodeErr != nil || len(raw) != 32 {
			_ = s.redis.SRem(ctx, s.userKey(userID), member).Err()
			continue
		}
		var hash [32]byte
		copy(hash[:], raw)

		if err := s.RevokeSession(ctx, hash, at); err != nil {
			if errors.Is(err, ErrNotFound) {
				_ = s.redis.SRem(ctx, s.userKey(userID), member).Err()
				continue
			}
			return revoked, err
		}
		revoked++
	}

	return revoked, nil
}

// ActiveSessionCount returns the number of indexed, unrevoked sessions of userID.
func (s *RedisStore) ActiveSessionCount(ctx context.Context, userID int64) (int, error) {
	count, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCorrupt), errors.Is(err, ErrRedisUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
}
