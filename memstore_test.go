package authcore

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pymesuite/authcore/permission"
	"github.com/pymesuite/authcore/session"
)

// memStore is an in-memory UserStore, SessionStore and PermissionStore.
type memStore struct {
	mu       sync.Mutex
	users    map[int64]UserRecord
	sessions map[[32]byte]session.Session
	perms    map[permission.Role]map[permission.Module]permission.Grant
	nextUser int64
	nextSess int64

	failLastLogin bool
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]UserRecord{},
		sessions: map[[32]byte]session.Session{},
		perms:    map[permission.Role]map[permission.Module]permission.Grant{},
	}
}

func (s *memStore) CreateUser(_ context.Context, in CreateUserInput) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == in.Username || u.Email == in.Email {
			return UserRecord{}, ErrDuplicateIdentity
		}
	}
	s.nextUser++
	rec := UserRecord{
		ID:              s.nextUser,
		Username:        in.Username,
		Email:           in.Email,
		PasswordHash:    in.PasswordHash,
		Role:            in.Role,
		IsActive:        true,
		CreatedAt:       in.CreatedAt,
		TwoFactorSecret: in.TwoFactorSecret,
	}
	s.users[rec.ID] = rec
	return rec, nil
}

func (s *memStore) FindActiveUserByUsername(ctx context.Context, username string) (UserRecord, error) {
	u, err := s.FindUserByUsername(ctx, username)
	if err != nil {
		return UserRecord{}, err
	}
	if !u.IsActive {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (s *memStore) FindUserByUsername(_ context.Context, username string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (s *memStore) GetUserByID(_ context.Context, id int64) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (s *memStore) update(id int64, fn func(*UserRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(&u)
	s.users[id] = u
	return nil
}

func (s *memStore) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	if s.failLastLogin {
		return ErrStoreUnavailable
	}
	return s.update(id, func(u *UserRecord) { u.LastLogin = &at })
}

func (s *memStore) UpdateRole(_ context.Context, id int64, role string) error {
	return s.update(id, func(u *UserRecord) { u.Role = role })
}

func (s *memStore) SetActive(_ context.Context, id int64, active bool) error {
	return s.update(id, func(u *UserRecord) { u.IsActive = active })
}

func (s *memStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	return s.update(id, func(u *UserRecord) { u.PasswordHash = hash })
}

func (s *memStore) SetTwoFactorSecret(_ context.Context, id int64, secret string) error {
	return s.update(id, func(u *UserRecord) { u.TwoFactorSecret = secret })
}

func (s *memStore) CreateSession(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.TokenHash]; ok {
		return session.ErrDuplicateToken
	}
	s.nextSess++
	sess.ID = s.nextSess
	s.sessions[sess.TokenHash] = *sess
	return nil
}

func (s *memStore) FindSession(_ context.Context, hash [32]byte) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[hash]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &sess, nil
}

func (s *memStore) RevokeSession(_ context.Context, hash [32]byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[hash]
	if !ok {
		return session.ErrNotFound
	}
	if sess.RevokedAt == nil {
		sess.RevokedAt = &at
		s.sessions[hash] = sess
	}
	return nil
}

func (s *memStore) RevokeUserSessions(_ context.Context, userID int64, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for h, sess := range s.sessions {
		if sess.UserID != userID || sess.RevokedAt != nil || !at.Before(sess.ExpiresAt) {
			continue
		}
		sess.RevokedAt = &at
		s.sessions[h] = sess
		n++
	}
	return n, nil
}

func (s *memStore) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *memStore) SeedPermissions(_ context.Context, grants []permission.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range grants {
		if _, ok := s.perms[g.Role][g.Module]; ok {
			continue
		}
		s.putGrant(g)
	}
	return nil
}

func (s *memStore) UpsertPermissions(_ context.Context, grants []permission.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range grants {
		s.putGrant(g)
	}
	return nil
}

func (s *memStore) putGrant(g permission.Grant) {
	if s.perms[g.Role] == nil {
		s.perms[g.Role] = map[permission.Module]permission.Grant{}
	}
	s.perms[g.Role][g.Module] = g
}

func (s *memStore) LoadPermissions(context.Context) ([]permission.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []permission.Grant
	for _, byModule := range s.perms {
		for _, g := range byModule {
			out = append(out, g)
		}
	}
	return out, nil
}

var testEpoch = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	cfg.Audit.Synchronous = true
	cfg.SecondFactor.PrivateKey = bytes.Repeat([]byte("k"), 32)
	return cfg
}

type testEngine struct {
	*Engine
	store *memStore
	clock *clockwork.FakeClock
	audit *auditRecorder
}

type auditRecorder struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (r *auditRecorder) Emit(_ context.Context, ev AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *auditRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

func (r *auditRecorder) count(kind string) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T, cfg Config, configure ...func(*Builder)) *testEngine {
	t.Helper()

	store := newMemStore()
	clock := clockwork.NewFakeClockAt(testEpoch)
	rec := &auditRecorder{}

	b := New().
		WithConfig(cfg).
		WithUserStore(store).
		WithSessionStore(store).
		WithPermissionStore(store).
		WithClock(clock).
		WithAuditSink(rec)
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if err := engine.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	return &testEngine{Engine: engine, store: store, clock: clock, audit: rec}
}

// login runs both steps for a non-exempt account.
func (te *testEngine) login(t *testing.T, username, password string) *AuthResult {
	t.Helper()
	ctx := context.Background()

	res, err := te.Authenticate(ctx, username, password)
	if err != nil {
		t.Fatalf("Authenticate(%s) failed: %v", username, err)
	}
	if res.Status != StatusNeedsSecondFactor || res.Pending == nil {
		t.Fatalf("expected pending second factor, got %v", res.Status)
	}

	code, err := te.TOTP().Code(res.Pending.Secret, te.clock.Now())
	if err != nil {
		t.Fatalf("code generation failed: %v", err)
	}
	res, err = te.VerifySecondFactor(ctx, *res.Pending, code)
	if err != nil {
		t.Fatalf("VerifySecondFactor failed: %v", err)
	}
	if res.Status != StatusAuthenticated || res.SessionToken == "" {
		t.Fatalf("expected authenticated result, got %+v", res)
	}
	return res
}
