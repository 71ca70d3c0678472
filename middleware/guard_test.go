package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pymesuite/authcore"
	"github.com/pymesuite/authcore/permission"
)

var _ Authorizer = (*authcore.Engine)(nil)

type fakeEngine struct {
	sessions map[string]int64
	roles    map[int64]permission.Role
	matrix   *permission.Matrix
}

func (f *fakeEngine) ValidateSession(_ context.Context, token string) (int64, bool) {
	id, ok := f.sessions[token]
	return id, ok
}

func (f *fakeEngine) RoleOf(_ context.Context, userID int64) permission.Role {
	if r, ok := f.roles[userID]; ok {
		return r
	}
	return permission.RoleUser
}

func (f *fakeEngine) HasPermission(role, module, action string) bool {
	mod, ok := permission.ParseModule(module)
	if !ok {
		return false
	}
	act, ok := permission.ParseAction(action)
	if !ok {
		return false
	}
	return f.matrix.HasPermission(permission.ParseRole(role), mod, act)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		sessions: map[string]int64{"admin-token": 1, "user-token": 2},
		roles:    map[int64]permission.Role{1: permission.RoleAdmin, 2: permission.RoleUser},
		matrix:   permission.DefaultMatrix(),
	}
}

func echoUser(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			t.Error("user id missing from context")
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireSession(t *testing.T) {
	h := RequireSession(newFakeEngine())(echoUser(t))

	cases := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{"bearer", "Bearer user-token", "", http.StatusNoContent},
		{"cookie", "", "admin-token", http.StatusNoContent},
		{"header wins over cookie", "Bearer bogus", "admin-token", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic user-token", "", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", "", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tc.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	engine := newFakeEngine()

	var gotRole permission.Role
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole, _ = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		token, module, action string
		want                  int
	}{
		{"admin-token", "finance", "delete", http.StatusOK},
		{"user-token", "dashboard", "view", http.StatusOK},
		{"user-token", "finance", "view", http.StatusForbidden},
		{"user-token", "nonexistent", "view", http.StatusForbidden},
		{"bad-token", "dashboard", "view", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tc.token)
		rec := httptest.NewRecorder()
		RequirePermission(engine, tc.module, tc.action)(next).ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s %s/%s: expected %d, got %d", tc.token, tc.module, tc.action, tc.want, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	RequirePermission(engine, "admin", "view")(next).ServeHTTP(httptest.NewRecorder(), req)
	if gotRole != permission.RoleAdmin {
		t.Fatalf("expected admin role in context, got %q", gotRole)
	}
}

func TestNilEngineRejects(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	RequireSession(nil)(echoUser(t)).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
