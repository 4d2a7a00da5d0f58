package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/baharkarakas/prediction-backend/internal/auth"
)

func TestAuthMiddleware(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", "ledger-test", time.Minute)
	mw := NewAuthMiddleware(tm)

	protected := mw.Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserID(r.Context())
		role, _ := Role(r.Context())
		w.Header().Set("X-Uid", uid)
		w.Header().Set("X-Role", role)
	}))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", rec.Code)
	}

	token, _, err := tm.Generate("user-1", "admin")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d", rec.Code)
	}
	if rec.Header().Get("X-Uid") != "user-1" || rec.Header().Get("X-Role") != "admin" {
		t.Errorf("claims not propagated: uid=%s role=%s", rec.Header().Get("X-Uid"), rec.Header().Get("X-Role"))
	}
}

func TestRequireAdmin(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", "ledger-test", time.Minute)
	mw := NewAuthMiddleware(tm)

	ok := false
	chain := mw.Auth(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok = true
	})))

	userToken, _, _ := tm.Generate("user-1", "user")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || ok {
		t.Errorf("non-admin passed: status = %d", rec.Code)
	}

	adminToken, _, _ := tm.Generate("admin-1", "admin")
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !ok {
		t.Errorf("admin rejected: status = %d", rec.Code)
	}
}
