package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-testseries/internal/rbac"
)

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("secret", "", time.Hour)
	var gotSub, gotRole string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
	}))

	tok, err := a.IssueJWT("u1", "student")
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || gotSub != "u1" || gotRole != "student" {
		t.Fatalf("code=%d sub=%q role=%q", rec.Code, gotSub, gotRole)
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	a := NewAuthService("secret", "", time.Hour)
	other := NewAuthService("other-secret", "", time.Hour)
	expired := NewAuthService("secret", "", time.Hour)
	expired.ttl = -time.Minute

	forged, _ := other.IssueJWT("u1", "admin")
	stale, _ := expired.IssueJWT("u1", "student")

	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler must not run")
	}))
	for name, header := range map[string]string{
		"missing": "",
		"scheme":  "Basic abc",
		"forged":  "Bearer " + forged,
		"expired": "Bearer " + stale,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: code=%d", name, rec.Code)
		}
	}
}
