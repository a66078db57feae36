package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/auth"
)

type stubVerifier struct {
	claims auth.Claims
	err    error
	got    string
}

func (s *stubVerifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	s.got = token
	return s.claims, s.err
}

func serveWithAuth(v auth.AuthVerifier, header, value string) (auth.Claims, bool) {
	var (
		claims auth.Claims
		ok     bool
	)
	h := AuthContext(v, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok = GetClaims(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/pets", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return claims, ok
}

func TestAuthContext_DevHeader(t *testing.T) {
	c, ok := serveWithAuth(nil, "X-Debug-User-ID", " u1 ")
	if !ok || c.UserID != "u1" {
		t.Fatalf("expected debug claims, got %+v ok=%v", c, ok)
	}

	if _, ok := serveWithAuth(nil, "", ""); ok {
		t.Fatalf("expected no claims without header")
	}
}

func TestAuthContext_BearerToken(t *testing.T) {
	v := &stubVerifier{claims: auth.Claims{UserID: "u2"}}

	c, ok := serveWithAuth(v, "Authorization", "bearer abc")
	if !ok || c.UserID != "u2" {
		t.Fatalf("expected verified claims, got %+v ok=%v", c, ok)
	}
	if v.got != "abc" {
		t.Fatalf("expected token abc, got %q", v.got)
	}

	// con verifier el header de depuración se ignora
	if _, ok := serveWithAuth(v, "X-Debug-User-ID", "u1"); ok {
		t.Fatalf("debug header must be ignored when a verifier is configured")
	}
}

func TestAuthContext_RejectedTokenPassesThrough(t *testing.T) {
	v := &stubVerifier{err: errors.New("expired")}

	if _, ok := serveWithAuth(v, "Authorization", "Bearer abc"); ok {
		t.Fatalf("expected no claims for rejected token")
	}
	if _, ok := serveWithAuth(v, "Authorization", "Basic abc"); ok {
		t.Fatalf("expected no claims for non-bearer scheme")
	}
}
