package odin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestVerifier(t *testing.T, h http.HandlerFunc) *Verifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, "k")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return NewVerifier(c, time.Minute)
}

func TestVerify_ReturnsClaims(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != verifyPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer header")
		}
		if r.Header.Get("X-Api-Key") != "k" {
			t.Errorf("missing api key")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"user_id": " u-1 ", "email": "a@b.no"})
	})

	c, err := v.Verify(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if c.UserID != "u-1" || c.Email != "a@b.no" {
		t.Fatalf("unexpected claims %+v", c)
	}
}

func TestVerify_Unauthorized(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := v.Verify(context.Background(), "tok")
	if !errors.Is(err, ErrOdinUnauthorized) {
		t.Fatalf("expected ErrOdinUnauthorized, got %v", err)
	}
}

func TestVerify_Upstream(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := v.Verify(context.Background(), "tok")
	if !errors.Is(err, ErrOdinUpstream) {
		t.Fatalf("expected ErrOdinUpstream, got %v", err)
	}
}

func TestVerify_NotConfigured(t *testing.T) {
	c, err := NewClient("", "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = NewVerifier(c, 0).Verify(context.Background(), "tok")
	if !errors.Is(err, ErrOdinNotConfigured) {
		t.Fatalf("expected ErrOdinNotConfigured, got %v", err)
	}
}

func TestVerify_CachesValidTokens(t *testing.T) {
	var calls atomic.Int32
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"user_id": "u-1", "name": "Kari"})
	})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		c, err := v.Verify(context.Background(), "tok")
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if c.DisplayName != "Kari" {
			t.Fatalf("unexpected claims %+v", c)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls.Load())
	}

	now = now.Add(2 * time.Minute)
	if _, err := v.Verify(context.Background(), "tok"); err != nil {
		t.Fatalf("Verify after expiry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected refresh after ttl, got %d calls", calls.Load())
	}
}

func TestVerify_DoesNotCacheRejections(t *testing.T) {
	var calls atomic.Int32
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	for i := 0; i < 2; i++ {
		if _, err := v.Verify(context.Background(), "bad"); !errors.Is(err, ErrOdinUnauthorized) {
			t.Fatalf("expected ErrOdinUnauthorized, got %v", err)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls.Load())
	}
}
