package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/logger"
)

func TestRequestLogger_LevelByStatus(t *testing.T) {
	cases := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusNotFound, zapcore.WarnLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tc := range cases {
		core, logs := observer.New(zapcore.DebugLevel)
		h := AuthContext(nil, nil)(RequestLogger(logger.FromZap(zap.New(core)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})))

		req := httptest.NewRequest(http.MethodGet, "/pets/p1/doses", nil)
		req.Header.Set("X-Debug-User-ID", "u1")
		h.ServeHTTP(httptest.NewRecorder(), req)

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("status %d: expected 1 log entry, got %d", tc.status, len(entries))
		}
		e := entries[0]
		if e.Level != tc.level {
			t.Fatalf("status %d: expected level %s, got %s", tc.status, tc.level, e.Level)
		}
		fields := e.ContextMap()
		if fields["path"] != "/pets/p1/doses" {
			t.Fatalf("unexpected path field %v", fields["path"])
		}
		if fields["user_id"] != "u1" {
			t.Fatalf("expected user_id u1, got %v", fields["user_id"])
		}
	}
}

func TestRequestLogger_ImplicitOK(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := RequestLogger(logger.FromZap(zap.New(core)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Fatalf("expected status 200, got %v (%T)", got, got)
	}
}
