package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/httpclient"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/push"
)

func newTestDispatcher(t *testing.T, h http.HandlerFunc) *Dispatcher {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := httpclient.New(httpclient.Options{BaseURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)
	return New(c)
}

var target = push.Endpoint{
	ID:     "ep-1",
	UserID: "user-1",
	URL:    "https://push.example.com/abc",
	P256dh: "p256",
	Auth:   "auth",
}

func TestSend_PostsSubscriptionAndNotification(t *testing.T) {
	var got sendRequest
	d := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, sendPath, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	})

	err := d.Send(context.Background(), target, push.Message{Title: "Luna: Apoquel ikke gitt", Body: "1 dose(r)", URL: "/pets/pet-1"})
	require.NoError(t, err)

	assert.Equal(t, target.URL, got.Subscription.Endpoint)
	assert.Equal(t, "p256", got.Subscription.Keys.P256dh)
	assert.Equal(t, "auth", got.Subscription.Keys.Auth)
	assert.Equal(t, "Luna: Apoquel ikke gitt", got.Notification.Title)
	assert.Equal(t, "/pets/pet-1", got.Notification.URL)
}

func TestSend_GoneEndpoints(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"gone", http.StatusGone, ""},
		{"not found with relay code", http.StatusNotFound, `{"error":"endpoint_gone"}`},
	}
	for _, tc := range cases {
		d := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		})
		err := d.Send(context.Background(), target, push.Message{Title: "x"})
		assert.True(t, errors.Is(err, push.ErrEndpointGone), tc.name)
	}
}

func TestSend_MisroutedRelayIsNotGone(t *testing.T) {
	// el relay solo sirve /api/v1/push; /v1/push cae en el 404 del mux
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/push", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	d := newTestDispatcher(t, mux.ServeHTTP)

	err := d.Send(context.Background(), target, push.Message{Title: "x"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, push.ErrEndpointGone))
	assert.Equal(t, http.StatusNotFound, httpclient.StatusCode(err))
}

func TestSend_TransientErrorIsNotGone(t *testing.T) {
	d := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := d.Send(context.Background(), target, push.Message{Title: "x"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, push.ErrEndpointGone))
	assert.Equal(t, http.StatusBadGateway, httpclient.StatusCode(err))
}
