package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/httpclient"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/push"
)

const (
	sendPath = "/v1/push"

	// goneCode es el código que el relay pone en el body cuando el servicio
	// push rechazó la suscripción (404/410 aguas arriba).
	goneCode = "endpoint_gone"
)

// Dispatcher entrega web push a través de un relay HTTP que firma con VAPID.
type Dispatcher struct {
	client *httpclient.Client
}

func New(client *httpclient.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

type sendRequest struct {
	Subscription subscription `json:"subscription"`
	Notification notification `json:"notification"`
}

type subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     keys   `json:"keys"`
}

type keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Send devuelve push.ErrEndpointGone solo ante 410, o ante 404 con
// {"error":"endpoint_gone"}. Un 404 sin ese código es una ruta mal
// configurada del relay y se devuelve como error transitorio.
func (d *Dispatcher) Send(ctx context.Context, endpoint push.Endpoint, msg push.Message) error {
	req := sendRequest{
		Subscription: subscription{
			Endpoint: endpoint.URL,
			Keys:     keys{P256dh: endpoint.P256dh, Auth: endpoint.Auth},
		},
		Notification: notification{
			Title: msg.Title,
			Body:  msg.Body,
			URL:   msg.URL,
		},
	}

	err := d.client.DoJSON(ctx, http.MethodPost, sendPath, nil, req, nil)
	if err == nil {
		return nil
	}

	if endpointGone(err) {
		return fmt.Errorf("%w: %s", push.ErrEndpointGone, endpoint.ID)
	}
	return fmt.Errorf("relay send %s: %w", endpoint.ID, err)
}

func endpointGone(err error) bool {
	var he *httpclient.HTTPError
	if !errors.As(err, &he) {
		return false
	}
	switch he.StatusCode {
	case http.StatusGone:
		return true
	case http.StatusNotFound:
		var body errorBody
		return json.Unmarshal([]byte(he.Body), &body) == nil && body.Error == goneCode
	}
	return false
}
