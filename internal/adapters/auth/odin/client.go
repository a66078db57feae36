package odin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/httpclient"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/auth"
)

var (
	ErrOdinNotConfigured = errors.New("odin client not configured")
	ErrOdinUnauthorized  = errors.New("odin unauthorized")
	ErrOdinUpstream      = errors.New("odin upstream error")
)

const verifyPath = "/v1/tokens/verify"

// Client habla con Odin (IAM) sobre el httpclient compartido.
type Client struct {
	http       *httpclient.Client
	configured bool
}

// NewClient: sin BaseURL o sin APIKey el cliente queda no configurado.
func NewClient(baseURL, apiKey string) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	apiKey = strings.TrimSpace(apiKey)

	hc, err := httpclient.New(httpclient.Options{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		UserAgent: "hunde-medisin-api",
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: hc, configured: baseURL != "" && apiKey != ""}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.configured
}

type verifyResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// VerifyToken llama a Odin para verificar un token y traer claims.
func (c *Client) VerifyToken(ctx context.Context, token string) (auth.Claims, error) {
	if !c.IsConfigured() {
		return auth.Claims{}, ErrOdinNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrOdinUnauthorized
	}

	var out verifyResponse
	err := c.http.DoJSON(ctx, http.MethodPost, verifyPath,
		map[string]string{"Authorization": "Bearer " + token},
		map[string]string{"token": token},
		&out,
	)
	if err != nil {
		switch httpclient.StatusCode(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return auth.Claims{}, ErrOdinUnauthorized
		}
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrOdinUpstream, err)
	}

	out.UserID = strings.TrimSpace(out.UserID)
	if out.UserID == "" {
		return auth.Claims{}, errors.New("odin response missing user_id")
	}

	return auth.Claims{
		UserID:      out.UserID,
		Email:       strings.TrimSpace(out.Email),
		DisplayName: strings.TrimSpace(out.Name),
	}, nil
}
