package odin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/auth"
)

var ErrTokenEmpty = errors.New("token is empty")

const (
	defaultCacheTTL = time.Minute
	maxCachedTokens = 1024
)

type cachedClaims struct {
	claims  auth.Claims
	expires time.Time
}

// Verifier implementa auth.AuthVerifier sobre Odin y recuerda los tokens
// válidos durante ttl. Los rechazos no se guardan.
type Verifier struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedClaims
}

// NewVerifier: ttl <= 0 usa un minuto.
func NewVerifier(client *Client, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Verifier{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]cachedClaims),
	}
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || v.client == nil {
		return auth.Claims{}, ErrOdinNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	if c, ok := v.lookup(token); ok {
		return c, nil
	}

	claims, err := v.client.VerifyToken(ctx, token)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("odin verify failed: %w", err)
	}
	v.store(token, claims)
	return claims, nil
}

func (v *Verifier) lookup(token string) (auth.Claims, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, ok := v.cache[token]
	if !ok {
		return auth.Claims{}, false
	}
	if !v.now().Before(e.expires) {
		delete(v.cache, token)
		return auth.Claims{}, false
	}
	return e.claims, true
}

func (v *Verifier) store(token string, c auth.Claims) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if len(v.cache) >= maxCachedTokens {
		for k, e := range v.cache {
			if !now.Before(e.expires) {
				delete(v.cache, k)
			}
		}
		// todos vigentes: se vacía entero
		if len(v.cache) >= maxCachedTokens {
			v.cache = make(map[string]cachedClaims)
		}
	}
	v.cache[token] = cachedClaims{claims: c, expires: now.Add(v.ttl)}
}
