package auth

import "context"

// Claims identifica al cuidador autenticado.
type Claims struct {
	UserID      string
	Email       string
	DisplayName string
}

// AuthVerifier valida un bearer token y devuelve sus claims.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
