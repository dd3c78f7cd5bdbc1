// Package iam attaches the authenticated principal to request contexts and
// exposes it to route handlers.
package iam

import (
	"context"
	"errors"
	"net/http"

	"github.com/openprep/prepflow/pkg/api/schemas"
	"github.com/openprep/prepflow/pkg/api/services/accounts"
)

type contextKey string

const principalKey contextKey = "prepflow.principal"

type IAMService struct {
	auth *accounts.AuthService
}

func NewIAMService(auth *accounts.AuthService) *IAMService {
	return &IAMService{auth: auth}
}

// Get returns the authenticated user for the request, or nil when the
// request carried no valid token.
func (s *IAMService) Get(ctx context.Context) (*schemas.User, error) {
	user, _ := ctx.Value(principalKey).(*schemas.User)
	return user, nil
}

// ErrUnauthenticated is returned by Authenticate for missing or bad tokens.
var ErrUnauthenticated = errors.New("authentication required")

// Authenticate validates the bearer token on a plain HTTP request, for the
// handlers that bypass the typed API layer (uploads, downloads, websockets).
func (s *IAMService) Authenticate(r *http.Request) (*schemas.User, error) {
	token := BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		// Websocket clients cannot set headers from browsers, so the
		// token may arrive as a query parameter instead.
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.auth.ValidateToken(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}
