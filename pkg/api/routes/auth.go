package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/openprep/prepflow/pkg/api/schemas"
	"github.com/openprep/prepflow/pkg/api/services/accounts"
	"github.com/openprep/prepflow/pkg/api/services/iam"
)

// RegisterInput defines the input for account registration
type RegisterInput struct {
	Body schemas.RegisterRequest
}

// RegisterOutput is the response for account registration
type RegisterOutput struct {
	Status int
	Body   struct {
		User schemas.User `json:"user"`
	}
}

// LoginInput defines the input for password login
type LoginInput struct {
	Body schemas.LoginRequest
}

// LoginOutput is the response for login and refresh
type LoginOutput struct {
	Body schemas.TokenResponse
}

// RefreshInput defines the input for refreshing tokens
type RefreshInput struct {
	Body schemas.RefreshTokenRequest
}

// RegisterAuth registers account and token routes
func RegisterAuth(api huma.API, auth *accounts.AuthService, iamSvc *iam.IAMService) {
	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/api/v1/auth/register",
		Summary:       "Register a new account",
		Tags:          []string{TagAuth.String()},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *RegisterInput) (*RegisterOutput, error) {
		user, err := auth.Register(ctx, input.Body)
		if err != nil {
			if errors.Is(err, accounts.ErrUsernameTaken) || errors.Is(err, accounts.ErrEmailTaken) {
				return nil, huma.Error409Conflict(err.Error())
			}
			return nil, mapError(err)
		}

		resp := &RegisterOutput{Status: http.StatusCreated}
		resp.Body.User = schemas.User{
			ID:       user.ID.String(),
			Username: user.Username,
			Email:    user.Email,
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "Log in with username and password",
		Tags:        []string{TagAuth.String()},
	}, func(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
		access, refresh, _, err := auth.Login(ctx, input.Body.Username, input.Body.Password)
		if err != nil {
			if errors.Is(err, accounts.ErrInvalidCredentials) || errors.Is(err, accounts.ErrUserInactive) {
				return nil, huma.Error401Unauthorized("Invalid username or password")
			}
			return nil, mapError(err)
		}

		resp := &LoginOutput{}
		resp.Body = schemas.TokenResponse{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    "bearer",
			ExpiresIn:    auth.AccessTokenTTL(),
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/refresh",
		Summary:     "Exchange a refresh token for a new token pair",
		Tags:        []string{TagAuth.String()},
	}, func(ctx context.Context, input *RefreshInput) (*LoginOutput, error) {
		access, refresh, err := auth.RefreshTokens(ctx, input.Body.RefreshToken)
		if err != nil {
			if errors.Is(err, accounts.ErrInvalidRefreshToken) {
				return nil, huma.Error401Unauthorized("Invalid refresh token")
			}
			return nil, mapError(err)
		}

		resp := &LoginOutput{}
		resp.Body = schemas.TokenResponse{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    "bearer",
			ExpiresIn:    auth.AccessTokenTTL(),
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/me",
		Summary:     "Get current user",
		Description: "Retrieves information about the currently authenticated user",
		Tags:        []string{TagIam.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *struct{}) (*schemas.MeResponse, error) {
		user, err := principal(ctx, iamSvc)
		if err != nil {
			return nil, err
		}
		resp := &schemas.MeResponse{}
		resp.Body.User = *user
		return resp, nil
	})
}
