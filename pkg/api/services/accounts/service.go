// Package accounts implements password-based account management and the
// JWT/refresh-token machinery behind the auth endpoints.
package accounts

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/openprep/prepflow/pkg/api/config"
	"github.com/openprep/prepflow/pkg/api/schemas"
	"github.com/openprep/prepflow/pkg/auth"
	"github.com/openprep/prepflow/pkg/db/models"
	"github.com/openprep/prepflow/pkg/kv"
	"github.com/openprep/prepflow/pkg/plog"
)

const (
	// TokenAudience is the expected audience claim for access tokens.
	TokenAudience = "prepflow"

	// TokenIssuer is the issuer claim stamped on every access token.
	TokenIssuer = "prepflow"

	kvPrefixRefresh = "auth:refresh:"
)

var (
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrUsernameTaken       = errors.New("username already registered")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUserInactive        = errors.New("user is inactive")
)

// UserStore is the slice of user persistence the service needs.
type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthService mints and validates the JWTs used by the system and owns the
// refresh token lifecycle. Refresh tokens are stored hashed in KV and
// rotated on every use.
type AuthService struct {
	cfg        *config.EnvConfig
	users      UserStore
	kv         kv.Store
	jwtSecret  []byte
	refreshTTL time.Duration
	logger     *plog.Logger
}

func NewAuthService(cfg *config.EnvConfig, users UserStore, kvStore kv.Store, logger *plog.Logger) *AuthService {
	if logger == nil {
		logger = plog.NewDefault()
	}
	return &AuthService{
		cfg:        cfg,
		users:      users,
		kv:         kvStore,
		jwtSecret:  []byte(cfg.AuthSecret),
		refreshTTL: time.Duration(cfg.RefreshTokenTTL) * time.Second,
		logger:     logger,
	}
}

func (s *AuthService) AccessTokenTTL() int {
	return s.cfg.AccessTokenTTL
}

// Register creates a new account with a bcrypt-hashed password. Username and
// email must both be unused.
func (s *AuthService) Register(ctx context.Context, req schemas.RegisterRequest) (*models.User, error) {
	if existing, err := s.users.GetByUsername(ctx, req.Username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrUsernameTaken
	}
	if existing, err := s.users.GetByEmail(ctx, req.Email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           id,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", "username", user.Username)
	return user, nil
}

// Login verifies the password and returns a fresh token pair. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, string, *models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", "", nil, err
	}
	if user == nil {
		// Burn a comparison so the timing matches the found-user path.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$000000000000000000000uGZLK3Kqg7ValonM1eIRQoxXBJAG3l6e"), []byte(password))
		return "", "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", "", nil, ErrUserInactive
	}

	access, refresh, err := s.issueTokensWithRefresh(ctx, user)
	if err != nil {
		return "", "", nil, err
	}
	return access, refresh, user, nil
}

// RefreshTokens exchanges a valid refresh token for a new token pair. The
// presented refresh token is invalidated (token rotation).
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (string, string, error) {
	userID, err := s.verifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}

	if err := s.kv.Delete(ctx, kvPrefixRefresh+hashToken(refreshToken)); err != nil {
		s.logger.Warn("failed to delete old refresh token", "error", err)
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return "", "", ErrInvalidRefreshToken
	}
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch user: %w", err)
	}
	if user == nil || !user.IsActive {
		return "", "", ErrInvalidRefreshToken
	}

	return s.issueTokensWithRefresh(ctx, user)
}

// IssueToken mints an application JWT for a user.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	uc := &auth.UserClaims{
		ID:       user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		Iss:      TokenIssuer,
		Aud:      TokenAudience,
		Iat:      now.Unix(),
		Exp:      now.Add(time.Duration(s.cfg.AccessTokenTTL) * time.Second).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.ToClaims(uc))
	return token.SignedString(s.jwtSecret)
}

// ValidateToken verifies an application JWT and returns a minimal user view.
// It enforces HMAC signing, validates the audience claim, and errors on
// tampering or expiry.
func (s *AuthService) ValidateToken(tokenString string) (*schemas.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	uc, err := auth.FromMapClaims(claims)
	if err != nil {
		return nil, err
	}
	if uc.Aud != TokenAudience {
		return nil, fmt.Errorf("invalid audience: expected %q, got %q", TokenAudience, uc.Aud)
	}

	return &schemas.User{
		ID:       uc.ID,
		Username: uc.Username,
		Email:    uc.Email,
	}, nil
}

func (s *AuthService) issueTokensWithRefresh(ctx context.Context, user *models.User) (string, string, error) {
	access, err := s.IssueToken(user)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.createRefreshToken(ctx, user.ID.String())
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *AuthService) createRefreshToken(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)

	// The hash is the KV key so a leaked store dump cannot be replayed.
	key := kvPrefixRefresh + hashToken(raw)
	if err := s.kv.Set(ctx, key, []byte(userID), s.refreshTTL); err != nil {
		return "", err
	}
	return raw, nil
}

// verifyRefreshToken validates a refresh token and returns the associated
// user ID. Returns ErrInvalidRefreshToken when the token is unknown or
// expired.
func (s *AuthService) verifyRefreshToken(ctx context.Context, token string) (string, error) {
	data, err := s.kv.Get(ctx, kvPrefixRefresh+hashToken(token))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", err
	}
	return string(data), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
