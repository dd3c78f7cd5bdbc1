package accounts_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprep/prepflow/pkg/api/config"
	"github.com/openprep/prepflow/pkg/api/schemas"
	"github.com/openprep/prepflow/pkg/api/services/accounts"
	"github.com/openprep/prepflow/pkg/db/models"
	"github.com/openprep/prepflow/pkg/kv"
)

type memUsers struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{rows: make(map[uuid.UUID]*models.User)}
}

func (m *memUsers) Insert(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.rows[u.ID] = &cp
	return nil
}

func (m *memUsers) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) Close() error { return nil }

func newService(t *testing.T) (*accounts.AuthService, *memUsers) {
	t.Helper()
	cfg := &config.EnvConfig{
		AuthSecret:      "0123456789abcdef0123456789abcdef",
		AccessTokenTTL:  3600,
		RefreshTokenTTL: 86400,
	}
	users := newMemUsers()
	return accounts.NewAuthService(cfg, users, newMemKV(), nil), users
}

func registerReq() schemas.RegisterRequest {
	return schemas.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct horse",
	}
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, users := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerReq())
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.IsActive)

	stored, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, "correct horse", stored.PasswordHash)
	assert.NotEmpty(t, stored.PasswordHash)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerReq())
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerReq())
	require.ErrorIs(t, err, accounts.ErrUsernameTaken)

	req := registerReq()
	req.Username = "alice2"
	_, err = svc.Register(ctx, req)
	require.ErrorIs(t, err, accounts.ErrEmailTaken)
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, registerReq())
	require.NoError(t, err)

	access, refresh, user, err := svc.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.NotEmpty(t, refresh)

	principal, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, created.ID.String(), principal.ID)
	assert.Equal(t, "alice", principal.Username)
	assert.Equal(t, "alice@example.com", principal.Email)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerReq())
	require.NoError(t, err)

	_, _, _, err = svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	// Unknown user yields the same error as a wrong password.
	_, _, _, err = svc.Login(ctx, "nobody", "whatever")
	require.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerReq())
	require.NoError(t, err)
	access, _, _, err := svc.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)

	_, err = svc.ValidateToken(access + "x")
	require.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	require.Error(t, err)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerReq())
	require.NoError(t, err)
	_, refresh, _, err := svc.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)

	access2, refresh2, err := svc.RefreshTokens(ctx, refresh)
	require.NoError(t, err)
	assert.NotEqual(t, refresh, refresh2)

	_, err = svc.ValidateToken(access2)
	require.NoError(t, err)

	// The old refresh token is single-use.
	_, _, err = svc.RefreshTokens(ctx, refresh)
	require.ErrorIs(t, err, accounts.ErrInvalidRefreshToken)
}

func TestRefreshRejectsUnknownToken(t *testing.T) {
	svc, _ := newService(t)

	_, _, err := svc.RefreshTokens(context.Background(), "made-up")
	require.ErrorIs(t, err, accounts.ErrInvalidRefreshToken)
}
