package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/obra-api/internal/models"
	"github.com/noah-isme/obra-api/internal/repository"
	"github.com/noah-isme/obra-api/pkg/device"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
)

type userRepoStub struct {
	users        map[int64]*models.User
	tokenLookups int
}

func (u *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range u.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (u *userRepoStub) FindByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := u.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (u *userRepoStub) FindByToken(ctx context.Context, token string) (*models.User, error) {
	u.tokenLookups++
	for _, user := range u.users {
		if user.Token != nil && *user.Token == token && !user.Deleted {
			clone := *user
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (u *userRepoStub) SetToken(ctx context.Context, id int64, token string) error {
	u.users[id].Token = &token
	return nil
}

func (u *userRepoStub) ClearToken(ctx context.Context, id int64) (bool, error) {
	user, ok := u.users[id]
	if !ok || user.Token == nil {
		return false, nil
	}
	user.Token = nil
	return true, nil
}

func (u *userRepoStub) Create(ctx context.Context, user *models.User) error {
	for _, existing := range u.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = int64(len(u.users) + 1)
	u.users[user.ID] = user
	return nil
}

func (u *userRepoStub) UpdateProfile(ctx context.Context, id int64, name, surname string) error {
	u.users[id].Name, u.users[id].Surname = name, surname
	return nil
}

func (u *userRepoStub) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	u.users[id].PasswordHash = passwordHash
	return nil
}

type memoryCache struct {
	items map[string][]byte
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func newSessionFixture(t *testing.T) (*SessionService, *userRepoStub, *memoryCache, *auditRepoStub) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secreto1"), bcrypt.MinCost)
	require.NoError(t, err)
	token := "abc123"
	users := &userRepoStub{users: map[int64]*models.User{
		1: {ID: 1, Name: "Ana", Surname: "Paz", Email: "ana@obra.pe", PasswordHash: string(hash), Role: models.RoleEngineer, Status: models.UserStatusActive, Token: &token},
		2: {ID: 2, Name: "Luis", Email: "luis@obra.pe", PasswordHash: string(hash), Role: models.RoleClient, Status: models.UserStatusInactive},
	}}
	cache := &memoryCache{items: map[string][]byte{}}
	audit := &auditRepoStub{}
	svc := NewSessionService(users, NewCacheService(cache, nil, time.Minute, nil, true), NewAuditService(audit, nil, nil), nil, nil, SessionConfig{CacheTTL: time.Minute})
	return svc, users, cache, audit
}

func TestResolveTokenCachesIdentity(t *testing.T) {
	svc, users, cache, _ := newSessionFixture(t)

	identity, err := svc.ResolveToken(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), identity.UserID)
	assert.Equal(t, models.RoleEngineer, identity.Role)
	assert.Contains(t, cache.items, "session:abc123")

	_, err = svc.ResolveToken(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, 1, users.tokenLookups)
}

func TestResolveTokenErrors(t *testing.T) {
	svc, _, _, _ := newSessionFixture(t)

	_, err := svc.ResolveToken(context.Background(), "  ")
	assert.ErrorIs(t, err, appErrors.ErrMissingToken)

	_, err = svc.ResolveToken(context.Background(), "unknown")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
	assert.Equal(t, "Token inválido", err.Error())
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, users, cache, audit := newSessionFixture(t)
	identity := &models.Identity{UserID: 1}
	_, err := svc.ResolveToken(context.Background(), "abc123")
	require.NoError(t, err)

	already, effects, err := svc.Logout(context.Background(), identity, "abc123", device.Info{})
	require.NoError(t, err)
	assert.False(t, already)
	assert.False(t, effects.Degraded())
	assert.Nil(t, users.users[1].Token)
	assert.NotContains(t, cache.items, "session:abc123")
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionLogout, audit.logs[0].Action)

	already, _, err = svc.Logout(context.Background(), identity, "abc123", device.Info{})
	require.NoError(t, err)
	assert.True(t, already)
	assert.Len(t, audit.logs, 1)

	_, err = svc.ResolveToken(context.Background(), "abc123")
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
}

func TestLoginReplacesToken(t *testing.T) {
	svc, users, cache, audit := newSessionFixture(t)
	cache.items["session:abc123"] = []byte(`{"id":1}`)
	svc.newToken = func() (string, error) { return "fresh", nil }

	resp, effects, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@obra.pe", Password: "secreto1"}, device.Info{IP: "1.1.1.1"})
	require.NoError(t, err)
	assert.Empty(t, effects.Warnings)
	assert.Equal(t, "fresh", resp.Token)
	assert.Equal(t, "fresh", *users.users[1].Token)
	assert.NotContains(t, cache.items, "session:abc123")
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "1.1.1.1", audit.logs[0].IPAddress)
}

func TestLoginFailures(t *testing.T) {
	svc, _, _, _ := newSessionFixture(t)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, models.LoginRequest{Email: "ana@obra.pe"}, device.Info{})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))

	_, _, err = svc.Login(ctx, models.LoginRequest{Email: "ana@obra.pe", Password: "wrong"}, device.Info{})
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))

	_, _, err = svc.Login(ctx, models.LoginRequest{Email: "nadie@obra.pe", Password: "secreto1"}, device.Info{})
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))

	_, _, err = svc.Login(ctx, models.LoginRequest{Email: "luis@obra.pe", Password: "secreto1"}, device.Info{})
	assert.Equal(t, http.StatusForbidden, statusOf(err))
}

func TestRegister(t *testing.T) {
	svc, _, _, _ := newSessionFixture(t)
	ctx := context.Background()

	user, _, err := svc.Register(ctx, models.RegisterRequest{Name: "Eva", Surname: "Rojas", Email: "EVA@obra.pe", Password: "secreto1", Role: "Architect"}, device.Info{})
	require.NoError(t, err)
	assert.Equal(t, "eva@obra.pe", user.Email)
	assert.Equal(t, models.RoleArchitect, user.Role)
	assert.Equal(t, models.UserStatusActive, user.Status)

	_, _, err = svc.Register(ctx, models.RegisterRequest{Name: "Eva", Surname: "Rojas", Email: "eva@obra.pe", Password: "secreto1"}, device.Info{})
	assert.Equal(t, http.StatusConflict, statusOf(err))

	_, _, err = svc.Register(ctx, models.RegisterRequest{Name: "Max", Surname: "Vela", Email: "max@obra.pe", Password: "secreto1", Role: "admin"}, device.Info{})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
}

func TestAuditFailureSurfacesAsWarning(t *testing.T) {
	svc, _, _, audit := newSessionFixture(t)
	audit.err = sql.ErrConnDone

	_, effects, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@obra.pe", Password: "secreto1"}, device.Info{})
	require.NoError(t, err)
	require.True(t, effects.Degraded())
	assert.Contains(t, effects.Warnings[0], "auditoría")
}

func TestChangePasswordChecksCurrent(t *testing.T) {
	svc, _, _, _ := newSessionFixture(t)
	identity := &models.Identity{UserID: 1}

	_, err := svc.ChangePassword(context.Background(), identity, models.ChangePasswordRequest{OldPassword: "otra", NewPassword: "nueva123"}, device.Info{})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	_, err = svc.ChangePassword(context.Background(), identity, models.ChangePasswordRequest{OldPassword: "secreto1", NewPassword: "nueva123"}, device.Info{})
	require.NoError(t, err)
	_, _, err = svc.Login(context.Background(), models.LoginRequest{Email: "ana@obra.pe", Password: "nueva123"}, device.Info{})
	assert.NoError(t, err)
}
