package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/foi-request-api/internal/models"
	appErrors "github.com/noah-isme/foi-request-api/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	lastFilter models.UserFilter
	auditLogs  []*models.AuditLog
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		found := *user
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newUserFixture() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{
		"admin-1": {ID: "admin-1", Username: "admin", Role: models.RoleAdministrator},
		"user-1":  {ID: "user-1", Username: "jdoe", Role: models.RoleRequestor},
	}}
}

func TestUserServiceRequiresAdministrator(t *testing.T) {
	svc := NewUserService(newUserFixture(), nil, zap.NewNop())
	ctx := context.Background()

	_, _, err := svc.List(ctx, models.Session{UserID: "r", Role: models.RoleReviewer}, models.UserFilter{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(ctx, models.Session{}, "user-1")
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestUserServiceListDefaults(t *testing.T) {
	repo := newUserFixture()
	svc := NewUserService(repo, nil, zap.NewNop())

	users, page, err := svc.List(context.Background(), models.Session{UserID: "admin-1", Role: models.RoleAdministrator}, models.UserFilter{PageSize: 1000})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 20, repo.lastFilter.PageSize)
}

func TestUserServiceDelete(t *testing.T) {
	repo := newUserFixture()
	store := newMemoryCache()
	store.entries["dashboard:all"] = []byte(`{}`)
	cache := NewCacheService(store, nil, time.Minute, zap.NewNop(), true)
	svc := NewUserService(repo, cache, zap.NewNop())
	admin := models.Session{UserID: "admin-1", Role: models.RoleAdministrator}
	ctx := context.Background()

	err := svc.Delete(ctx, admin, "admin-1", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	err = svc.Delete(ctx, admin, "missing", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(ctx, admin, "user-1", models.RequestMeta{IP: "10.0.0.1"}))
	assert.NotContains(t, repo.users, "user-1")
	assert.Empty(t, store.entries)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserDelete, repo.auditLogs[0].Action)
	assert.Equal(t, "user-1", *repo.auditLogs[0].ResourceID)
	assert.Equal(t, "admin-1", *repo.auditLogs[0].UserID)
}
