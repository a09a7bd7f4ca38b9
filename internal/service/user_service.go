package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/foi-request-api/internal/models"
	appErrors "github.com/noah-isme/foi-request-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService handles administrator user management.
type UserService struct {
	repo   userRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, cache *CacheService, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, cache: cache, logger: logger}
}

func requireAdministrator(session models.Session) error {
	if !session.Authenticated() {
		return appErrors.ErrUnauthorized
	}
	if session.Role != models.RoleAdministrator {
		return appErrors.Clone(appErrors.ErrForbidden, "administrator role required")
	}
	return nil
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, session models.Session, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if err := requireAdministrator(session); err != nil {
		return nil, nil, err
	}
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidArgument, "unknown role filter")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, session models.Session, id string) (*models.User, error) {
	if err := requireAdministrator(session); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Delete removes a user together with every request they own.
func (s *UserService) Delete(ctx context.Context, session models.Session, id string, meta models.RequestMeta) error {
	user, err := s.Get(ctx, session, id)
	if err != nil {
		return err
	}
	if user.ID == session.UserID {
		return appErrors.Clone(appErrors.ErrConflict, "administrators cannot delete their own account")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	s.cache.Invalidate(ctx, dashboardCachePattern)

	oldPayload, _ := json.Marshal(map[string]interface{}{"username": user.Username, "role": user.Role})
	actorID := session.UserID
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserDelete,
		Resource:   "users",
		ResourceID: &user.ID,
		OldValues:  oldPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user delete audit log", zap.Error(err))
	}

	s.logger.Info("user deleted", zap.String("user_id", user.ID), zap.String("actor_id", actorID))
	return nil
}
