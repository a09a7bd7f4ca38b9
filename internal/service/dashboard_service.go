package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/foi-request-api/internal/dto"
	"github.com/noah-isme/foi-request-api/internal/models"
	appErrors "github.com/noah-isme/foi-request-api/pkg/errors"
)

const (
	dashboardCachePrefix  = "dashboard:"
	dashboardCachePattern = dashboardCachePrefix + "*"
)

type requestCounter interface {
	CountByTypeAndStatus(ctx context.Context, ownerID *string) ([]models.RequestStatusCount, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService aggregates request counts for the dashboard charts.
type DashboardService struct {
	repo   requestCounter
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(repo requestCounter, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:   repo,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		cfg:    cfg,
	}
}

// Summary returns counts per request type and status scoped like the request
// listing, and reports whether the payload came from cache.
func (s *DashboardService) Summary(ctx context.Context, session models.Session) (*dto.RequestDashboardResponse, bool, error) {
	if !session.Authenticated() {
		return nil, false, appErrors.ErrUnauthorized
	}

	scope := dto.DashboardScopeAll
	key := dashboardCachePrefix + "all"
	var owner *string
	if !session.Role.IsStaff() {
		scope = dto.DashboardScopeOwn
		key = dashboardCachePrefix + "own:" + session.UserID
		id := session.UserID
		owner = &id
	}

	var cached dto.RequestDashboardResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	counts, err := s.repo.CountByTypeAndStatus(ctx, owner)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate requests")
	}

	summary := BuildDashboard(scope, counts)
	summary.GeneratedAt = s.now()

	if err := s.cache.Set(ctx, key, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Debug("dashboard served uncached", zap.String("key", key))
	}
	return summary, false, nil
}

// BuildDashboard folds type × status counts into the dashboard payload. Every
// request type is present even when it has no requests.
func BuildDashboard(scope dto.DashboardScope, counts []models.RequestStatusCount) *dto.RequestDashboardResponse {
	summary := &dto.RequestDashboardResponse{
		Scope:  scope,
		ByType: make(map[models.RequestType]dto.StatusBreakdown, len(models.RequestTypes)),
	}
	for _, t := range models.RequestTypes {
		summary.ByType[t] = dto.StatusBreakdown{}
	}
	for _, c := range counts {
		breakdown := summary.ByType[c.RequestType]
		breakdown.Add(c.Status, c.Count)
		summary.ByType[c.RequestType] = breakdown
		summary.Overall.Add(c.Status, c.Count)
	}
	summary.CompletionPercentage = CompletionPercentage(summary.Overall.Completed, summary.Overall.Total)
	return summary
}

// CompletionPercentage returns completed/total×100 rounded to one decimal, or 0 when total is 0.
func CompletionPercentage(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*1000) / 10
}
