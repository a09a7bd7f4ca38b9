package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foi-request-api/internal/repository"
	appErrors "github.com/noah-isme/foi-request-api/pkg/errors"
)

type failingCache struct {
	err error
}

func (f failingCache) Get(context.Context, string, interface{}) error { return f.err }

func (f failingCache) Set(context.Context, string, interface{}, time.Duration) error { return f.err }

func (f failingCache) DeleteByPattern(context.Context, string) error { return f.err }

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemoryCache(), metrics, 0, nil, true)
	ctx := context.Background()

	var out map[string]int
	hit, err := svc.Get(ctx, "dashboard:all", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "dashboard:all", map[string]int{"total": 3}, 0))
	hit, err = svc.Get(ctx, "dashboard:all", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, out["total"])

	snap := metrics.Snapshot()
	assert.EqualValues(t, 1, snap.CacheHits)
	assert.EqualValues(t, 1, snap.CacheMisses)
	assert.Equal(t, 0.5, snap.CacheHitRatio)

	svc.Invalidate(ctx, dashboardCachePattern)
	hit, _ = svc.Get(ctx, "dashboard:all", &out)
	assert.False(t, hit)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	hit, err := nilSvc.Get(context.Background(), "k", &struct{}{})
	assert.False(t, hit)
	assert.NoError(t, err)

	svc := NewCacheService(failingCache{err: errors.New("boom")}, nil, time.Minute, nil, false)
	assert.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	svc.Invalidate(context.Background(), "k*")
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	svc := NewCacheService(failingCache{err: errors.New("connection reset")}, nil, time.Minute, nil, true)
	hit, err := svc.Get(context.Background(), "k", &struct{}{})
	assert.False(t, hit)
	assert.Error(t, err)
	assert.Error(t, svc.Set(context.Background(), "k", 1, 0))
	svc.Invalidate(context.Background(), "k*")
}

func TestCacheServiceTreatsWrappedMissAsMiss(t *testing.T) {
	svc := NewCacheService(failingCache{err: fmt.Errorf("redis get k: %w", repository.ErrCacheMiss)}, nil, time.Minute, nil, true)
	hit, err := svc.Get(context.Background(), "k", &struct{}{})
	assert.False(t, hit)
	assert.NoError(t, err)

	// A cache miss is not part of the HTTP error taxonomy.
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(repository.ErrCacheMiss).Code)
}
