package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foi-request-api/internal/dto"
	"github.com/noah-isme/foi-request-api/internal/middleware"
	"github.com/noah-isme/foi-request-api/internal/models"
)

type fakeDashboardSrv struct {
	resp    *dto.RequestDashboardResponse
	hit     bool
	err     error
	session models.Session
}

func (f *fakeDashboardSrv) Summary(_ context.Context, session models.Session) (*dto.RequestDashboardResponse, bool, error) {
	f.session = session
	return f.resp, f.hit, f.err
}

func TestDashboardHandlerSummaryCacheHit(t *testing.T) {
	srv := &fakeDashboardSrv{
		resp: &dto.RequestDashboardResponse{Scope: dto.DashboardScopeOwn, CompletionPercentage: 33.3},
		hit:  true,
	}
	h := NewDashboardHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/dashboard", "", models.RoleRequestor, "user-1")
	middleware.WithResponseMeta()(c)
	h.Summary(c)

	requireStatus(t, rec, http.StatusOK)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, env.Meta, "processing_time_ms")

	var body dto.RequestDashboardResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, dto.DashboardScopeOwn, body.Scope)
	assert.Equal(t, 33.3, body.CompletionPercentage)
	assert.Equal(t, "user-1", srv.session.UserID)
}

func TestDashboardHandlerSummaryError(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboardSrv{err: errors.New("db down")})
	c, rec := newTestContext(http.MethodGet, "/dashboard", "", models.RoleAdministrator, "adm-1")
	h.Summary(c)
	requireStatus(t, rec, http.StatusInternalServerError)
}

func TestDashboardHandlerRequiresSession(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboardSrv{})
	c, rec := newTestContext(http.MethodGet, "/dashboard", "", "", "")
	h.Summary(c)
	requireStatus(t, rec, http.StatusUnauthorized)
}
