package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foi-request-api/internal/models"
	appErrors "github.com/noah-isme/foi-request-api/pkg/errors"
	"github.com/noah-isme/foi-request-api/pkg/response"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" || s.claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func newGuardedRouter(role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	validator := stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: role}}
	r.GET("/staff", JWT(validator), RequireStaff(), func(c *gin.Context) {
		session := Session(c)
		c.JSON(http.StatusOK, gin.H{"user": session.UserID, "role": session.Role})
	})
	return r
}

func decodeError(t *testing.T, body []byte) *appErrors.Error {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	require.NotNil(t, env.Error)
	return env.Error
}

func TestJWTRejectsMissingAndMalformedTokens(t *testing.T) {
	r := newGuardedRouter(models.RoleAdministrator)

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer bad"} {
		req := httptest.NewRequest(http.MethodGet, "/staff", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		assert.Equal(t, appErrors.ErrUnauthorized.Code, decodeError(t, rec.Body.Bytes()).Code)
	}
}

func TestRequireStaffAllowsReviewer(t *testing.T) {
	r := newGuardedRouter(models.RoleReviewer)

	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"u1","role":"reviewer"}`, rec.Body.String())
}

func TestRequireStaffRejectsRequestor(t *testing.T) {
	r := newGuardedRouter(models.RoleRequestor)

	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "bearer good")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, appErrors.ErrForbidden.Code, decodeError(t, rec.Body.Bytes()).Code)
}

func TestRequireRolesWithoutJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", RequireRoles(models.RoleAdministrator), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
