package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foi-request-api/internal/models"
)

type recordingAudit struct {
	entries []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.entries = append(r.entries, log)
	return nil
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	writer := &recordingAudit{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdministrator})
	})
	r.PATCH("/requests/:id", Audit(writer, nil, models.AuditActionStatusChange, "requests"), func(c *gin.Context) {
		if c.Query("fail") != "" {
			c.Status(http.StatusConflict)
			return
		}
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/requests/req-1?fail=1", nil))
	assert.Empty(t, writer.entries)

	req := httptest.NewRequest(http.MethodPatch, "/requests/req-1", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Len(t, writer.entries, 1)
	entry := writer.entries[0]
	assert.Equal(t, models.AuditActionStatusChange, entry.Action)
	assert.Equal(t, "req-1", *entry.ResourceID)
	assert.Equal(t, "admin-1", *entry.UserID)
	assert.Contains(t, string(entry.NewValues), `"method":"PATCH"`)
	assert.Contains(t, string(entry.NewValues), `"browser":"Chrome"`)
}
