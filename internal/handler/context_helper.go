package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/foi-request-api/internal/middleware"
	"github.com/noah-isme/foi-request-api/internal/models"
	appErrors "github.com/noah-isme/foi-request-api/pkg/errors"
	"github.com/noah-isme/foi-request-api/pkg/response"
)

// sessionFromContext returns the caller session, writing 401 when there is none.
func sessionFromContext(c *gin.Context) (models.Session, bool) {
	session := middleware.Session(c)
	if !session.Authenticated() {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Session{}, false
	}
	return session, true
}

func requestMetaFromContext(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be an integer")
	}
	return v, nil
}

// requestFilterFromQuery reads the shared list and export query parameters.
func requestFilterFromQuery(c *gin.Context) (models.RequestFilter, error) {
	var filter models.RequestFilter
	var err error
	if filter.Page, err = queryInt(c, "page", 1); err != nil {
		return filter, err
	}
	if filter.PageSize, err = queryInt(c, "page_size", 20); err != nil {
		return filter, err
	}
	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		t := models.RequestType(raw)
		filter.Type = &t
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		s := models.RequestStatus(raw)
		filter.Status = &s
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")
	return filter, nil
}
