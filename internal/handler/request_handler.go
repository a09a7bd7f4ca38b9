package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/foi-request-api/internal/dto"
	"github.com/noah-isme/foi-request-api/internal/middleware"
	"github.com/noah-isme/foi-request-api/internal/models"
	"github.com/noah-isme/foi-request-api/internal/service"
	"github.com/noah-isme/foi-request-api/pkg/response"
)

type requestService interface {
	Create(ctx context.Context, session models.Session, req dto.CreateRequestRequest) (*models.Request, error)
	List(ctx context.Context, session models.Session, filter models.RequestFilter) ([]models.Request, *models.Pagination, error)
	Get(ctx context.Context, session models.Session, id string) (*models.Request, error)
	UpdateStatus(ctx context.Context, session models.Session, id string, status models.RequestStatus) (*models.Request, error)
	BulkUpdateStatus(ctx context.Context, session models.Session, req dto.BulkUpdateStatusRequest) ([]models.Request, error)
	UpdateDetails(ctx context.Context, session models.Session, id string, req dto.UpdateRequestDetailsRequest) (*models.Request, error)
	History(ctx context.Context, session models.Session, id string) ([]models.RequestStatusChange, error)
	Attachments(ctx context.Context, session models.Session, id string) ([]models.Attachment, error)
	Attachment(ctx context.Context, session models.Session, id, attachmentID string) (*models.Attachment, error)
}

type requestExporter interface {
	Export(ctx context.Context, session models.Session, filter models.RequestFilter, format service.ExportFormat) (*service.ExportFile, error)
}

// RequestHandler exposes the request lifecycle over HTTP.
type RequestHandler struct {
	service  requestService
	exporter requestExporter
}

// NewRequestHandler constructs a RequestHandler.
func NewRequestHandler(svc requestService, exporter requestExporter) *RequestHandler {
	return &RequestHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List requests
// @Description Requestors see their own requests; administrators and reviewers see all.
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param type query string false "FOI, Audit or Adhoc"
// @Param status query string false "Pending, In Progress, Completed or Unable to complete"
// @Param search query string false "Matches title, type or case reference"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param sort_by query string false "Sort column"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	filter, err := requestFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	start := time.Now()
	items, pagination, err := h.service.List(c.Request.Context(), session, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewRequestResponses(items), pagination, middleware.ResponseMeta(c, start))
}

// Export godoc
// @Summary Export requests
// @Description Download the filtered request list as CSV or PDF.
// @Tags Requests
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Param type query string false "Request type filter"
// @Param status query string false "Status filter"
// @Param search query string false "Search term"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /requests/export [get]
func (h *RequestHandler) Export(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filter, err := requestFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.exporter.Export(c.Request.Context(), session, filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// Get godoc
// @Summary Get request
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	record, err := h.service.Get(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewRequestResponse(record))
}

// History godoc
// @Summary Request status history
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/history [get]
func (h *RequestHandler) History(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	changes, err := h.service.History(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if changes == nil {
		changes = []models.RequestStatusChange{}
	}
	response.OK(c, changes)
}

// Attachments godoc
// @Summary List request attachments
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/attachments [get]
func (h *RequestHandler) Attachments(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.Attachments(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAttachmentResponses(items))
}

// DownloadAttachment godoc
// @Summary Download a request attachment
// @Tags Requests
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param attachmentId path string true "Attachment ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/attachments/{attachmentId} [get]
func (h *RequestHandler) DownloadAttachment(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	att, err := h.service.Attachment(c.Request.Context(), session, c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, att.Filename, att.ContentType, att.Data)
}

// Create godoc
// @Summary Submit request
// @Description FOI requests get derived deadlines and an FOI-NNNN reference; Audit requests get a YYNNN reference.
// @Description Send multipart/form-data to upload attachments; every file part is stored.
// @Tags Requests
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateRequestRequest
	if !bindCreateRequest(c, &req) {
		return
	}
	record, err := h.service.Create(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewRequestResponse(record))
}

// UpdateStatus godoc
// @Summary Update request status
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body dto.UpdateStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id} [patch]
func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	record, err := h.service.UpdateStatus(c.Request.Context(), session, c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewRequestResponse(record))
}

// BulkUpdateStatus godoc
// @Summary Update status of many requests
// @Description All ids change together; if any id is unknown nothing changes.
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BulkUpdateStatusRequest true "Ids and status"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/bulk [patch]
func (h *RequestHandler) BulkUpdateStatus(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.BulkUpdateStatusRequest
	if !bindJSON(c, &req, "invalid bulk status payload") {
		return
	}
	items, err := h.service.BulkUpdateStatus(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewRequestResponses(items), nil, map[string]interface{}{"updated": len(items)})
}

// UpdateDetails godoc
// @Summary Edit request details
// @Description Edit the audit period of an Audit request or the parameters of an Adhoc request.
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body dto.UpdateRequestDetailsRequest true "Details"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/details [patch]
func (h *RequestHandler) UpdateDetails(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateRequestDetailsRequest
	if !bindJSON(c, &req, "invalid details payload") {
		return
	}
	record, err := h.service.UpdateDetails(c.Request.Context(), session, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewRequestResponse(record))
}
