package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foi-request-api/internal/dto"
	"github.com/noah-isme/foi-request-api/internal/models"
	"github.com/noah-isme/foi-request-api/internal/service"
	appErrors "github.com/noah-isme/foi-request-api/pkg/errors"
)

type fakeRequestSrv struct {
	lastSession models.Session
	lastFilter  models.RequestFilter
	lastCreate  dto.CreateRequestRequest
	lastBulk    dto.BulkUpdateStatusRequest
	lastStatus  models.RequestStatus
	record      *models.Request
	items       []models.Request
	history     []models.RequestStatusChange
	attachments []models.Attachment
	err         error
}

func (f *fakeRequestSrv) Create(_ context.Context, session models.Session, req dto.CreateRequestRequest) (*models.Request, error) {
	f.lastSession, f.lastCreate = session, req
	return f.record, f.err
}

func (f *fakeRequestSrv) List(_ context.Context, session models.Session, filter models.RequestFilter) ([]models.Request, *models.Pagination, error) {
	f.lastSession, f.lastFilter = session, filter
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(f.items)}, nil
}

func (f *fakeRequestSrv) Get(_ context.Context, session models.Session, _ string) (*models.Request, error) {
	f.lastSession = session
	return f.record, f.err
}

func (f *fakeRequestSrv) UpdateStatus(_ context.Context, session models.Session, _ string, status models.RequestStatus) (*models.Request, error) {
	f.lastSession, f.lastStatus = session, status
	return f.record, f.err
}

func (f *fakeRequestSrv) BulkUpdateStatus(_ context.Context, session models.Session, req dto.BulkUpdateStatusRequest) ([]models.Request, error) {
	f.lastSession, f.lastBulk = session, req
	return f.items, f.err
}

func (f *fakeRequestSrv) UpdateDetails(_ context.Context, session models.Session, _ string, _ dto.UpdateRequestDetailsRequest) (*models.Request, error) {
	f.lastSession = session
	return f.record, f.err
}

func (f *fakeRequestSrv) History(_ context.Context, session models.Session, _ string) ([]models.RequestStatusChange, error) {
	f.lastSession = session
	return f.history, f.err
}

func (f *fakeRequestSrv) Attachments(_ context.Context, session models.Session, _ string) ([]models.Attachment, error) {
	f.lastSession = session
	return f.attachments, f.err
}

func (f *fakeRequestSrv) Attachment(_ context.Context, session models.Session, _ string, attachmentID string) (*models.Attachment, error) {
	f.lastSession = session
	if f.err != nil {
		return nil, f.err
	}
	for _, att := range f.attachments {
		if att.ID == attachmentID {
			found := att
			return &found, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
}

type fakeExporter struct {
	format service.ExportFormat
	filter models.RequestFilter
}

func (f *fakeExporter) Export(_ context.Context, _ models.Session, filter models.RequestFilter, format service.ExportFormat) (*service.ExportFile, error) {
	f.format, f.filter = format, filter
	return &service.ExportFile{Filename: "requests_20240304_103000.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("Reference\n"), Rows: 0}, nil
}

func foiRecord() *models.Request {
	ref := "FOI-1234"
	submitted := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	response := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	internal := time.Date(2024, time.March, 29, 0, 0, 0, 0, time.UTC)
	return &models.Request{
		ID:               "req-1",
		UserID:           "user-1",
		RequestType:      models.RequestTypeFOI,
		Title:            "Budget papers",
		CaseReference:    &ref,
		SubmissionDate:   submitted,
		ResponseDeadline: &response,
		InternalDeadline: &internal,
		Status:           models.StatusPending,
	}
}

func TestRequestHandlerListParsesFilters(t *testing.T) {
	srv := &fakeRequestSrv{items: []models.Request{*foiRecord()}}
	h := NewRequestHandler(srv, nil)

	c, rec := newTestContext(http.MethodGet, "/requests?type=FOI&status=In+Progress&search=budget&page=2&page_size=5&sort_by=title&sort_order=asc", "", models.RoleRequestor, "user-1")
	h.List(c)

	requireStatus(t, rec, http.StatusOK)
	require.NotNil(t, srv.lastFilter.Type)
	assert.Equal(t, models.RequestTypeFOI, *srv.lastFilter.Type)
	assert.Equal(t, models.StatusInProgress, *srv.lastFilter.Status)
	assert.Equal(t, "budget", srv.lastFilter.Search)
	assert.Equal(t, 2, srv.lastFilter.Page)
	assert.Equal(t, 5, srv.lastFilter.PageSize)
	assert.Equal(t, "title", srv.lastFilter.SortBy)
	assert.Equal(t, models.Session{UserID: "user-1", Role: models.RoleRequestor}, srv.lastSession)

	env := decodeEnvelope(t, rec)
	var items []dto.RequestResponse
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "2024-03-15", *items[0].ResponseDeadline)
	assert.Equal(t, "2024-03-29", *items[0].InternalDeadline)
	assert.Equal(t, 1, env.Pagination.TotalCount)
	assert.Contains(t, env.Meta, "processing_time_ms")
}

func TestRequestHandlerListRejectsBadPage(t *testing.T) {
	h := NewRequestHandler(&fakeRequestSrv{}, nil)
	c, rec := newTestContext(http.MethodGet, "/requests?page=two", "", models.RoleRequestor, "user-1")
	h.List(c)
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestRequestHandlerRequiresSession(t *testing.T) {
	h := NewRequestHandler(&fakeRequestSrv{}, nil)
	c, rec := newTestContext(http.MethodGet, "/requests", "", "", "")
	h.List(c)
	requireStatus(t, rec, http.StatusUnauthorized)
}

func TestRequestHandlerCreate(t *testing.T) {
	srv := &fakeRequestSrv{record: foiRecord()}
	h := NewRequestHandler(srv, nil)

	c, rec := newTestContext(http.MethodPost, "/requests", `{"request_type":"FOI","title":"Budget papers","submission_date":"2024-03-01"}`, models.RoleRequestor, "user-1")
	h.Create(c)

	requireStatus(t, rec, http.StatusCreated)
	assert.Equal(t, models.RequestTypeFOI, srv.lastCreate.RequestType)
	assert.Equal(t, "2024-03-01", srv.lastCreate.SubmissionDate)

	var body dto.RequestResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	assert.Equal(t, "FOI-1234", *body.CaseReference)
}

func TestRequestHandlerCreateMalformedJSON(t *testing.T) {
	h := NewRequestHandler(&fakeRequestSrv{}, nil)
	c, rec := newTestContext(http.MethodPost, "/requests", `{"request_type":`, models.RoleRequestor, "user-1")
	h.Create(c)
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, rec).Error.Code)
}

func TestRequestHandlerBulkMissingIDs(t *testing.T) {
	srv := &fakeRequestSrv{err: appErrors.Clone(appErrors.ErrNotFound, "requests not found: req-9")}
	h := NewRequestHandler(srv, nil)

	c, rec := newTestContext(http.MethodPatch, "/requests/bulk", `{"ids":["req-1","req-9"],"status":"Completed"}`, models.RoleReviewer, "rev-1")
	h.BulkUpdateStatus(c)

	requireStatus(t, rec, http.StatusNotFound)
	assert.Equal(t, []string{"req-1", "req-9"}, srv.lastBulk.IDs)
	assert.Contains(t, decodeEnvelope(t, rec).Error.Message, "req-9")
}

func TestRequestHandlerBulkReportsCount(t *testing.T) {
	srv := &fakeRequestSrv{items: []models.Request{*foiRecord(), *foiRecord()}}
	h := NewRequestHandler(srv, nil)

	c, rec := newTestContext(http.MethodPatch, "/requests/bulk", `{"ids":["a","b"],"status":"Completed"}`, models.RoleAdministrator, "adm-1")
	h.BulkUpdateStatus(c)

	requireStatus(t, rec, http.StatusOK)
	assert.EqualValues(t, 2, decodeEnvelope(t, rec).Meta["updated"])
}

func TestRequestHandlerUpdateStatusConflict(t *testing.T) {
	srv := &fakeRequestSrv{err: appErrors.Clone(appErrors.ErrConflict, "request req-1 cannot move from Completed to Pending")}
	h := NewRequestHandler(srv, nil)

	c, rec := newTestContext(http.MethodPatch, "/requests/req-1", `{"status":"Pending"}`, models.RoleAdministrator, "adm-1")
	c.Params = append(c.Params, ginParam("id", "req-1"))
	h.UpdateStatus(c)

	requireStatus(t, rec, http.StatusConflict)
	assert.Equal(t, models.StatusPending, srv.lastStatus)
}

func TestRequestHandlerHistoryEmptyIsArray(t *testing.T) {
	h := NewRequestHandler(&fakeRequestSrv{}, nil)
	c, rec := newTestContext(http.MethodGet, "/requests/req-1/history", "", models.RoleRequestor, "user-1")
	h.History(c)
	requireStatus(t, rec, http.StatusOK)
	assert.JSONEq(t, `[]`, string(decodeEnvelope(t, rec).Data))
}

func TestRequestHandlerExport(t *testing.T) {
	exporter := &fakeExporter{}
	h := NewRequestHandler(&fakeRequestSrv{}, exporter)

	c, rec := newTestContext(http.MethodGet, "/requests/export?format=CSV&type=Audit", "", models.RoleAdministrator, "adm-1")
	h.Export(c)

	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, service.ExportFormatCSV, exporter.format)
	assert.Equal(t, models.RequestTypeAudit, *exporter.filter.Type)
	assert.Equal(t, `attachment; filename="requests_20240304_103000.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Reference\n", rec.Body.String())
}

func TestRequestHandlerExportUnknownFormat(t *testing.T) {
	h := NewRequestHandler(&fakeRequestSrv{}, &fakeExporter{})
	c, rec := newTestContext(http.MethodGet, "/requests/export?format=xlsx", "", models.RoleAdministrator, "adm-1")
	h.Export(c)
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestRequestHandlerCreateMultipartUploadsAttachments(t *testing.T) {
	record := foiRecord()
	srv := &fakeRequestSrv{record: record}
	h := NewRequestHandler(srv, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("request_type", "Audit"))
	require.NoError(t, mw.WriteField("title", "Access review"))
	require.NoError(t, mw.WriteField("audit_period_from", "2024-01-01"))
	require.NoError(t, mw.WriteField("additional_params", ""))
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="files"; filename="scope.txt"`)
	header.Set("Content-Type", "text/plain")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("scope of request"))
	require.NoError(t, err)
	other, err := mw.CreateFormFile("evidence", "form.pdf")
	require.NoError(t, err)
	_, err = other.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	c, rec := newTestContext(http.MethodPost, "/requests", "", models.RoleRequestor, "user-1")
	c.Request, _ = http.NewRequest(http.MethodPost, "/requests", &body)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	record.Attachments = []models.Attachment{{ID: "att-1", Filename: "scope.txt", ContentType: "text/plain", Size: 16}}
	h.Create(c)

	requireStatus(t, rec, http.StatusCreated)
	assert.Equal(t, models.RequestTypeAudit, srv.lastCreate.RequestType)
	assert.Equal(t, "Access review", srv.lastCreate.Title)
	require.NotNil(t, srv.lastCreate.Audit)
	assert.Equal(t, "2024-01-01", srv.lastCreate.Audit.PeriodFrom)
	assert.Nil(t, srv.lastCreate.Adhoc)
	require.Len(t, srv.lastCreate.Attachments, 2)
	assert.Equal(t, "form.pdf", srv.lastCreate.Attachments[0].Filename)
	assert.Equal(t, []byte("%PDF-1.4"), srv.lastCreate.Attachments[0].Data)
	assert.Equal(t, "scope.txt", srv.lastCreate.Attachments[1].Filename)
	assert.Equal(t, "text/plain", srv.lastCreate.Attachments[1].ContentType)
	assert.Equal(t, []byte("scope of request"), srv.lastCreate.Attachments[1].Data)

	var created dto.RequestResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &created))
	require.Len(t, created.Attachments, 1)
	assert.EqualValues(t, 16, created.Attachments[0].Size)
}

func TestRequestHandlerCreateJSONAttachmentIsBase64(t *testing.T) {
	srv := &fakeRequestSrv{record: foiRecord()}
	h := NewRequestHandler(srv, nil)

	c, rec := newTestContext(http.MethodPost, "/requests", `{"request_type":"FOI","title":"Budget papers","attachments":[{"filename":"scope.txt","data":"c2NvcGU="}]}`, models.RoleRequestor, "user-1")
	h.Create(c)

	requireStatus(t, rec, http.StatusCreated)
	require.Len(t, srv.lastCreate.Attachments, 1)
	assert.Equal(t, []byte("scope"), srv.lastCreate.Attachments[0].Data)
}

func TestRequestHandlerAttachmentsReadBack(t *testing.T) {
	now := time.Date(2024, time.March, 4, 10, 30, 0, 0, time.UTC)
	srv := &fakeRequestSrv{attachments: []models.Attachment{
		{ID: "att-1", RequestID: "req-1", Filename: "scope.txt", ContentType: "text/plain; charset=utf-8", Size: 16, Data: []byte("scope of request"), CreatedAt: now},
	}}
	h := NewRequestHandler(srv, nil)

	c, rec := newTestContext(http.MethodGet, "/requests/req-1/attachments", "", models.RoleRequestor, "user-1")
	c.Params = append(c.Params, ginParam("id", "req-1"))
	h.Attachments(c)
	requireStatus(t, rec, http.StatusOK)
	var listed []dto.AttachmentResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "scope.txt", listed[0].Filename)
	assert.NotContains(t, rec.Body.String(), "scope of request")

	c, rec = newTestContext(http.MethodGet, "/requests/req-1/attachments/att-1", "", models.RoleRequestor, "user-1")
	c.Params = append(c.Params, ginParam("id", "req-1"), ginParam("attachmentId", "att-1"))
	h.DownloadAttachment(c)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "scope of request", rec.Body.String())
	assert.Equal(t, `attachment; filename="scope.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	c, rec = newTestContext(http.MethodGet, "/requests/req-1/attachments/att-9", "", models.RoleRequestor, "user-1")
	c.Params = append(c.Params, ginParam("id", "req-1"), ginParam("attachmentId", "att-9"))
	h.DownloadAttachment(c)
	requireStatus(t, rec, http.StatusNotFound)
}
