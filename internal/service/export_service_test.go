package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/foi-request-api/internal/models"
	appErrors "github.com/noah-isme/foi-request-api/pkg/errors"
)

func exportFixture(t *testing.T) *ExportService {
	t.Helper()
	seed := seedRequest("a", "user-1", models.RequestTypeFOI, models.StatusInProgress)
	response, internal, err := FOIDeadlines(seed.SubmissionDate)
	require.NoError(t, err)
	ref := "FOI-4321"
	seed.CaseReference = &ref
	seed.ResponseDeadline = &response
	seed.InternalDeadline = &internal
	repo := newFakeRequestRepo(
		seed,
		seedRequest("b", "user-2", models.RequestTypeAdhoc, models.StatusPending),
	)
	requests := newTestRequestService(repo, false)
	svc := NewExportService(requests, zap.NewNop(), nil, nil)
	svc.now = func() time.Time { return time.Date(2024, time.March, 4, 9, 15, 0, 0, time.UTC) }
	return svc
}

func TestParseExportFormat(t *testing.T) {
	format, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, format)

	format, err = ParseExportFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatPDF, format)

	_, err = ParseExportFormat("xlsx")
	assert.Equal(t, appErrors.ErrInvalidArgument.Code, appErrors.FromError(err).Code)
}

func TestExportCSVScopedToRequestor(t *testing.T) {
	svc := exportFixture(t)

	file, err := svc.Export(context.Background(), models.Session{UserID: "user-1", Role: models.RoleRequestor}, models.RequestFilter{}, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "requests_20240304_091500.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.Equal(t, 1, file.Rows)

	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ExportColumns, records[0])
	assert.Equal(t, []string{"FOI-4321", "FOI", "Seeded a", "2024-02-01", "2024-02-15", "2024-02-29", "In Progress"}, records[1])
}

func TestExportPDFForStaff(t *testing.T) {
	svc := exportFixture(t)

	file, err := svc.Export(context.Background(), models.Session{UserID: "admin-1", Role: models.RoleAdministrator}, models.RequestFilter{}, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, 2, file.Rows)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF-")))
}

func TestExportRequiresSession(t *testing.T) {
	svc := exportFixture(t)
	_, err := svc.Export(context.Background(), models.Session{}, models.RequestFilter{}, ExportFormatCSV)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestBuildRequestDatasetBlankOptionalCells(t *testing.T) {
	data := BuildRequestDataset([]models.Request{*seedRequest("x", "u", models.RequestTypeAdhoc, models.StatusPending)})
	require.Len(t, data.Rows, 1)
	assert.Equal(t, []string{"", "Adhoc", "Seeded x", "2024-02-01", "", "", "Pending"}, data.Rows[0])
}
