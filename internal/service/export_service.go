package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/foi-request-api/internal/models"
	appErrors "github.com/noah-isme/foi-request-api/pkg/errors"
	"github.com/noah-isme/foi-request-api/pkg/export"
	"github.com/noah-isme/foi-request-api/pkg/workday"
)

// ExportFormat selects the rendered document type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportColumns are the columns of a request export, in order.
var ExportColumns = []string{"Reference", "Request Type", "Title", "Request Date", "Response Deadline", "Internal Deadline", "Status"}

var exportColumnWidths = []float64{1.2, 1, 3, 1.1, 1.2, 1.2, 1.3}

type requestLister interface {
	ListAll(ctx context.Context, session models.Session, filter models.RequestFilter) ([]models.Request, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
}

// ExportFile is a rendered export ready to be streamed to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportService renders the request listing a session can see as CSV or PDF.
type ExportService struct {
	requests requestLister
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(requests requestLister, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{requests: requests, csv: csv, pdf: pdf, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// ParseExportFormat accepts "csv" or "pdf" in any case; empty means csv.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatPDF:
		return ExportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("unsupported export format %q", raw))
	}
}

// Export renders every request matching filter that the session can see.
func (s *ExportService) Export(ctx context.Context, session models.Session, filter models.RequestFilter, format ExportFormat) (*ExportFile, error) {
	items, err := s.requests.ListAll(ctx, session, filter)
	if err != nil {
		return nil, err
	}
	dataset := BuildRequestDataset(items)
	stamp := s.now().Format("20060102_150405")

	file := &ExportFile{Rows: len(items)}
	switch format {
	case ExportFormatCSV:
		file.Data, err = s.csv.Render(dataset)
		file.ContentType = s.csv.ContentType()
	case ExportFormatPDF:
		file.Data, err = s.pdf.Render(dataset, "Requests")
		file.ContentType = s.pdf.ContentType()
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	file.Filename = fmt.Sprintf("requests_%s.%s", stamp, format)

	s.logger.Info("requests exported",
		zap.String("user_id", session.UserID),
		zap.String("format", string(format)),
		zap.Int("rows", file.Rows))
	return file, nil
}

// BuildRequestDataset lays requests out in export column order. Missing values render as empty cells.
func BuildRequestDataset(items []models.Request) export.Dataset {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			derefString(item.CaseReference),
			string(item.RequestType),
			item.Title,
			workday.FormatDate(item.SubmissionDate),
			formatDatePtr(item.ResponseDeadline),
			formatDatePtr(item.InternalDeadline),
			string(item.Status),
		})
	}
	return export.Dataset{Headers: ExportColumns, Rows: rows, Widths: exportColumnWidths}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return workday.FormatDate(*t)
}
