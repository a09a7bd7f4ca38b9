package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/foi-request-api/internal/dto"
	"github.com/noah-isme/foi-request-api/internal/models"
	appErrors "github.com/noah-isme/foi-request-api/pkg/errors"
	"github.com/noah-isme/foi-request-api/pkg/response"
)

// bindCreateRequest accepts either a JSON body or a multipart form. Form
// fields use the JSON names; every file part becomes an attachment whatever
// its field name.
func bindCreateRequest(c *gin.Context, req *dto.CreateRequestRequest) bool {
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return bindJSON(c, req, "invalid request payload")
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload"))
		return false
	}

	value := func(key string) string {
		if values := form.Value[key]; len(values) > 0 {
			return values[0]
		}
		return ""
	}
	req.RequestType = models.RequestType(value("request_type"))
	req.Title = value("title")
	req.Details = value("details")
	req.SubmissionDate = value("submission_date")
	if from, to := value("audit_period_from"), value("audit_period_to"); from != "" || to != "" {
		req.Audit = &dto.AuditFields{PeriodFrom: from, PeriodTo: to}
	}
	if params := value("additional_params"); params != "" {
		req.Adhoc = &dto.AdhocFields{AdditionalParams: params}
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		for _, fh := range form.File[field] {
			data, err := readFormFile(fh)
			if err != nil {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable attachment"))
				return false
			}
			req.Attachments = append(req.Attachments, dto.AttachmentUpload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return true
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
