package dto

import (
	"time"

	"github.com/noah-isme/foi-request-api/internal/models"
	"github.com/noah-isme/foi-request-api/pkg/workday"
)

// AuditFields are the fields only an Audit request may carry.
type AuditFields struct {
	PeriodFrom string `json:"period_from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PeriodTo   string `json:"period_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// AdhocFields are the fields only an Adhoc request may carry.
type AdhocFields struct {
	AdditionalParams string `json:"additional_params" validate:"max=2000"`
}

// AttachmentUpload is one file submitted with a request. JSON clients send
// Data base64-encoded; multipart uploads fill it from the file part.
type AttachmentUpload struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"content_type,omitempty" validate:"omitempty,max=255"`
	Data        []byte `json:"data"`
}

// CreateRequestRequest is the payload for submitting a request. Exactly the
// variant matching RequestType may be present; FOI has no variant fields
// because its deadlines and reference are always derived.
type CreateRequestRequest struct {
	RequestType    models.RequestType `json:"request_type" validate:"required,oneof=FOI Audit Adhoc"`
	Title          string             `json:"title" validate:"required,max=255"`
	Details        string             `json:"details"`
	SubmissionDate string             `json:"submission_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Audit          *AuditFields       `json:"audit,omitempty" validate:"omitempty"`
	Adhoc          *AdhocFields       `json:"adhoc,omitempty" validate:"omitempty"`
	Attachments    []AttachmentUpload `json:"attachments,omitempty" validate:"omitempty,dive"`
}

// UpdateRequestDetailsRequest edits the variant fields of an Audit or Adhoc request.
type UpdateRequestDetailsRequest struct {
	Audit *AuditFields `json:"audit,omitempty" validate:"omitempty"`
	Adhoc *AdhocFields `json:"adhoc,omitempty" validate:"omitempty"`
}

// UpdateStatusRequest sets the status of a single request.
type UpdateStatusRequest struct {
	Status models.RequestStatus `json:"status" validate:"required"`
}

// BulkUpdateStatusRequest applies one status to a set of requests.
type BulkUpdateStatusRequest struct {
	IDs    []string             `json:"ids" validate:"required,min=1,dive,required"`
	Status models.RequestStatus `json:"status" validate:"required"`
}

// RequestResponse is the wire representation of a request.
type RequestResponse struct {
	ID               string               `json:"id"`
	UserID           string               `json:"user_id"`
	RequestType      models.RequestType   `json:"request_type"`
	Title            string               `json:"title"`
	Details          string               `json:"details"`
	CaseReference    *string              `json:"case_reference,omitempty"`
	SubmissionDate   string               `json:"submission_date"`
	ResponseDeadline *string              `json:"response_deadline,omitempty"`
	InternalDeadline *string              `json:"internal_deadline,omitempty"`
	AuditPeriodFrom  *string              `json:"audit_period_from,omitempty"`
	AuditPeriodTo    *string              `json:"audit_period_to,omitempty"`
	AdditionalParams *string              `json:"additional_params,omitempty"`
	Status           models.RequestStatus `json:"status"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	Attachments      []AttachmentResponse `json:"attachments,omitempty"`
}

// AttachmentResponse describes a stored attachment without its contents.
type AttachmentResponse struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAttachmentResponses converts stored attachments into their wire form.
func NewAttachmentResponses(items []models.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(items))
	for _, item := range items {
		out = append(out, AttachmentResponse{
			ID:          item.ID,
			Filename:    item.Filename,
			ContentType: item.ContentType,
			Size:        item.Size,
			CreatedAt:   item.CreatedAt,
		})
	}
	return out
}

// NewRequestResponse converts a stored request into its wire form.
func NewRequestResponse(r *models.Request) RequestResponse {
	resp := RequestResponse{
		ID:               r.ID,
		UserID:           r.UserID,
		RequestType:      r.RequestType,
		Title:            r.Title,
		Details:          r.Details,
		CaseReference:    r.CaseReference,
		SubmissionDate:   workday.FormatDate(r.SubmissionDate),
		ResponseDeadline: formatOptionalDate(r.ResponseDeadline),
		InternalDeadline: formatOptionalDate(r.InternalDeadline),
		AuditPeriodFrom:  formatOptionalDate(r.AuditPeriodFrom),
		AuditPeriodTo:    formatOptionalDate(r.AuditPeriodTo),
		AdditionalParams: r.AdditionalParams,
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if len(r.Attachments) > 0 {
		resp.Attachments = NewAttachmentResponses(r.Attachments)
	}
	return resp
}

// NewRequestResponses converts a slice of stored requests.
func NewRequestResponses(items []models.Request) []RequestResponse {
	out := make([]RequestResponse, 0, len(items))
	for i := range items {
		out = append(out, NewRequestResponse(&items[i]))
	}
	return out
}

func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := workday.FormatDate(*t)
	return &s
}
