package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/foi-request-api/internal/dto"
	"github.com/noah-isme/foi-request-api/internal/models"
	"github.com/noah-isme/foi-request-api/internal/repository"
	"github.com/noah-isme/foi-request-api/pkg/caseref"
	appErrors "github.com/noah-isme/foi-request-api/pkg/errors"
	"github.com/noah-isme/foi-request-api/pkg/workday"
)

// Working-day offsets from the submission date for FOI requests.
const (
	FOIResponseWorkingDays = 10
	FOIInternalWorkingDays = 20
)

// Attachment limits applied when the configuration leaves them unset.
const (
	DefaultMaxAttachments     = 10
	DefaultMaxAttachmentBytes = 10 << 20
)

type requestRepository interface {
	Create(ctx context.Context, req *models.Request) error
	FindByID(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error)
	ListAll(ctx context.Context, filter models.RequestFilter) ([]models.Request, error)
	UpdateStatuses(ctx context.Context, upd repository.StatusUpdate) ([]models.Request, error)
	UpdateDetails(ctx context.Context, req *models.Request) error
	StatusHistory(ctx context.Context, requestID string) ([]models.RequestStatusChange, error)
	ListAttachments(ctx context.Context, requestID string) ([]models.Attachment, error)
	FindAttachment(ctx context.Context, requestID, attachmentID string) (*models.Attachment, error)
}

// RequestServiceConfig tunes the request lifecycle.
type RequestServiceConfig struct {
	StrictTransitions  bool
	MaxPageSize        int
	MaxAttachments     int
	MaxAttachmentBytes int64
}

// RequestService implements the request lifecycle. Every operation is
// evaluated against an explicit caller session.
type RequestService struct {
	repo      requestRepository
	refs      *caseref.Generator
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    RequestServiceConfig
	now       func() time.Time
}

// NewRequestService constructs a RequestService.
func NewRequestService(repo requestRepository, refs *caseref.Generator, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg RequestServiceConfig) *RequestService {
	if refs == nil {
		refs = caseref.NewGenerator()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	if cfg.MaxAttachments <= 0 {
		cfg.MaxAttachments = DefaultMaxAttachments
	}
	if cfg.MaxAttachmentBytes <= 0 {
		cfg.MaxAttachmentBytes = DefaultMaxAttachmentBytes
	}
	return &RequestService{
		repo:      repo,
		refs:      refs,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create submits a new request owned by the session user.
func (s *RequestService) Create(ctx context.Context, session models.Session, req dto.CreateRequestRequest) (*models.Request, error) {
	if !session.Authenticated() {
		return nil, appErrors.ErrUnauthorized
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if err := checkVariant(req.RequestType, req.Audit, req.Adhoc); err != nil {
		return nil, err
	}

	submitted := workday.Normalize(s.now())
	if req.SubmissionDate != "" {
		parsed, err := workday.ParseDate(req.SubmissionDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidArgument.Code, appErrors.ErrInvalidArgument.Status, "submission_date must be YYYY-MM-DD")
		}
		submitted = parsed
	}
	attachments, err := s.attachments(req.Attachments)
	if err != nil {
		return nil, err
	}

	record := &models.Request{
		UserID:         session.UserID,
		RequestType:    req.RequestType,
		Title:          req.Title,
		Details:        req.Details,
		SubmissionDate: submitted,
		Status:         models.StatusPending,
		Attachments:    attachments,
	}

	switch req.RequestType {
	case models.RequestTypeFOI:
		response, internal, err := FOIDeadlines(submitted)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidArgument.Code, appErrors.ErrInvalidArgument.Status, "cannot compute deadlines")
		}
		ref := s.refs.FOI()
		record.ResponseDeadline = &response
		record.InternalDeadline = &internal
		record.CaseReference = &ref
	case models.RequestTypeAudit:
		ref := s.refs.Audit()
		record.CaseReference = &ref
		if err := applyAuditFields(record, req.Audit); err != nil {
			return nil, err
		}
	case models.RequestTypeAdhoc:
		applyAdhocFields(record, req.Adhoc)
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.metrics.RecordRequestCreated(record.RequestType)
	s.cache.Invalidate(ctx, dashboardCachePattern)
	s.logger.Info("request created",
		zap.String("request_id", record.ID),
		zap.String("type", string(record.RequestType)),
		zap.Int("attachments", len(record.Attachments)),
		zap.String("user_id", session.UserID))
	return record, nil
}

// List returns one page of requests visible to the session.
func (s *RequestService) List(ctx context.Context, session models.Session, filter models.RequestFilter) ([]models.Request, *models.Pagination, error) {
	filter, err := s.scopedFilter(session, filter)
	if err != nil {
		return nil, nil, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > s.config.MaxPageSize {
		filter.PageSize = s.config.MaxPageSize
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListAll returns every request visible to the session matching the filter.
func (s *RequestService) ListAll(ctx context.Context, session models.Session, filter models.RequestFilter) ([]models.Request, error) {
	filter, err := s.scopedFilter(session, filter)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return items, nil
}

// Get returns one request. Requestors cannot see other users' requests.
func (s *RequestService) Get(ctx context.Context, session models.Session, id string) (*models.Request, error) {
	if !session.Authenticated() {
		return nil, appErrors.ErrUnauthorized
	}
	id, _ = models.CanonicalID(id)
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if !session.Role.IsStaff() && record.UserID != session.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	return record, nil
}

// UpdateStatus sets the status of one request. Deadlines are never recomputed.
func (s *RequestService) UpdateStatus(ctx context.Context, session models.Session, id string, status models.RequestStatus) (*models.Request, error) {
	items, err := s.updateStatuses(ctx, session, []string{id}, status, false)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	return &items[0], nil
}

// BulkUpdateStatus applies one status to every id as a single unit. If any id
// is unknown the call fails with NotFound and no request changes.
func (s *RequestService) BulkUpdateStatus(ctx context.Context, session models.Session, req dto.BulkUpdateStatusRequest) ([]models.Request, error) {
	if err := requireStaff(session); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk update payload")
	}
	return s.updateStatuses(ctx, session, req.IDs, req.Status, true)
}

func (s *RequestService) updateStatuses(ctx context.Context, session models.Session, ids []string, status models.RequestStatus, bulk bool) ([]models.Request, error) {
	if err := requireStaff(session); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("unknown status %q", status))
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "at least one request id is required")
	}

	strict := s.config.StrictTransitions
	items, err := s.repo.UpdateStatuses(ctx, repository.StatusUpdate{
		IDs:     ids,
		Status:  status,
		ActorID: session.UserID,
		At:      s.now(),
		Allow: func(from, to models.RequestStatus) bool {
			return models.CanTransition(from, to, strict)
		},
	})
	if err != nil {
		var missing *repository.MissingRequestsError
		var transition *repository.TransitionError
		switch {
		case errors.As(err, &missing):
			return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, fmt.Sprintf("requests not found: %s", strings.Join(missing.IDs, ", ")))
		case errors.As(err, &transition):
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("request %s cannot move from %s to %s", transition.RequestID, transition.From, transition.To))
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
		}
	}

	s.metrics.RecordStatusUpdate(status, len(items), bulk)
	s.cache.Invalidate(ctx, dashboardCachePattern)
	s.logger.Info("request status updated",
		zap.Int("count", len(items)),
		zap.String("status", string(status)),
		zap.String("actor_id", session.UserID))
	return items, nil
}

// UpdateDetails edits the variant fields of an Audit or Adhoc request. FOI
// requests carry only derived fields and cannot be edited this way.
func (s *RequestService) UpdateDetails(ctx context.Context, session models.Session, id string, req dto.UpdateRequestDetailsRequest) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request details payload")
	}
	record, err := s.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if record.RequestType == models.RequestTypeFOI {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "FOI requests have no editable details")
	}
	if err := checkVariant(record.RequestType, req.Audit, req.Adhoc); err != nil {
		return nil, err
	}

	switch record.RequestType {
	case models.RequestTypeAudit:
		if err := applyAuditFields(record, req.Audit); err != nil {
			return nil, err
		}
	case models.RequestTypeAdhoc:
		applyAdhocFields(record, req.Adhoc)
	}

	if err := s.repo.UpdateDetails(ctx, record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request details")
	}
	return record, nil
}

// History returns the status changes of a request visible to the session.
func (s *RequestService) History(ctx context.Context, session models.Session, id string) ([]models.RequestStatusChange, error) {
	record, err := s.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	changes, err := s.repo.StatusHistory(ctx, record.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	return changes, nil
}

// Attachments lists the files uploaded with a request visible to the session.
func (s *RequestService) Attachments(ctx context.Context, session models.Session, id string) ([]models.Attachment, error) {
	record, err := s.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListAttachments(ctx, record.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attachments")
	}
	return items, nil
}

// Attachment returns one uploaded file, contents included.
func (s *RequestService) Attachment(ctx context.Context, session models.Session, id, attachmentID string) (*models.Attachment, error) {
	record, err := s.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	att, err := s.repo.FindAttachment(ctx, record.ID, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}
	return att, nil
}

// FOIDeadlines returns the response and internal deadlines for a submission date.
func FOIDeadlines(submitted time.Time) (response, internal time.Time, err error) {
	response, err = workday.AddWorkingDays(submitted, FOIResponseWorkingDays)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	internal, err = workday.AddWorkingDays(submitted, FOIInternalWorkingDays)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return response, internal, nil
}

func (s *RequestService) scopedFilter(session models.Session, filter models.RequestFilter) (models.RequestFilter, error) {
	if !session.Authenticated() {
		return filter, appErrors.ErrUnauthorized
	}
	if filter.Type != nil && !filter.Type.Valid() {
		return filter, appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("unknown request type %q", *filter.Type))
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return filter, appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("unknown status %q", *filter.Status))
	}
	if session.Role.IsStaff() {
		return filter, nil
	}
	owner := session.UserID
	filter.OwnerID = &owner
	return filter, nil
}

func requireStaff(session models.Session) error {
	if !session.Authenticated() {
		return appErrors.ErrUnauthorized
	}
	if !session.Role.IsStaff() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators and reviewers can change request status")
	}
	return nil
}

func checkVariant(requestType models.RequestType, audit *dto.AuditFields, adhoc *dto.AdhocFields) error {
	switch requestType {
	case models.RequestTypeFOI:
		if audit != nil || adhoc != nil {
			return appErrors.Clone(appErrors.ErrInvalidArgument, "FOI requests accept no audit or adhoc fields")
		}
	case models.RequestTypeAudit:
		if adhoc != nil {
			return appErrors.Clone(appErrors.ErrInvalidArgument, "Audit requests accept no adhoc fields")
		}
	case models.RequestTypeAdhoc:
		if audit != nil {
			return appErrors.Clone(appErrors.ErrInvalidArgument, "Adhoc requests accept no audit fields")
		}
	default:
		return appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("unknown request type %q", requestType))
	}
	return nil
}

func (s *RequestService) attachments(uploads []dto.AttachmentUpload) ([]models.Attachment, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if len(uploads) > s.config.MaxAttachments {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("at most %d attachments are allowed", s.config.MaxAttachments))
	}
	out := make([]models.Attachment, 0, len(uploads))
	for _, upload := range uploads {
		name := path.Base(strings.ReplaceAll(strings.TrimSpace(upload.Filename), "\\", "/"))
		if name == "." || name == "/" {
			return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "attachment filename is required")
		}
		size := int64(len(upload.Data))
		if size > s.config.MaxAttachmentBytes {
			return nil, appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("attachment %s exceeds %d bytes", name, s.config.MaxAttachmentBytes))
		}
		contentType := strings.TrimSpace(upload.ContentType)
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = mimetype.Detect(upload.Data).String()
		}
		out = append(out, models.Attachment{
			Filename:    name,
			ContentType: contentType,
			Size:        size,
			Data:        upload.Data,
		})
	}
	return out, nil
}

// applyAuditFields merges the supplied period bounds into the record. Omitted
// bounds keep their stored value and the order is checked on the result.
func applyAuditFields(record *models.Request, fields *dto.AuditFields) error {
	if fields == nil {
		return nil
	}
	from, err := optionalDate(fields.PeriodFrom, "period_from")
	if err != nil {
		return err
	}
	to, err := optionalDate(fields.PeriodTo, "period_to")
	if err != nil {
		return err
	}
	if from == nil {
		from = record.AuditPeriodFrom
	}
	if to == nil {
		to = record.AuditPeriodTo
	}
	if from != nil && to != nil && to.Before(*from) {
		return appErrors.Clone(appErrors.ErrInvalidArgument, "period_to must not be before period_from")
	}
	record.AuditPeriodFrom = from
	record.AuditPeriodTo = to
	return nil
}

func applyAdhocFields(record *models.Request, fields *dto.AdhocFields) {
	if fields == nil {
		return
	}
	params := strings.TrimSpace(fields.AdditionalParams)
	if params == "" {
		record.AdditionalParams = nil
		return
	}
	record.AdditionalParams = &params
}

func optionalDate(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := workday.ParseDate(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidArgument.Code, appErrors.ErrInvalidArgument.Status, field+" must be YYYY-MM-DD")
	}
	return &d, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id, _ = models.CanonicalID(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
