package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/foi-request-api/internal/models"
)

const requestColumns = `id, user_id, request_type, title, details, case_reference, submission_date, response_deadline, internal_deadline, audit_period_from, audit_period_to, additional_params, status, created_at, updated_at`

// MissingRequestsError lists request ids that do not exist.
type MissingRequestsError struct {
	IDs []string
}

func (e *MissingRequestsError) Error() string {
	return fmt.Sprintf("requests not found: %s", strings.Join(e.IDs, ", "))
}

// TransitionError reports a status change rejected by the transition policy.
type TransitionError struct {
	RequestID string
	From      models.RequestStatus
	To        models.RequestStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("request %s cannot move from %q to %q", e.RequestID, e.From, e.To)
}

// TransitionCheck decides whether a stored status may change to the target.
type TransitionCheck func(from, to models.RequestStatus) bool

// StatusUpdate describes one status change applied to a set of requests.
type StatusUpdate struct {
	IDs     []string
	Status  models.RequestStatus
	ActorID string
	At      time.Time
	Allow   TransitionCheck
}

// RequestRepository provides database access for requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new instance of RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request together with its attachments.
func (r *RequestRepository) Create(ctx context.Context, req *models.Request) (err error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = req.CreatedAt

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO requests (` + requestColumns + `) VALUES (:id, :user_id, :request_type, :title, :details, :case_reference, :submission_date, :response_deadline, :internal_deadline, :audit_period_from, :audit_period_to, :additional_params, :status, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if len(req.Attachments) > 0 {
		for i := range req.Attachments {
			att := &req.Attachments[i]
			if att.ID == "" {
				att.ID = uuid.NewString()
			}
			att.RequestID = req.ID
			att.CreatedAt = req.CreatedAt
		}
		const attachmentQuery = `INSERT INTO request_attachments (id, request_id, filename, content_type, size_bytes, data, created_at) VALUES (:id, :request_id, :filename, :content_type, :size_bytes, :data, :created_at)`
		if _, err = tx.NamedExecContext(ctx, attachmentQuery, req.Attachments); err != nil {
			return fmt.Errorf("create request attachments: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create transaction: %w", err)
	}
	return nil
}

// FindByID returns a request by identifier. Identifiers that are not UUIDs
// cannot match a row and yield sql.ErrNoRows.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.Request, error) {
	id, ok := models.CanonicalID(id)
	if !ok {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT ` + requestColumns + ` FROM requests WHERE id = $1 LIMIT 1`
	var req models.Request
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find request by id: %w", err)
	}
	return &req, nil
}

// List returns one page of requests matching the filter and the total match count.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	where, args := requestWhere(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s FROM requests %s ORDER BY %s LIMIT %d OFFSET %d", requestColumns, where, requestOrder(filter), pageSize, offset)
	var items []models.Request
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM requests %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}
	return items, total, nil
}

// ListAll returns every request matching the filter, ignoring pagination.
func (r *RequestRepository) ListAll(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	where, args := requestWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM requests %s ORDER BY %s", requestColumns, where, requestOrder(filter))
	var items []models.Request
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list all requests: %w", err)
	}
	return items, nil
}

// UpdateStatuses applies one status to every id inside a single transaction.
// All rows are locked first; if any id is missing or any row fails the
// transition check nothing is written.
func (r *RequestRepository) UpdateStatuses(ctx context.Context, upd StatusUpdate) (items []models.Request, err error) {
	if len(upd.IDs) == 0 {
		return nil, nil
	}
	ids, invalid := canonicalIDs(upd.IDs)
	if len(ids) == 0 {
		sort.Strings(invalid)
		return nil, &MissingRequestsError{IDs: invalid}
	}
	at := upd.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current []struct {
		ID     string               `db:"id"`
		Status models.RequestStatus `db:"status"`
	}
	const lockQuery = `SELECT id, status FROM requests WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	if err = tx.SelectContext(ctx, &current, lockQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("lock requests: %w", err)
	}

	found := make(map[string]models.RequestStatus, len(current))
	for _, row := range current {
		found[strings.ToLower(row.ID)] = row.Status
	}
	missing := invalid
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		err = &MissingRequestsError{IDs: missing}
		return nil, err
	}

	changes := make([]models.RequestStatusChange, 0, len(current))
	for _, row := range current {
		if upd.Allow != nil && !upd.Allow(row.Status, upd.Status) {
			err = &TransitionError{RequestID: row.ID, From: row.Status, To: upd.Status}
			return nil, err
		}
		if row.Status == upd.Status {
			continue
		}
		change := models.RequestStatusChange{
			ID:             uuid.NewString(),
			RequestID:      row.ID,
			PreviousStatus: row.Status,
			NewStatus:      upd.Status,
			ChangedAt:      at,
		}
		if upd.ActorID != "" {
			actor := upd.ActorID
			change.ChangedBy = &actor
		}
		changes = append(changes, change)
	}

	const updateQuery = `UPDATE requests SET status = $1, updated_at = $2 WHERE id = ANY($3)`
	if _, err = tx.ExecContext(ctx, updateQuery, upd.Status, at, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("update request status: %w", err)
	}

	if len(changes) > 0 {
		const historyQuery = `INSERT INTO request_status_history (id, request_id, changed_by, previous_status, new_status, changed_at) VALUES (:id, :request_id, :changed_by, :previous_status, :new_status, :changed_at)`
		if _, err = tx.NamedExecContext(ctx, historyQuery, changes); err != nil {
			return nil, fmt.Errorf("insert status history: %w", err)
		}
	}

	const selectQuery = `SELECT ` + requestColumns + ` FROM requests WHERE id = ANY($1) ORDER BY created_at`
	if err = tx.SelectContext(ctx, &items, selectQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("reload requests: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status transaction: %w", err)
	}
	return items, nil
}

// UpdateDetails stores the variant fields of a request.
func (r *RequestRepository) UpdateDetails(ctx context.Context, req *models.Request) error {
	req.UpdatedAt = time.Now().UTC()
	const query = `UPDATE requests SET audit_period_from = :audit_period_from, audit_period_to = :audit_period_to, additional_params = :additional_params, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, req)
	if err != nil {
		return fmt.Errorf("update request details: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request details rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// StatusHistory returns the status changes of a request, oldest first.
func (r *RequestRepository) StatusHistory(ctx context.Context, requestID string) ([]models.RequestStatusChange, error) {
	requestID, ok := models.CanonicalID(requestID)
	if !ok {
		return nil, nil
	}
	const query = `SELECT id, request_id, changed_by, previous_status, new_status, changed_at FROM request_status_history WHERE request_id = $1 ORDER BY changed_at ASC`
	var changes []models.RequestStatusChange
	if err := r.db.SelectContext(ctx, &changes, query, requestID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return changes, nil
}

// ListAttachments returns attachment metadata for a request, oldest first.
// File contents are not loaded.
func (r *RequestRepository) ListAttachments(ctx context.Context, requestID string) ([]models.Attachment, error) {
	requestID, ok := models.CanonicalID(requestID)
	if !ok {
		return nil, nil
	}
	const query = `SELECT id, request_id, filename, content_type, size_bytes, created_at FROM request_attachments WHERE request_id = $1 ORDER BY created_at ASC, id ASC`
	var items []models.Attachment
	if err := r.db.SelectContext(ctx, &items, query, requestID); err != nil {
		return nil, fmt.Errorf("list request attachments: %w", err)
	}
	return items, nil
}

// FindAttachment returns one attachment of a request including its contents.
func (r *RequestRepository) FindAttachment(ctx context.Context, requestID, attachmentID string) (*models.Attachment, error) {
	requestID, okRequest := models.CanonicalID(requestID)
	attachmentID, okAttachment := models.CanonicalID(attachmentID)
	if !okRequest || !okAttachment {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT id, request_id, filename, content_type, size_bytes, data, created_at FROM request_attachments WHERE id = $1 AND request_id = $2 LIMIT 1`
	var att models.Attachment
	if err := r.db.GetContext(ctx, &att, query, attachmentID, requestID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find request attachment: %w", err)
	}
	return &att, nil
}

// CountByTypeAndStatus aggregates requests per type and status, optionally for one owner.
func (r *RequestRepository) CountByTypeAndStatus(ctx context.Context, ownerID *string) ([]models.RequestStatusCount, error) {
	query := `SELECT request_type, status, COUNT(*) AS count FROM requests`
	var args []interface{}
	if ownerID != nil {
		query += ` WHERE user_id = $1`
		args = append(args, *ownerID)
	}
	query += ` GROUP BY request_type, status`

	var counts []models.RequestStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count requests: %w", err)
	}
	return counts, nil
}

// canonicalIDs splits raw ids into deduplicated canonical UUIDs and the raw
// values that are not UUIDs at all.
func canonicalIDs(raw []string) (ids, invalid []string) {
	seen := make(map[string]struct{}, len(raw))
	for _, value := range raw {
		id, ok := models.CanonicalID(value)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if !ok {
			invalid = append(invalid, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids, invalid
}

func requestWhere(filter models.RequestFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, *filter.OwnerID)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("request_type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(request_type) LIKE $%d OR LOWER(COALESCE(case_reference, '')) LIKE $%d)", n, n, n))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) == 0 {
		return "WHERE 1=1", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func requestOrder(filter models.RequestFilter) string {
	allowedSorts := map[string]bool{
		"submission_date":   true,
		"response_deadline": true,
		"internal_deadline": true,
		"created_at":        true,
		"updated_at":        true,
		"title":             true,
		"status":            true,
		"request_type":      true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}
	return fmt.Sprintf("%s %s, id ASC", sortBy, sortOrder)
}
