package models

import "time"

// RequestType identifies the kind of request. It is fixed at creation.
type RequestType string

const (
	RequestTypeFOI   RequestType = "FOI"
	RequestTypeAudit RequestType = "Audit"
	RequestTypeAdhoc RequestType = "Adhoc"
)

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool {
	switch t {
	case RequestTypeFOI, RequestTypeAudit, RequestTypeAdhoc:
		return true
	default:
		return false
	}
}

// RequestTypes lists every request type in display order.
var RequestTypes = []RequestType{RequestTypeFOI, RequestTypeAudit, RequestTypeAdhoc}

// RequestStatus is the lifecycle state of a request.
type RequestStatus string

const (
	StatusPending          RequestStatus = "Pending"
	StatusInProgress       RequestStatus = "In Progress"
	StatusCompleted        RequestStatus = "Completed"
	StatusUnableToComplete RequestStatus = "Unable to complete"
)

// RequestStatuses lists every status in display order.
var RequestStatuses = []RequestStatus{StatusPending, StatusInProgress, StatusCompleted, StatusUnableToComplete}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusUnableToComplete:
		return true
	default:
		return false
	}
}

// Terminal reports whether s ends the lifecycle under the strict policy.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusUnableToComplete
}

var strictTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:    {StatusInProgress, StatusUnableToComplete},
	StatusInProgress: {StatusCompleted, StatusUnableToComplete},
}

// CanTransition reports whether a request may move from one status to another.
// The open policy allows any pair of valid statuses. The strict policy only
// allows forward moves and freezes terminal statuses; re-applying the current
// status is always allowed.
func CanTransition(from, to RequestStatus, strict bool) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if !strict || from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	for _, next := range strictTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Request is a tracked FOI, audit or ad-hoc data request.
//
// ResponseDeadline and InternalDeadline are set only for FOI requests and are
// always derived from SubmissionDate. AuditPeriodFrom/To belong to Audit
// requests, AdditionalParams to Adhoc requests. Attachments is populated only
// on create; reads go through the attachment endpoints.
type Request struct {
	ID               string        `db:"id"`
	UserID           string        `db:"user_id"`
	RequestType      RequestType   `db:"request_type"`
	Title            string        `db:"title"`
	Details          string        `db:"details"`
	CaseReference    *string       `db:"case_reference"`
	SubmissionDate   time.Time     `db:"submission_date"`
	ResponseDeadline *time.Time    `db:"response_deadline"`
	InternalDeadline *time.Time    `db:"internal_deadline"`
	AuditPeriodFrom  *time.Time    `db:"audit_period_from"`
	AuditPeriodTo    *time.Time    `db:"audit_period_to"`
	AdditionalParams *string       `db:"additional_params"`
	Status           RequestStatus `db:"status"`
	CreatedAt        time.Time     `db:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at"`
	Attachments      []Attachment  `db:"-"`
}

// RequestFilter captures filtering criteria for listing requests.
type RequestFilter struct {
	OwnerID   *string
	Type      *RequestType
	Status    *RequestStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// RequestStatusChange is one row of a request's status history.
type RequestStatusChange struct {
	ID             string        `db:"id" json:"id"`
	RequestID      string        `db:"request_id" json:"request_id"`
	ChangedBy      *string       `db:"changed_by" json:"changed_by,omitempty"`
	PreviousStatus RequestStatus `db:"previous_status" json:"previous_status"`
	NewStatus      RequestStatus `db:"new_status" json:"new_status"`
	ChangedAt      time.Time     `db:"changed_at" json:"changed_at"`
}

// RequestStatusCount is one cell of the type × status aggregate.
type RequestStatusCount struct {
	RequestType RequestType   `db:"request_type"`
	Status      RequestStatus `db:"status"`
	Count       int           `db:"count"`
}
