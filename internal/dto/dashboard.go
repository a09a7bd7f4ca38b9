package dto

import (
	"time"

	"github.com/noah-isme/foi-request-api/internal/models"
)

// DashboardScope tells the client whether counts cover every request or only the caller's.
type DashboardScope string

const (
	DashboardScopeAll DashboardScope = "all"
	DashboardScopeOwn DashboardScope = "own"
)

// StatusBreakdown counts requests per status.
type StatusBreakdown struct {
	Pending          int `json:"pending"`
	InProgress       int `json:"in_progress"`
	Completed        int `json:"completed"`
	UnableToComplete int `json:"unable_to_complete"`
	Total            int `json:"total"`
}

// Add increments the bucket for status by n.
func (b *StatusBreakdown) Add(status models.RequestStatus, n int) {
	switch status {
	case models.StatusPending:
		b.Pending += n
	case models.StatusInProgress:
		b.InProgress += n
	case models.StatusCompleted:
		b.Completed += n
	case models.StatusUnableToComplete:
		b.UnableToComplete += n
	default:
		return
	}
	b.Total += n
}

// RequestDashboardResponse aggregates requests by type and status for charts.
type RequestDashboardResponse struct {
	Scope                DashboardScope                         `json:"scope"`
	ByType               map[models.RequestType]StatusBreakdown `json:"by_type"`
	Overall              StatusBreakdown                        `json:"overall"`
	CompletionPercentage float64                                `json:"completion_percentage"`
	GeneratedAt          time.Time                              `json:"generated_at"`
}
