package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleRequestor     UserRole = "requestor"
	RoleAdministrator UserRole = "administrator"
	RoleReviewer      UserRole = "reviewer"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleRequestor, RoleAdministrator, RoleReviewer:
		return true
	default:
		return false
	}
}

// IsStaff reports whether the role may see every request and change statuses.
func (r UserRole) IsStaff() bool {
	return r == RoleAdministrator || r == RoleReviewer
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	Name         string     `db:"name" json:"name"`
	Department   string     `db:"department" json:"department"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
