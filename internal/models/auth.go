package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignUpRequest registers a new account.
type SignUpRequest struct {
	Username   string   `json:"username" validate:"required,min=3,max=100"`
	Email      string   `json:"email" validate:"required,email"`
	Password   string   `json:"password" validate:"required,min=6"`
	Role       UserRole `json:"role" validate:"required,oneof=requestor administrator reviewer"`
	Name       string   `json:"name" validate:"max=255"`
	Department string   `json:"department" validate:"max=255"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// RequestMeta carries client metadata recorded in audit logs.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	Department string   `json:"department"`
	Role       UserRole `json:"role"`
}

// NewUserInfo projects a user onto its public fields.
func NewUserInfo(u *User) UserInfo {
	return UserInfo{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Name:       u.Name,
		Department: u.Department,
		Role:       u.Role,
	}
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Username string   `json:"username"`
	jwt.RegisteredClaims
}

// Session is the caller identity every request operation is evaluated against.
type Session struct {
	UserID string
	Role   UserRole
}

// SessionFromClaims builds a Session from verified token claims.
func SessionFromClaims(c *JWTClaims) Session {
	if c == nil {
		return Session{}
	}
	return Session{UserID: c.UserID, Role: c.Role}
}

// Authenticated reports whether the session carries a user and a known role.
func (s Session) Authenticated() bool {
	return s.UserID != "" && s.Role.Valid()
}
