package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foi-request-api/internal/models"
	appErrors "github.com/noah-isme/foi-request-api/pkg/errors"
)

type fakeAuthSrv struct {
	signUp       models.SignUpRequest
	signIn       models.LoginRequest
	logoutToken  string
	logoutUser   string
	changeUser   string
	err          error
	loginResult  *models.LoginResponse
	userInfo     *models.UserInfo
	refreshInput models.RefreshTokenRequest
}

func (f *fakeAuthSrv) SignUp(_ context.Context, req models.SignUpRequest, _ models.RequestMeta) (*models.UserInfo, error) {
	f.signUp = req
	return f.userInfo, f.err
}

func (f *fakeAuthSrv) SignIn(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.signIn = req
	return f.loginResult, f.err
}

func (f *fakeAuthSrv) Refresh(_ context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	f.refreshInput = req
	return &models.RefreshTokenResponse{AccessToken: "new"}, f.err
}

func (f *fakeAuthSrv) Logout(_ context.Context, session models.Session, token string, _ models.RequestMeta) error {
	f.logoutUser, f.logoutToken = session.UserID, token
	return f.err
}

func (f *fakeAuthSrv) ChangePassword(_ context.Context, session models.Session, _ models.ChangePasswordRequest) error {
	f.changeUser = session.UserID
	return f.err
}

func (f *fakeAuthSrv) Me(_ context.Context, session models.Session) (*models.UserInfo, error) {
	return &models.UserInfo{ID: session.UserID, Role: session.Role}, f.err
}

func TestAuthHandlerSignUpCreated(t *testing.T) {
	srv := &fakeAuthSrv{userInfo: &models.UserInfo{ID: "u-1", Username: "jdoe", Role: models.RoleRequestor}}
	h := NewAuthHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/auth/signup", `{"username":"jdoe","email":"j@example.org","password":"secret1","role":"requestor"}`, "", "")
	h.SignUp(c)

	requireStatus(t, rec, http.StatusCreated)
	assert.Equal(t, "jdoe", srv.signUp.Username)
	var info models.UserInfo
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &info))
	assert.Equal(t, "u-1", info.ID)
}

func TestAuthHandlerSignUpConflict(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{err: appErrors.Clone(appErrors.ErrConflict, "username already taken")})
	c, rec := newTestContext(http.MethodPost, "/auth/signup", `{"username":"jdoe"}`, "", "")
	h.SignUp(c)
	requireStatus(t, rec, http.StatusConflict)
}

func TestAuthHandlerSignInCapturesClientMeta(t *testing.T) {
	srv := &fakeAuthSrv{loginResult: &models.LoginResponse{AccessToken: "at", RefreshToken: "rt"}}
	h := NewAuthHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/auth/signin", `{"username":"jdoe","password":"secret1"}`, "", "")
	c.Request.Header.Set("User-Agent", "portal/1.0")
	h.SignIn(c)

	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "portal/1.0", srv.signIn.UserAgent)
	assert.NotEmpty(t, srv.signIn.IP)
}

func TestAuthHandlerSignInInvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{err: appErrors.ErrInvalidCredentials})
	c, rec := newTestContext(http.MethodPost, "/auth/signin", `{"username":"jdoe","password":"nope"}`, "", "")
	h.SignIn(c)
	requireStatus(t, rec, http.StatusUnauthorized)
}

func TestAuthHandlerLogoutUsesSession(t *testing.T) {
	srv := &fakeAuthSrv{}
	h := NewAuthHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/auth/logout", `{"refresh_token":"rt-1"}`, models.RoleReviewer, "rev-1")
	h.Logout(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "rev-1", srv.logoutUser)
	assert.Equal(t, "rt-1", srv.logoutToken)
}

func TestAuthHandlerLogoutRequiresToken(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{})
	c, rec := newTestContext(http.MethodPost, "/auth/logout", `{}`, models.RoleReviewer, "rev-1")
	h.Logout(c)
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestAuthHandlerMe(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{})
	c, rec := newTestContext(http.MethodGet, "/auth/me", "", models.RoleAdministrator, "adm-1")
	h.Me(c)

	requireStatus(t, rec, http.StatusOK)
	var info models.UserInfo
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &info))
	assert.Equal(t, models.RoleAdministrator, info.Role)
}
