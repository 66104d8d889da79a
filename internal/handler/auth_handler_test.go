package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/noticeboard/internal/models"
	appErrors "github.com/noah-isme/noticeboard/pkg/errors"
)

type authServiceMock struct {
	loginReq     models.LoginRequest
	loginErr     error
	logoutToken  string
	logoutUserID string
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.loginReq = req
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "access2", RefreshToken: "refresh2"}, nil
}

func (m *authServiceMock) Logout(ctx context.Context, refreshToken string, userID string) error {
	m.logoutToken = refreshToken
	m.logoutUserID = userID
	return nil
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID, Username: "alice"}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", stringsReader(`{"username":"alice","password":"pw"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set("User-Agent", "tests")
	handler.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", mockSvc.loginReq.Username)
	assert.Equal(t, "tests", mockSvc.loginReq.UserAgent)
	assert.Contains(t, w.Body.String(), `"access_token":"access"`)
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{loginErr: appErrors.ErrInvalidCredentials})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", stringsReader(`{"username":"alice","password":"bad"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLogoutUsesPrincipal(t *testing.T) {
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	c, w := newAuthedContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"refresh"}`))
	handler.Logout(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "refresh", mockSvc.logoutToken)
	assert.Equal(t, "u1", mockSvc.logoutUserID)
}

func TestAuthHandlerLogoutRequiresToken(t *testing.T) {
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	c, w := newAuthedContext(http.MethodPost, "/auth/logout", []byte(`{}`))
	handler.Logout(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"VALIDATION_ERROR"`)
	assert.Empty(t, mockSvc.logoutUserID)
}

func TestAuthHandlerMe(t *testing.T) {
	handler := NewAuthHandler(&authServiceMock{})

	c, w := newAuthedContext(http.MethodGet, "/auth/me", nil)
	handler.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
}
