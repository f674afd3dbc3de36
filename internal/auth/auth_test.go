package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	tok, err := svc.Generate("admin")
	require.NoError(t, err)

	claims, err := svc.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = NewJWTService("other", 1).Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTExpired(t *testing.T) {
	svc := NewJWTService("secret", 1)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := svc.Generate("admin")
	require.NoError(t, err)
	_, err = svc.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAdminsCheck(t *testing.T) {
	a, err := NewAdmins("admin", "test123", "")
	require.NoError(t, err)
	assert.NoError(t, a.Check("admin", "test123"))
	assert.ErrorIs(t, a.Check("admin", "nope"), ErrBadCredentials)
	assert.ErrorIs(t, a.Check("root", "test123"), ErrBadCredentials)

	disabled, err := NewAdmins("admin", "", "")
	require.NoError(t, err)
	assert.False(t, disabled.Enabled())
	assert.ErrorIs(t, disabled.Check("admin", ""), ErrBadCredentials)
}

func TestLoginHandler(t *testing.T) {
	admins, err := NewAdmins("admin", "test123", "")
	require.NoError(t, err)
	h := NewHandler(admins, NewJWTService("secret", 1), nil)
	r := gin.New()
	r.POST("/auth/login", h.Login)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"test123"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.Token)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"bad"}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
