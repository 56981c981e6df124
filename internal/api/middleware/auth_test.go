package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/driveunity_server/config"
	"github.com/qs3c/driveunity_server/internal/pkg/response"
	"github.com/qs3c/driveunity_server/internal/pkg/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func newTestManager() *session.Manager {
	return session.NewManager(config.SessionConfig{CookieName: "USER_INFO"})
}

func sessionCookie(id, email string) *http.Cookie {
	raw := `{"id":"` + id + `","name":"Ada","email":"` + email + `"}`
	return &http.Cookie{Name: "USER_INFO", Value: url.QueryEscape(raw)}
}

func TestSession_Success(t *testing.T) {
	router := gin.New()
	router.Use(Session(newTestManager()))
	router.GET("/test", func(c *gin.Context) {
		userID, ok := GetUserID(c)
		assert.True(t, ok)
		assert.Equal(t, "u-123", userID)

		p, ok := GetPrincipal(c)
		require.True(t, ok)
		assert.Equal(t, "ada@example.com", p.Email)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.AddCookie(sessionCookie("u-123", "ada@example.com"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSession_MissingCookie(t *testing.T) {
	router := gin.New()
	router.Use(Session(newTestManager()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}

func TestSession_MalformedCookie(t *testing.T) {
	router := gin.New()
	router.Use(Session(newTestManager()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.AddCookie(&http.Cookie{Name: "USER_INFO", Value: "not-json"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSession_MissingEmail(t *testing.T) {
	router := gin.New()
	router.Use(Session(newTestManager()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.AddCookie(&http.Cookie{Name: "USER_INFO", Value: url.QueryEscape(`{"id":"u-1"}`)})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalSession_WithCookie(t *testing.T) {
	router := gin.New()
	router.Use(OptionalSession(newTestManager()))
	router.GET("/test", func(c *gin.Context) {
		userID, ok := GetUserID(c)
		assert.True(t, ok)
		assert.Equal(t, "u-9", userID)
		c.JSON(http.StatusOK, gin.H{})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.AddCookie(sessionCookie("u-9", "x@example.com"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOptionalSession_WithoutCookie(t *testing.T) {
	router := gin.New()
	router.Use(OptionalSession(newTestManager()))
	router.GET("/test", func(c *gin.Context) {
		_, ok := GetUserID(c)
		assert.False(t, ok)
		_, ok = GetPrincipal(c)
		assert.False(t, ok)
		c.JSON(http.StatusOK, gin.H{})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetUserID_WrongType(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(UserIDKey, int64(42))

	_, ok := GetUserID(c)
	assert.False(t, ok)
}
