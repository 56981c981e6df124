package session

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/driveunity_server/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func issueCookie(t *testing.T, m *Manager, p Principal, maxAge time.Duration) *http.Cookie {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/", nil)

	require.NoError(t, m.Issue(c, p, maxAge))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func readWith(m *Manager, name, value string) *Principal {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Request.AddCookie(&http.Cookie{Name: name, Value: value})
	return m.Read(c)
}

func TestManager_IssueAndRead(t *testing.T) {
	m := NewManager(config.SessionConfig{CookieName: "USER_INFO", Secure: true})
	p := Principal{ID: "u1", Name: "Ada", Email: "new@example.com"}

	cookie := issueCookie(t, m, p, 7*24*time.Hour)

	assert.Equal(t, "USER_INFO", cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 7*24*3600, cookie.MaxAge)

	got := readWith(m, cookie.Name, cookie.Value)
	require.NotNil(t, got)
	assert.Equal(t, p, *got)
}

func TestManager_IssueAndRead_QuotedName(t *testing.T) {
	m := NewManager(config.SessionConfig{})
	p := Principal{ID: "u1", Name: `Ada "Countess" Lovelace`, Email: "ada@example.com"}

	cookie := issueCookie(t, m, p, time.Hour)

	got := readWith(m, cookie.Name, cookie.Value)
	require.NotNil(t, got)
	assert.Equal(t, p, *got)
}

func TestManager_Read_Normalizes(t *testing.T) {
	m := NewManager(config.SessionConfig{CookieName: "USER_INFO"})
	payload := `{"id":"u1","name":"Ada","email":"a@example.com"}`

	tests := []struct {
		name  string
		value string
	}{
		{"url encoded", url.QueryEscape(payload)},
		{"byte order mark", url.QueryEscape("\ufeff" + payload)},
		{"wrapped in quotes", url.QueryEscape(`"` + payload + `"`)},
		{"escaped quotes", url.QueryEscape(`"{\"id\":\"u1\",\"name\":\"Ada\",\"email\":\"a@example.com\"}"`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := readWith(m, "USER_INFO", tt.value)
			require.NotNil(t, got)
			assert.Equal(t, "u1", got.ID)
			assert.Equal(t, "a@example.com", got.Email)
		})
	}
}

func TestManager_Read_RejectsStructuralFailures(t *testing.T) {
	m := NewManager(config.SessionConfig{CookieName: "USER_INFO"})

	tests := []struct {
		name  string
		value string
	}{
		{"not json", "garbage"},
		{"missing email", url.QueryEscape(`{"id":"u1","name":"Ada"}`)},
		{"missing id", url.QueryEscape(`{"name":"Ada","email":"a@example.com"}`)},
		{"empty object", url.QueryEscape(`{}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, readWith(m, "USER_INFO", tt.value))
		})
	}
}

func TestManager_Read_NoCookie(t *testing.T) {
	m := NewManager(config.SessionConfig{})
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)

	assert.Nil(t, m.Read(c))
	assert.Equal(t, "USER_INFO", m.CookieName())
}

func TestManager_Destroy(t *testing.T) {
	m := NewManager(config.SessionConfig{CookieName: "USER_INFO"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/", nil)

	m.Destroy(c)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "USER_INFO", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestManager_SignedCodec(t *testing.T) {
	m := NewManager(config.SessionConfig{CookieName: "USER_INFO", SigningSecret: "s3cret"})
	p := Principal{ID: "u1", Name: "Ada", Email: "a@example.com"}

	cookie := issueCookie(t, m, p, time.Hour)

	got := readWith(m, cookie.Name, cookie.Value)
	require.NotNil(t, got)
	assert.Equal(t, p, *got)

	// 未签名的 JSON 在签名模式下不被接受
	forged := url.QueryEscape(`{"id":"admin","name":"x","email":"x@example.com"}`)
	assert.Nil(t, readWith(m, cookie.Name, forged))

	other := NewManager(config.SessionConfig{CookieName: "USER_INFO", SigningSecret: "other"})
	assert.Nil(t, readWith(other, cookie.Name, cookie.Value))
}
