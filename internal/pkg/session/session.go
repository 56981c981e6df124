// Package session 管理保存在客户端 cookie 中的登录会话。
//
// 默认 cookie 值就是 {id, name, email} 的 JSON，只做结构校验；
// 配置了 signing_secret 时改用 HS256 签名令牌，篡改可被检测。
package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/driveunity_server/config"
	"github.com/qs3c/driveunity_server/internal/pkg/jwt"
)

var ErrMalformed = errors.New("malformed session")

// Principal 会话中的用户
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (p *Principal) valid() bool {
	return p != nil && p.ID != "" && p.Email != ""
}

// Codec cookie 值的编解码方式
type Codec interface {
	Encode(p Principal, maxAge time.Duration) (string, error)
	Decode(raw string) (*Principal, error)
}

// JSONCodec 未签名的 JSON
type JSONCodec struct{}

func (JSONCodec) Encode(p Principal, _ time.Duration) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (JSONCodec) Decode(raw string) (*Principal, error) {
	var p Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, ErrMalformed
	}
	return &p, nil
}

// SignedCodec HS256 签名令牌
type SignedCodec struct {
	Secret string
}

func (c SignedCodec) Encode(p Principal, maxAge time.Duration) (string, error) {
	return jwt.GenerateToken(p.ID, p.Name, p.Email, c.Secret, maxAge)
}

func (c SignedCodec) Decode(raw string) (*Principal, error) {
	claims, err := jwt.ParseToken(raw, c.Secret)
	if err != nil {
		return nil, err
	}
	return &Principal{ID: claims.UserID, Name: claims.Name, Email: claims.Email}, nil
}

// Manager 读写会话 cookie
type Manager struct {
	cookieName string
	secure     bool
	codec      Codec
}

func NewManager(cfg config.SessionConfig) *Manager {
	var codec Codec = JSONCodec{}
	if cfg.SigningSecret != "" {
		codec = SignedCodec{Secret: cfg.SigningSecret}
	}
	name := cfg.CookieName
	if name == "" {
		name = "USER_INFO"
	}
	return &Manager{cookieName: name, secure: cfg.Secure, codec: codec}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// Issue 写入会话 cookie
func (m *Manager) Issue(c *gin.Context, p Principal, maxAge time.Duration) error {
	value, err := m.codec.Encode(p, maxAge)
	if err != nil {
		return err
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.cookieName,
		Value:    url.QueryEscape(value),
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Read 读取会话，任何结构问题都返回 nil
func (m *Manager) Read(c *gin.Context) *Principal {
	cookie, err := c.Request.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	raw := cookie.Value
	if decoded, err := url.QueryUnescape(raw); err == nil {
		raw = decoded
	}
	p, err := m.codec.Decode(raw)
	if err != nil {
		// 旧客户端写入的 cookie 可能带 BOM、外层引号或转义
		p, err = m.codec.Decode(Normalize(cookie.Value))
	}
	if err != nil || !p.valid() {
		return nil
	}
	return p
}

// Destroy 删除会话 cookie
func (m *Manager) Destroy(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Normalize 清理 cookie 值在多次编码后留下的痕迹
func Normalize(raw string) string {
	value := raw
	if decoded, err := url.QueryUnescape(value); err == nil {
		value = decoded
	}
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.TrimSpace(value)
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		value = value[1 : len(value)-1]
	}
	return strings.ReplaceAll(value, `\"`, `"`)
}
