package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/driveunity_server/internal/pkg/response"
	"github.com/qs3c/driveunity_server/internal/pkg/session"
)

const (
	UserIDKey    = "userID"
	PrincipalKey = "principal"
)

// Session 会话认证中间件，cookie 缺失或无法解析时返回 401
func Session(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := mgr.Read(c)
		if p == nil {
			response.AuthError(c, "Authentication required")
			c.Abort()
			return
		}

		setPrincipal(c, p)
		c.Next()
	}
}

// OptionalSession 可选认证中间件（不强制要求登录）
func OptionalSession(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p := mgr.Read(c); p != nil {
			setPrincipal(c, p)
		}
		c.Next()
	}
}

func setPrincipal(c *gin.Context, p *session.Principal) {
	c.Set(UserIDKey, p.ID)
	c.Set(PrincipalKey, p)
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok && id != ""
}

// GetPrincipal 从上下文获取当前会话
func GetPrincipal(c *gin.Context) (*session.Principal, bool) {
	v, exists := c.Get(PrincipalKey)
	if !exists {
		return nil, false
	}
	p, ok := v.(*session.Principal)
	return p, ok
}
