package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/config"
	"github.com/qs3c/driveunity_server/internal/model/dto"
	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
	"github.com/qs3c/driveunity_server/internal/pkg/response"
	"github.com/qs3c/driveunity_server/internal/pkg/session"
	"github.com/qs3c/driveunity_server/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	sessions    *session.Manager
	sessionCfg  config.SessionConfig
	logger      *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, sessions *session.Manager, sessionCfg config.SessionConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		sessionCfg:  sessionCfg,
		logger:      logger,
	}
}

// SendOTP 发送登录验证码，新用户需要填写姓名
// POST /api/v1/auth/send-otp
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req dto.SendOTPRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.SendOTP(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	response.SuccessWithMessage(c, "Verification code sent to your email", resp)
}

// VerifyOTP 校验验证码并建立会话
// POST /api/v1/auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if !bindJSON(c, &req) {
		return
	}

	principal, err := h.authService.VerifyOTP(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	if !h.issue(c, principal, h.sessionCfg.MaxAge()) {
		return
	}
	response.SuccessWithMessage(c, "Signed in successfully", toUserInfo(principal))
}

// CheckEmail 邮箱是否已注册
// POST /api/v1/auth/check-email
func (h *AuthHandler) CheckEmail(c *gin.Context) {
	var req dto.CheckEmailRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.CheckEmail(req.Email)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	response.Success(c, resp)
}

// Session 当前会话，用户已不存在时清除 cookie
// GET /api/v1/auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	p := h.sessions.Read(c)
	if p == nil {
		h.unauthenticated(c)
		return
	}

	principal, err := h.authService.CreateSession(c.Request.Context(), p.ID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			h.sessions.Destroy(c)
			h.unauthenticated(c)
			return
		}
		fail(c, h.logger, err)
		return
	}

	response.Success(c, dto.SessionResponse{Authenticated: true, User: toUserInfo(principal)})
}

// Logout 退出登录
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.sessions.Destroy(c)
	response.SuccessWithMessage(c, "Logged out successfully", nil)
}

// LogoutRedirect 浏览器直接访问时退出并回到首页
// GET /api/v1/auth/logout
func (h *AuthHandler) LogoutRedirect(c *gin.Context) {
	h.sessions.Destroy(c)
	c.Redirect(http.StatusFound, "/")
}

// Signup 密码注册
// POST /api/v1/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	principal, err := h.authService.Signup(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	if !h.issue(c, principal, h.sessionCfg.AdminMaxAge()) {
		return
	}
	response.SuccessWithMessage(c, "Account created successfully", toUserInfo(principal))
}

// Signin 密码登录
// POST /api/v1/auth/signin
func (h *AuthHandler) Signin(c *gin.Context) {
	var req dto.SigninRequest
	if !bindJSON(c, &req) {
		return
	}

	principal, err := h.authService.Signin(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	if !h.issue(c, principal, h.sessionCfg.AdminMaxAge()) {
		return
	}
	response.SuccessWithMessage(c, "Signed in successfully", toUserInfo(principal))
}

func (h *AuthHandler) issue(c *gin.Context, p *session.Principal, maxAge time.Duration) bool {
	if err := h.sessions.Issue(c, *p, maxAge); err != nil {
		h.logger.Error("failed to issue session", zap.String("user_id", p.ID), zap.Error(err))
		response.ServerError(c, "")
		return false
	}
	return true
}

func (h *AuthHandler) unauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, response.Response{
		Code:    response.CodeAuthFailed,
		Message: "Not authenticated",
		Data:    dto.SessionResponse{Authenticated: false},
	})
}

func toUserInfo(p *session.Principal) *dto.UserInfo {
	return &dto.UserInfo{ID: p.ID, Name: p.Name, Email: p.Email}
}
