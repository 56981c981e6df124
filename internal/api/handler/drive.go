package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/internal/api/middleware"
	"github.com/qs3c/driveunity_server/internal/model/dto"
	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
	"github.com/qs3c/driveunity_server/internal/pkg/oauth"
	"github.com/qs3c/driveunity_server/internal/pkg/response"
	"github.com/qs3c/driveunity_server/internal/service"
)

// 回调重定向参数
const (
	callbackConnected   = "connected"
	callbackReconnected = "reconnected"
	callbackNoCode      = "no_code"
	callbackDenied      = "access_denied"
)

type DriveHandler struct {
	connections *service.ConnectionService
	appURL      string
	logger      *zap.Logger
}

func NewDriveHandler(connections *service.ConnectionService, appURL string, logger *zap.Logger) *DriveHandler {
	return &DriveHandler{
		connections: connections,
		appURL:      strings.TrimRight(appURL, "/"),
		logger:      logger,
	}
}

// Auth 获取授权地址
// GET /api/v1/drives/:provider/auth
func (h *DriveHandler) Auth(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	provider, ok := h.provider(c)
	if !ok {
		return
	}

	authURL, err := h.connections.BeginConnect(c.Request.Context(), userID, provider)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	response.Success(c, dto.AuthURLResponse{Provider: string(provider), AuthURL: authURL})
}

// Callback 平台授权回调，结果通过重定向带回前端
// GET /api/v1/drives/:provider/callback
// GET /api/v1/oauth/:provider/callback
func (h *DriveHandler) Callback(c *gin.Context) {
	provider, err := oauth.ParseProvider(c.Param("provider"))
	if err != nil {
		h.redirect(c, "error", service.CallbackConnectionFailed)
		return
	}

	if reason := c.Query("error"); reason != "" {
		h.logger.Warn("oauth callback returned error",
			zap.String("provider", string(provider)),
			zap.String("error", reason),
			zap.String("description", c.Query("error_description")),
		)
		if reason == callbackDenied {
			h.redirect(c, "error", callbackDenied)
			return
		}
		h.redirect(c, "error", service.CallbackConnectionFailed)
		return
	}

	code := c.Query("code")
	if code == "" {
		h.redirect(c, "error", callbackNoCode)
		return
	}
	state := c.Query("state")
	if state == "" {
		h.redirect(c, "error", service.CallbackInvalidState)
		return
	}

	sessionUserID, _ := middleware.GetUserID(c)
	result, err := h.connections.CompleteConnect(c.Request.Context(), provider, sessionUserID, code, state)
	if err != nil {
		errCode := service.CallbackErrorCode(err)
		h.logger.Warn("drive connection failed",
			zap.String("provider", string(provider)),
			zap.String("code", errCode),
			zap.Error(err),
		)
		h.redirect(c, "error", errCode)
		return
	}

	if result.Reconnected {
		h.redirect(c, "success", callbackReconnected)
		return
	}
	h.redirect(c, "success", callbackConnected)
}

// List 已连接的云盘及套餐用量
// GET /api/v1/drives
func (h *DriveHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.connections.List(userID)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	response.Success(c, resp)
}

// Status 各平台连接状态
// GET /api/v1/drives/status
func (h *DriveHandler) Status(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.connections.Status(userID)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	response.Success(c, resp)
}

// Info 实时云盘空间
// GET /api/v1/drives/:provider/:id/info
func (h *DriveHandler) Info(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	provider, ok := h.provider(c)
	if !ok {
		return
	}

	resp, err := h.connections.DriveInfo(c.Request.Context(), userID, provider, c.Param("id"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	response.Success(c, resp)
}

// Sync 手动触发元数据同步
// POST /api/v1/drives/:provider/:id/sync
func (h *DriveHandler) Sync(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	provider, ok := h.provider(c)
	if !ok {
		return
	}

	resp, err := h.connections.TriggerSync(c.Request.Context(), userID, provider, c.Param("id"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	response.Success(c, resp)
}

// Delete 断开云盘
// DELETE /api/v1/drives/:provider/:id
func (h *DriveHandler) Delete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	provider, ok := h.provider(c)
	if !ok {
		return
	}

	if err := h.connections.Disconnect(userID, provider, c.Param("id")); err != nil {
		fail(c, h.logger, err)
		return
	}

	response.SuccessWithMessage(c, "Drive disconnected successfully", nil)
}

func (h *DriveHandler) provider(c *gin.Context) (oauth.Provider, bool) {
	provider, err := oauth.ParseProvider(c.Param("provider"))
	if err != nil {
		response.FromError(c, apperr.NotFound("Provider"))
		return "", false
	}
	return provider, true
}

func (h *DriveHandler) redirect(c *gin.Context, key, value string) {
	q := url.Values{}
	q.Set(key, value)
	c.Redirect(http.StatusFound, h.appURL+"/connections?"+q.Encode())
}
