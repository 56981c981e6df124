package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/internal/api/middleware"
	"github.com/qs3c/driveunity_server/internal/model/dto"
	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
	"github.com/qs3c/driveunity_server/internal/pkg/oauth"
	"github.com/qs3c/driveunity_server/internal/pkg/response"
	"github.com/qs3c/driveunity_server/internal/service"
)

// FileHandler 文件元数据浏览与筛选
type FileHandler struct {
	files  *service.FileService
	logger *zap.Logger
}

func NewFileHandler(files *service.FileService, logger *zap.Logger) *FileHandler {
	return &FileHandler{files: files, logger: logger}
}

// Dashboard 文件与文件夹总数
// GET /api/v1/drives/dashboard
func (h *FileHandler) Dashboard(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.files.Dashboard(userID)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	response.Success(c, resp)
}

// List GET /api/v1/drives/:provider/:id/files
func (h *FileHandler) List(c *gin.Context) {
	userID, provider, ok := h.target(c)
	if !ok {
		return
	}
	h.reply(c)(h.files.List(userID, provider, c.Param("id")))
}

// MimeTypes GET /api/v1/drives/:provider/:id/filters/mimetypes
func (h *FileHandler) MimeTypes(c *gin.Context) {
	userID, provider, ok := h.target(c)
	if !ok {
		return
	}
	h.reply(c)(h.files.MimeTypes(userID, provider, c.Param("id")))
}

// FilterBySize POST /api/v1/drives/:provider/:id/filters/size
func (h *FileHandler) FilterBySize(c *gin.Context) {
	userID, provider, ok := h.target(c)
	if !ok {
		return
	}
	var req dto.SizeFilterRequest
	if !bindJSON(c, &req) {
		return
	}
	h.reply(c)(h.files.FilterBySize(userID, provider, c.Param("id"), &req))
}

// DateBounds GET /api/v1/drives/:provider/:id/filters/date-range
func (h *FileHandler) DateBounds(c *gin.Context) {
	userID, provider, ok := h.target(c)
	if !ok {
		return
	}
	h.reply(c)(h.files.DateBounds(userID, provider, c.Param("id")))
}

// FilterByDate POST /api/v1/drives/:provider/:id/filters/date-range
func (h *FileHandler) FilterByDate(c *gin.Context) {
	userID, provider, ok := h.target(c)
	if !ok {
		return
	}
	var req dto.DateFilterRequest
	if !bindJSON(c, &req) {
		return
	}
	h.reply(c)(h.files.FilterByDate(userID, provider, c.Param("id"), &req))
}

// Search POST /api/v1/drives/:provider/:id/filters/search
func (h *FileHandler) Search(c *gin.Context) {
	userID, provider, ok := h.target(c)
	if !ok {
		return
	}
	var req dto.SearchRequest
	if !bindJSON(c, &req) {
		return
	}
	h.reply(c)(h.files.Search(userID, provider, c.Param("id"), &req))
}

// Duplicates GET /api/v1/drives/:provider/:id/filters/duplicates
func (h *FileHandler) Duplicates(c *gin.Context) {
	userID, provider, ok := h.target(c)
	if !ok {
		return
	}
	h.reply(c)(h.files.Duplicates(userID, provider, c.Param("id")))
}

func (h *FileHandler) target(c *gin.Context) (string, oauth.Provider, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return "", "", false
	}
	provider, err := oauth.ParseProvider(c.Param("provider"))
	if err != nil {
		response.FromError(c, apperr.NotFound("Provider"))
		return "", "", false
	}
	return userID, provider, true
}

// reply 写出 service 的返回值
func (h *FileHandler) reply(c *gin.Context) func(interface{}, error) {
	return func(data interface{}, err error) {
		if err != nil {
			fail(c, h.logger, err)
			return
		}
		response.Success(c, data)
	}
}
