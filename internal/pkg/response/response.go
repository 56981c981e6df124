package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
)

// 错误码定义
const (
	CodeSuccess          = 0
	CodeParamError       = 1000
	CodeAuthFailed       = 1001
	CodePermissionDenied = 1002
	CodeResourceNotFound = 1003
	CodeQuotaExceeded    = 1004
	CodeDuplicateAction  = 1005
	CodeRateLimited      = 1006
	CodeInvalidOTP       = 1007
	CodeServerError      = 5000
	CodeConfigError      = 5001
	CodeUpstreamError    = 5002
)

// 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:          "success",
	CodeParamError:       "参数错误",
	CodeAuthFailed:       "认证失败",
	CodePermissionDenied: "权限不足",
	CodeResourceNotFound: "资源不存在",
	CodeQuotaExceeded:    "配额不足",
	CodeDuplicateAction:  "重复操作",
	CodeRateLimited:      "请求过于频繁",
	CodeInvalidOTP:       "验证码无效",
	CodeServerError:      "服务器内部错误",
	CodeConfigError:      "服务配置缺失",
	CodeUpstreamError:    "第三方服务异常",
}

// 错误码对应的 HTTP 状态码
var codeStatus = map[int]int{
	CodeParamError:       http.StatusUnprocessableEntity,
	CodeAuthFailed:       http.StatusUnauthorized,
	CodePermissionDenied: http.StatusForbidden,
	CodeResourceNotFound: http.StatusNotFound,
	CodeQuotaExceeded:    http.StatusForbidden,
	CodeDuplicateAction:  http.StatusConflict,
	CodeRateLimited:      http.StatusTooManyRequests,
	CodeInvalidOTP:       http.StatusUnauthorized,
	CodeServerError:      http.StatusInternalServerError,
	CodeConfigError:      http.StatusInternalServerError,
	CodeUpstreamError:    http.StatusBadGateway,
}

// Response 统一响应结构
type Response struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    interface{}         `json:"data"`
	Error   string              `json:"error,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应，HTTP 状态码由错误码决定
func Error(c *gin.Context, code int, message string) {
	write(c, code, message, "", nil)
}

func write(c *gin.Context, code int, message, errCode string, fields map[string][]string) {
	if message == "" {
		message = codeMessages[code]
	}
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusOK
	}
	c.JSON(status, Response{
		Code:    code,
		Message: message,
		Data:    nil,
		Error:   errCode,
		Fields:  fields,
	})
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// ValidationError 字段级校验错误
func ValidationError(c *gin.Context, message string, fields map[string][]string) {
	write(c, CodeParamError, message, apperr.KindValidation.String(), fields)
}

// AuthError 认证失败
func AuthError(c *gin.Context, message string) {
	Error(c, CodeAuthFailed, message)
}

// PermissionError 权限不足
func PermissionError(c *gin.Context, message string) {
	Error(c, CodePermissionDenied, message)
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, message string) {
	Error(c, CodeResourceNotFound, message)
}

// QuotaError 配额不足
func QuotaError(c *gin.Context, message string) {
	Error(c, CodeQuotaExceeded, message)
}

// DuplicateError 重复操作
func DuplicateError(c *gin.Context, message string) {
	Error(c, CodeDuplicateAction, message)
}

// RateLimitError 触发限流
func RateLimitError(c *gin.Context, message string) {
	write(c, CodeRateLimited, message, apperr.KindRateLimited.String(), nil)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

// FromError 按错误分类输出响应，未分类的错误不暴露细节
func FromError(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		ServerError(c, "")
		return
	}

	switch e.Kind {
	case apperr.KindValidation:
		write(c, CodeParamError, e.Message, e.Code, e.Fields)
	case apperr.KindUnauthorized:
		if e.Code == "INVALID_OTP" {
			write(c, CodeInvalidOTP, e.Message, e.Code, nil)
			return
		}
		write(c, CodeAuthFailed, e.Message, e.Code, nil)
	case apperr.KindRateLimited:
		write(c, CodeRateLimited, e.Message, e.Code, nil)
	case apperr.KindNotFound:
		write(c, CodeResourceNotFound, e.Message, e.Code, nil)
	case apperr.KindConflict:
		if e.Code == "DRIVE_LIMIT_REACHED" {
			write(c, CodeQuotaExceeded, e.Message, e.Code, nil)
			return
		}
		write(c, CodeDuplicateAction, e.Message, e.Code, nil)
	case apperr.KindUpstreamProvider:
		write(c, CodeUpstreamError, "", e.Code, nil)
	case apperr.KindConfiguration:
		write(c, CodeConfigError, "", e.Code, nil)
	default:
		write(c, CodeServerError, "", e.Code, nil)
	}
}
