package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误分类，决定对外的 HTTP 状态码
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindRateLimited
	KindNotFound
	KindConflict
	KindUpstreamProvider
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindUpstreamProvider:
		return "UPSTREAM_PROVIDER_ERROR"
	case KindConfiguration:
		return "CONFIGURATION_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// Error 带分类的业务错误
type Error struct {
	Kind    Kind
	Code    string              // 机器可读的错误码，如 INVALID_OTP
	Message string              // 可以直接返回给前端的信息
	Fields  map[string][]string // 字段级校验错误
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func Validation(message string, fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Code: KindValidation.String(), Message: message, Fields: fields}
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, KindUnauthorized.String(), message)
}

func NotFound(resource string) *Error {
	return New(KindNotFound, KindNotFound.String(), resource+" not found")
}

func Conflict(message string) *Error {
	return New(KindConflict, KindConflict.String(), message)
}

func Upstream(provider string, err error) *Error {
	return Wrap(KindUpstreamProvider, KindUpstreamProvider.String(), provider+" request failed", err)
}

// Configuration 缺少必需的配置项
func Configuration(key string) *Error {
	return New(KindConfiguration, KindConfiguration.String(), key+" is not configured")
}

// KindOf 沿错误链查找分类，未分类的错误视为内部错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As 取出错误链上的 *Error
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
