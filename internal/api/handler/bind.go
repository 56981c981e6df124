package handler

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/internal/pkg/apperr"
	"github.com/qs3c/driveunity_server/internal/pkg/response"
)

var otpCodePattern = regexp.MustCompile(`^\d{6}$`)

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("otpcode", func(fl validator.FieldLevel) bool {
		return otpCodePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register otpcode validator: %v", err))
	}
}

// bindJSON 解析并校验请求体，失败时已写出响应
func bindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string][]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
		}
		response.ValidationError(c, "Validation failed", fields)
		return false
	}

	response.ParamError(c, "Invalid request body")
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "otpcode":
		return "Code must be 6 digits"
	default:
		return "Invalid value"
	}
}

// fail 输出错误响应，未分类的错误记录日志
func fail(c *gin.Context, logger *zap.Logger, err error) {
	if kind := apperr.KindOf(err); kind == apperr.KindInternal || kind == apperr.KindUpstreamProvider {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
	}
	response.FromError(c, err)
}
