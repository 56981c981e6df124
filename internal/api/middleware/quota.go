package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/driveunity_server/internal/pkg/response"
	"github.com/qs3c/driveunity_server/internal/service"
)

// DriveQuotaCheck 发起连接前检查云盘数量是否已达套餐上限
func DriveQuotaCheck(quotaService *service.QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		if _, err := quotaService.CheckDriveQuota(userID); err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}

		c.Next()
	}
}
