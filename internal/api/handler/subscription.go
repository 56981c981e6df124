package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/internal/api/middleware"
	"github.com/qs3c/driveunity_server/internal/pkg/response"
	"github.com/qs3c/driveunity_server/internal/service"
)

type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
	quota         *service.QuotaService
	logger        *zap.Logger
}

func NewSubscriptionHandler(subscriptions *service.SubscriptionService, quota *service.QuotaService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		quota:         quota,
		logger:        logger,
	}
}

// Get 当前订阅，首次访问时绑定免费套餐
// GET /api/v1/subscription
func (h *SubscriptionHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	usage, err := h.quota.DriveUsage(userID)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	resp, err := h.subscriptions.GetSubscription(userID, usage)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	response.Success(c, resp)
}

// Plans 套餐列表
// GET /api/v1/plans
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	plans, err := h.subscriptions.ListPlans()
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	response.Success(c, plans)
}
