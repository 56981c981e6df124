package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/driveunity_server/internal/model/dto"
	"github.com/qs3c/driveunity_server/internal/pkg/response"
	"github.com/qs3c/driveunity_server/internal/pkg/webhook"
)

// maxWebhookBody 回调请求体上限
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	policy webhook.Policy
	logger *zap.Logger
}

func NewWebhookHandler(policy webhook.Policy, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{policy: policy, logger: logger}
}

// Paddle 校验签名后确认收到支付事件
// POST /api/v1/webhooks/paddle
func (h *WebhookHandler) Paddle(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.ParamError(c, "Unable to read request body")
		return
	}

	header := c.GetHeader("paddle-signature")
	if header == "" {
		header = c.GetHeader("provider-signature")
	}

	outcome, err := h.policy.Check(body, header)
	if err != nil {
		h.logger.Warn("webhook signature rejected", zap.Error(err))
		response.AuthError(c, "Invalid signature")
		return
	}
	if outcome == webhook.Skipped {
		h.logger.Warn("webhook accepted without signature verification",
			zap.Bool("has_header", header != ""),
			zap.Bool("has_secret", h.policy.Secret != ""),
		)
	}

	var payload struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		response.ParamError(c, "Invalid JSON payload")
		return
	}

	h.logger.Info("webhook received", zap.String("event", payload.EventType))
	c.JSON(http.StatusOK, dto.WebhookAck{Status: "success", Event: payload.EventType})
}
