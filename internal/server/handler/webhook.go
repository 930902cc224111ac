package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"shipyard/internal/common"
	"shipyard/pkg/api"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const timestampMaxAge = 300 * time.Second

// Sign computes the X-Webhook-Signature for a body sent at timestamp.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Webhook 校验签名后为应用创建流水线，auto_start 时直接开始执行
func (h *Handler) Webhook(c *gin.Context) {
	if h.webhookSecret == "" {
		common.Error(c, common.NewErrNof(common.WEBHOOK_INVALID, "webhook disabled"))
		return
	}

	timestampStr := c.GetHeader("X-Webhook-Timestamp")
	signature := c.GetHeader("X-Webhook-Signature")
	if timestampStr == "" || signature == "" {
		common.Error(c, common.NewErrNof(common.WEBHOOK_INVALID, "missing signature headers"))
		return
	}

	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		common.Error(c, common.NewErrNof(common.WEBHOOK_INVALID, "bad timestamp"))
		return
	}
	age := time.Since(time.Unix(timestamp, 0))
	if age > timestampMaxAge || age < -timestampMaxAge {
		common.Error(c, common.NewErrNof(common.WEBHOOK_INVALID, "stale timestamp"))
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		common.Error(c, common.NewErrNo(common.REQUEST_INVALID))
		return
	}
	expected := Sign(h.webhookSecret, timestampStr, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		common.Error(c, common.NewErrNof(common.WEBHOOK_INVALID, "signature mismatch"))
		return
	}

	var payload api.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Application == "" {
		common.Error(c, common.NewErrNof(common.REQUEST_INVALID, "application is required"))
		return
	}

	app, err := h.apps.GetApplicationByName(c, payload.Application)
	if err != nil {
		if common.IsErrNo(err, common.APPLICATION_NOT_EXISTS) {
			common.Error(c, common.NewErrNof(common.UNKNOWN_APPLICATION, "%s", payload.Application))
			return
		}
		common.Error(c, err)
		return
	}

	triggeredBy := payload.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "webhook"
	}
	pipeline, err := h.orchestrator.CreatePipeline(c, app.ID, payload.Environment, triggeredBy)
	if err != nil {
		common.Error(c, err)
		return
	}
	h.logger.Info("pipeline created by webhook", zap.String("pipeline_id", pipeline.ID), zap.String("application", app.Name))

	if !payload.AutoStart {
		common.Success(c, pipeline)
		return
	}
	started, err := h.orchestrator.StartPipeline(c, pipeline.ID)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Accepted(c, started)
}
