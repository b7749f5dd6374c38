package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/notify"
	"github.com/fflughiraeth/srpusher/internal/tasks"
)

// NotificationDeliveryHandler 处理排队的通知投递任务。
type NotificationDeliveryHandler struct {
	sink notify.Sink
}

// NewNotificationDeliveryHandler 创建 Handler 实例。
func NewNotificationDeliveryHandler(sink notify.Sink) *NotificationDeliveryHandler {
	return &NotificationDeliveryHandler{sink: sink}
}

// ProcessTask 实现 asynq.Handler 接口。
func (h *NotificationDeliveryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.NotificationDeliveryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal notification task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"task_type":       t.Type(),
		"notification_id": payload.ID,
	})

	if h.sink == nil {
		// 通道在排队后被禁用；丢弃而不是重试
		logCtx.Warn("Notification sink disabled, dropping queued notification")
		return nil
	}
	if !h.sink.Send(payload.Message, payload.Title) {
		return fmt.Errorf("notification %s was not accepted by sink", payload.ID)
	}
	logCtx.Info("Queued notification delivered")
	return nil
}
