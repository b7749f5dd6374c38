package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
)

// 任务类型常量
const (
	TypeNotificationDelivery = "notification:deliver" // 离线通知投递任务
)

// NotificationDeliveryPayload 是通知投递任务的数据。
type NotificationDeliveryPayload struct {
	ID      string `json:"id"` // 任务 id，用于日志关联
	Title   string `json:"title"`
	Message string `json:"message"`
}

// NewNotificationDeliveryTask 序列化一个通知投递任务的 payload。
func NewNotificationDeliveryTask(message, title string) ([]byte, error) {
	payload := NotificationDeliveryPayload{
		ID:      uuid.NewString(),
		Title:   title,
		Message: message,
	}
	return json.Marshal(payload)
}
