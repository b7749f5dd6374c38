package notify

import (
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/tasks"
)

// QueuedSink 把通知丢进 Redis 队列，由 worker 在带外投递。
// Send 本身仍然同步应答：入队成功即视为接受。
type QueuedSink struct {
	client *asynq.Client
	log    *logrus.Entry
}

// NewQueuedSink 创建队列通道。
func NewQueuedSink(client *asynq.Client, logger *logrus.Logger) *QueuedSink {
	if client == nil {
		panic("asynq client cannot be nil for QueuedSink")
	}
	return &QueuedSink{
		client: client,
		log:    logger.WithField("component", "queued_sink"),
	}
}

// Send 入队一条通知投递任务。
func (s *QueuedSink) Send(message, title string) bool {
	if message == "" {
		return false
	}
	payload, err := tasks.NewNotificationDeliveryTask(message, title)
	if err != nil {
		s.log.WithError(err).Error("Failed to build notification task payload")
		return false
	}
	task := asynq.NewTask(tasks.TypeNotificationDelivery, payload)
	info, err := s.client.Enqueue(task,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		s.log.WithError(err).Error("Failed to enqueue notification task")
		return false
	}
	s.log.WithField("task_id", info.ID).Debug("Notification task enqueued")
	return true
}
