package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/notify"
	"github.com/fflughiraeth/srpusher/internal/tasks"
)

// WorkerServer 封装了 Asynq Worker Server 的启动和关闭逻辑。
// 只在队列投递模式下运行，负责把排队的通知递给真正的通道。
type WorkerServer struct {
	server *asynq.Server
	sink   notify.Sink
	log    *logrus.Entry
}

// NewWorkerServer 创建 WorkerServer 实例。sink 是最终投递通道 (Telegram)。
func NewWorkerServer(redisOpt asynq.RedisClientOpt, sink notify.Sink, logger *logrus.Logger) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 2, // 投递通知不需要并发压榨
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	return &WorkerServer{
		server: server,
		sink:   sink,
		log:    logEntry,
	}
}

// Start 在后台启动 Worker Server。
func (ws *WorkerServer) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeNotificationDelivery, NewNotificationDeliveryHandler(ws.sink).ProcessTask)

	ws.log.Info("Worker server starting...")
	if err := ws.server.Start(mux); err != nil {
		return fmt.Errorf("worker: start server: %w", err)
	}
	return nil
}

// Shutdown 优雅地关闭 Worker Server。
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
