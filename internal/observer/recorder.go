package observer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/domain"
	"github.com/fflughiraeth/srpusher/internal/hook"
	"github.com/fflughiraeth/srpusher/internal/repository"
)

// Recorder 把状态迁移事件持久化到 MySQL (可选组件，配置了数据库才启用)。
type Recorder struct {
	history repository.HistoryRepository
	log     *logrus.Entry
}

// NewRecorder 创建历史记录观察者。
func NewRecorder(history repository.HistoryRepository, logger *logrus.Logger) *Recorder {
	if history == nil {
		panic("HistoryRepository cannot be nil for Recorder")
	}
	return &Recorder{
		history: history,
		log:     logger.WithField("component", "recorder"),
	}
}

// Name 实现 hook.Observer。
func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) save(cycleID, event, entityID, roomID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.log.WithError(err).WithField("event", event).Error("Failed to marshal event payload")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record := &domain.TransitionRecord{
		CycleID:  cycleID,
		Event:    event,
		EntityID: entityID,
		RoomID:   roomID,
		Payload:  string(data),
	}
	if err := r.history.SaveRecord(ctx, record); err != nil {
		r.log.WithError(err).WithField("event", event).Error("Failed to persist transition record")
	}
}

// OnRoomOnlined 记录房间出现。
func (r *Recorder) OnRoomOnlined(ev hook.RoomEvent) {
	r.save(ev.CycleID, hook.EventRoomOnlined, ev.RoomID, ev.RoomID, ev.Room)
}

// OnRoomOfflined 记录房间消失。
func (r *Recorder) OnRoomOfflined(ev hook.RoomEvent) {
	r.save(ev.CycleID, hook.EventRoomOfflined, ev.RoomID, ev.RoomID, ev.Room)
}

// OnRoomOption 记录备用源房间。
func (r *Recorder) OnRoomOption(ev hook.RoomEvent) {
	r.save(ev.CycleID, hook.EventRoomOption, ev.RoomID, ev.RoomID, ev.Room)
}

// OnUserOnlined 记录用户上线。
func (r *Recorder) OnUserOnlined(ev hook.UserEvent) {
	r.save(ev.CycleID, hook.EventUserOnlined, ev.User.Key(), ev.RoomID, ev.User)
}

// OnUserOfflined 记录用户下线。
func (r *Recorder) OnUserOfflined(ev hook.UserEvent) {
	r.save(ev.CycleID, hook.EventUserOfflined, ev.User.Key(), ev.RoomID, ev.User)
}

// OnUserChanged 记录用户属性变化 (负载里是前后两份记录)。
func (r *Recorder) OnUserChanged(ev hook.UserChangedEvent) {
	payload := map[string]*domain.Member{"user": ev.User, "previous": ev.Previous}
	r.save(ev.CycleID, hook.EventUserChanged, ev.User.Key(), ev.User.RoomID, payload)
}

// OnNotificationSent 记录通知投递结果。
func (r *Recorder) OnNotificationSent(ev hook.NotificationEvent) {
	r.save(ev.CycleID, hook.EventNotificationSent, ev.RoomID, ev.RoomID, ev)
}
