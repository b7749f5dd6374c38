package observer

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/hook"
	"github.com/fflughiraeth/srpusher/internal/hub"
)

// streamMessage 是推送到 WebSocket 订阅者的外层信封。
type streamMessage struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Stream 把事件桥接到 WebSocket Hub，推送给所有在线订阅者。
type Stream struct {
	hub *hub.Hub
	log *logrus.Entry
}

// NewStream 创建事件流观察者。
func NewStream(h *hub.Hub, logger *logrus.Logger) *Stream {
	if h == nil {
		panic("Hub cannot be nil for Stream")
	}
	return &Stream{
		hub: h,
		log: logger.WithField("component", "stream"),
	}
}

// Name 实现 hook.Observer。
func (s *Stream) Name() string { return "stream" }

func (s *Stream) push(event string, payload any) {
	data, err := json.Marshal(streamMessage{Event: event, Payload: payload})
	if err != nil {
		s.log.WithError(err).WithField("event", event).Error("Failed to marshal stream message")
		return
	}
	s.hub.Broadcast(data)
}

func (s *Stream) OnRoomOnlined(ev hook.RoomEvent)  { s.push(hook.EventRoomOnlined, ev) }
func (s *Stream) OnRoomOfflined(ev hook.RoomEvent) { s.push(hook.EventRoomOfflined, ev) }
func (s *Stream) OnRoomOption(ev hook.RoomEvent)   { s.push(hook.EventRoomOption, ev) }
func (s *Stream) OnUserOnlined(ev hook.UserEvent)  { s.push(hook.EventUserOnlined, ev) }
func (s *Stream) OnUserOfflined(ev hook.UserEvent) { s.push(hook.EventUserOfflined, ev) }
func (s *Stream) OnUserChanged(ev hook.UserChangedEvent) {
	s.push(hook.EventUserChanged, ev)
}
func (s *Stream) OnKeywordHit(ev hook.KeywordHitEvent) { s.push(hook.EventKeywordHit, ev) }
func (s *Stream) OnNotificationSent(ev hook.NotificationEvent) {
	s.push(hook.EventNotificationSent, ev)
}
func (s *Stream) OnCycleStats(ev hook.CycleStats) { s.push(hook.EventCycleStats, ev) }
