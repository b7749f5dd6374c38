package observer

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/hook"
)

// NatsPublisher 把所有事件以 JSON 形式发布到 NATS，供外部系统订阅。
// 主题格式: <prefix>.events.<event_name>。
type NatsPublisher struct {
	conn   *nats.Conn
	prefix string
	log    *logrus.Entry
}

// NewNatsPublisher 连接到 NATS 服务端并创建发布观察者。
func NewNatsPublisher(url, prefix string, logger *logrus.Logger) (*NatsPublisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("component", "nats").Info("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("observer: connect nats %s: %w", url, err)
	}
	if prefix == "" {
		prefix = "srpusher"
	}
	return &NatsPublisher{
		conn:   conn,
		prefix: prefix,
		log:    logger.WithField("component", "nats"),
	}, nil
}

// Name 实现 hook.Observer。
func (p *NatsPublisher) Name() string { return "nats" }

// Close 断开 NATS 连接。
func (p *NatsPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

func (p *NatsPublisher) publish(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.WithError(err).WithField("event", event).Error("Failed to marshal event")
		return
	}
	subject := fmt.Sprintf("%s.events.%s", p.prefix, event)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.WithError(err).WithField("subject", subject).Error("Failed to publish event")
	}
}

func (p *NatsPublisher) OnRoomOnlined(ev hook.RoomEvent)  { p.publish(hook.EventRoomOnlined, ev) }
func (p *NatsPublisher) OnRoomOfflined(ev hook.RoomEvent) { p.publish(hook.EventRoomOfflined, ev) }
func (p *NatsPublisher) OnRoomOption(ev hook.RoomEvent)   { p.publish(hook.EventRoomOption, ev) }
func (p *NatsPublisher) OnUserOnlined(ev hook.UserEvent)  { p.publish(hook.EventUserOnlined, ev) }
func (p *NatsPublisher) OnUserOfflined(ev hook.UserEvent) { p.publish(hook.EventUserOfflined, ev) }
func (p *NatsPublisher) OnUserChanged(ev hook.UserChangedEvent) {
	p.publish(hook.EventUserChanged, ev)
}
func (p *NatsPublisher) OnKeywordHit(ev hook.KeywordHitEvent) { p.publish(hook.EventKeywordHit, ev) }
func (p *NatsPublisher) OnNotificationSent(ev hook.NotificationEvent) {
	p.publish(hook.EventNotificationSent, ev)
}
func (p *NatsPublisher) OnCycleStats(ev hook.CycleStats) { p.publish(hook.EventCycleStats, ev) }
