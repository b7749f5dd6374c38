package hook

import (
	"github.com/sirupsen/logrus"
)

// Dispatcher 按注册顺序把事件扇出给观察者。
// 派发是 fire-and-forget：不聚合也不等待观察者的结果。
// 每次调用单独用 recover 包裹，单个观察者的 panic 只被记录并跳过，
// 不会把整个周期拖下水。
type Dispatcher struct {
	observers []Observer
	log       *logrus.Entry
}

// NewDispatcher 创建空的 Dispatcher。
func NewDispatcher(logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		log: logger.WithField("component", "dispatcher"),
	}
}

// Register 注册一个观察者实例。发现式加载是部署问题，不在核心契约内，
// 所以这里只接受显式注册。
func (d *Dispatcher) Register(o Observer) {
	if o == nil {
		return
	}
	d.observers = append(d.observers, o)
	d.log.WithField("observer", o.Name()).Info("Registered observer")
}

// Observers 返回已注册的观察者数量。
func (d *Dispatcher) Observers() int {
	return len(d.observers)
}

func (d *Dispatcher) invoke(observer, event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithFields(logrus.Fields{
				"observer": observer,
				"event":    event,
			}).Errorf("Observer panicked, skipping: %v", r)
		}
	}()
	fn()
}

// RoomOnlined 派发房间出现事件。
func (d *Dispatcher) RoomOnlined(ev RoomEvent) {
	for _, o := range d.observers {
		if h, ok := o.(RoomOnlinedObserver); ok {
			d.invoke(o.Name(), EventRoomOnlined, func() { h.OnRoomOnlined(ev) })
		}
	}
}

// RoomOfflined 派发房间消失事件。
func (d *Dispatcher) RoomOfflined(ev RoomEvent) {
	for _, o := range d.observers {
		if h, ok := o.(RoomOfflinedObserver); ok {
			d.invoke(o.Name(), EventRoomOfflined, func() { h.OnRoomOfflined(ev) })
		}
	}
}

// RoomOption 派发仅备用源可见的房间事件。
func (d *Dispatcher) RoomOption(ev RoomEvent) {
	for _, o := range d.observers {
		if h, ok := o.(RoomOptionObserver); ok {
			d.invoke(o.Name(), EventRoomOption, func() { h.OnRoomOption(ev) })
		}
	}
}

// UserOnlined 派发用户上线事件。
func (d *Dispatcher) UserOnlined(ev UserEvent) {
	for _, o := range d.observers {
		if h, ok := o.(UserOnlinedObserver); ok {
			d.invoke(o.Name(), EventUserOnlined, func() { h.OnUserOnlined(ev) })
		}
	}
}

// UserOfflined 派发用户下线事件。
func (d *Dispatcher) UserOfflined(ev UserEvent) {
	for _, o := range d.observers {
		if h, ok := o.(UserOfflinedObserver); ok {
			d.invoke(o.Name(), EventUserOfflined, func() { h.OnUserOfflined(ev) })
		}
	}
}

// UserChanged 派发用户属性变化事件。
func (d *Dispatcher) UserChanged(ev UserChangedEvent) {
	for _, o := range d.observers {
		if h, ok := o.(UserChangedObserver); ok {
			d.invoke(o.Name(), EventUserChanged, func() { h.OnUserChanged(ev) })
		}
	}
}

// KeywordHit 派发关键词命中事件。
func (d *Dispatcher) KeywordHit(ev KeywordHitEvent) {
	for _, o := range d.observers {
		if h, ok := o.(KeywordHitObserver); ok {
			d.invoke(o.Name(), EventKeywordHit, func() { h.OnKeywordHit(ev) })
		}
	}
}

// NotificationSent 派发通知投递结果事件。
func (d *Dispatcher) NotificationSent(ev NotificationEvent) {
	for _, o := range d.observers {
		if h, ok := o.(NotificationObserver); ok {
			d.invoke(o.Name(), EventNotificationSent, func() { h.OnNotificationSent(ev) })
		}
	}
}

// CycleStats 派发周期统计快照。
func (d *Dispatcher) CycleStats(ev CycleStats) {
	for _, o := range d.observers {
		if h, ok := o.(CycleObserver); ok {
			d.invoke(o.Name(), EventCycleStats, func() { h.OnCycleStats(ev) })
		}
	}
}
