// Package hook 实现命名事件的广播注册表。
// diff 引擎和控制器发出类型化事件，零个或多个已注册的观察者消费它们。
package hook

import (
	"time"

	"github.com/fflughiraeth/srpusher/internal/domain"
)

// 事件名。观察者实现固定契约的任意子集。
const (
	EventRoomOnlined      = "room_onlined"
	EventRoomOfflined     = "room_offlined"
	EventRoomOption       = "room_option"
	EventUserOnlined      = "user_onlined"
	EventUserOfflined     = "user_offlined"
	EventUserChanged      = "user_changed"
	EventKeywordHit       = "keyword_hit"
	EventNotificationSent = "notification_sent"
	EventCycleStats       = "cycle_stats"
)

// RoomEvent 是房间出现/消失/备用源可见事件的负载。
// Room 是最后一次观测时的缓存值，可能是空对象。
type RoomEvent struct {
	CycleID string
	RoomID  string
	Room    *domain.Room
}

// UserEvent 是用户上线/下线事件的负载，携带其所在房间。
type UserEvent struct {
	CycleID string
	User    *domain.Member
	RoomID  string
	Room    *domain.Room
}

// UserChangedEvent 携带变化前后的用户记录。
type UserChangedEvent struct {
	CycleID  string
	User     *domain.Member
	Previous *domain.Member
}

// KeywordHitEvent 携带命中的消息列表。
type KeywordHitEvent struct {
	CycleID  string
	Messages []string
}

// NotificationEvent 在通知投递尝试之后发出 (Sent=false 表示 sink 关闭或拒绝)。
type NotificationEvent struct {
	CycleID string
	Title   string
	Message string
	RoomID  string
	Sent    bool
}

// CycleStats 是每个周期末尾的计数/量表快照。
type CycleStats struct {
	CycleID       string
	Rooms         int
	Members       int
	OnlinedUsers  int
	OfflinedUsers int
	OnlinedRooms  int
	OfflinedRooms int
	OptionRooms   int
	Notifications int
	WaitSec       float64
	JitterSec     float64
	RawWaitSec    float64
	FinishedAt    time.Time
}

// Observer 是所有观察者的标记接口；能力通过下面的子接口声明。
type Observer interface {
	Name() string
}

// 每个事件一个能力接口，观察者实现它关心的子集。
type (
	RoomOnlinedObserver interface {
		OnRoomOnlined(ev RoomEvent)
	}
	RoomOfflinedObserver interface {
		OnRoomOfflined(ev RoomEvent)
	}
	RoomOptionObserver interface {
		OnRoomOption(ev RoomEvent)
	}
	UserOnlinedObserver interface {
		OnUserOnlined(ev UserEvent)
	}
	UserOfflinedObserver interface {
		OnUserOfflined(ev UserEvent)
	}
	UserChangedObserver interface {
		OnUserChanged(ev UserChangedEvent)
	}
	KeywordHitObserver interface {
		OnKeywordHit(ev KeywordHitEvent)
	}
	NotificationObserver interface {
		OnNotificationSent(ev NotificationEvent)
	}
	CycleObserver interface {
		OnCycleStats(ev CycleStats)
	}
)
