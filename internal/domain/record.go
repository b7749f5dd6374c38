package domain

import "time"

// TransitionRecord 是被持久化的一条状态迁移事件 (历史观察者写入 MySQL)。
type TransitionRecord struct {
	ID        uint      `gorm:"primaryKey"`
	CycleID   string    `gorm:"type:varchar(36);index;not null"` // 本次轮询周期的 id
	Event     string    `gorm:"type:varchar(32);index;not null"` // 事件名 (user_onlined 等)
	EntityID  string    `gorm:"type:varchar(191);index"`         // userId 或 roomId
	RoomID    string    `gorm:"type:varchar(64)"`                // 关联房间 (可为空)
	Payload   string    `gorm:"type:text"`                       // 事件负载的 JSON
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}
