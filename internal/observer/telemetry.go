package observer

import (
	"sync"
	"time"

	"github.com/fflughiraeth/srpusher/internal/hook"
)

// StatusSnapshot 是状态 API 对外暴露的计数/量表快照。
type StatusSnapshot struct {
	CycleID            string    `json:"cycle_id"`
	Cycles             uint64    `json:"cycles"`
	Rooms              int       `json:"rooms"`
	Members            int       `json:"members"`
	LastWaitSec        float64   `json:"last_wait_sec"`
	LastRawWaitSec     float64   `json:"last_raw_wait_sec"`
	TotalOnlinedUsers  uint64    `json:"total_onlined_users"`
	TotalOfflinedUsers uint64    `json:"total_offlined_users"`
	TotalOnlinedRooms  uint64    `json:"total_onlined_rooms"`
	TotalOfflinedRooms uint64    `json:"total_offlined_rooms"`
	TotalKeywordHits   uint64    `json:"total_keyword_hits"`
	TotalNotifications uint64    `json:"total_notifications"`
	TotalSent          uint64    `json:"total_sent"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Telemetry 累积事件计数并保存最近一个周期的量表。
// 状态 API 从其他 goroutine 读它，所以这里需要锁 —— 这是观察者自己的
// 并发问题，核心循环仍然是单线程的。
type Telemetry struct {
	mu   sync.RWMutex
	snap StatusSnapshot
}

// NewTelemetry 创建遥测观察者。
func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

// Name 实现 hook.Observer。
func (t *Telemetry) Name() string { return "telemetry" }

// Snapshot 返回当前快照的副本。
func (t *Telemetry) Snapshot() StatusSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// OnUserOnlined 计数。
func (t *Telemetry) OnUserOnlined(ev hook.UserEvent) {
	t.mu.Lock()
	t.snap.TotalOnlinedUsers++
	t.mu.Unlock()
}

// OnUserOfflined 计数。
func (t *Telemetry) OnUserOfflined(ev hook.UserEvent) {
	t.mu.Lock()
	t.snap.TotalOfflinedUsers++
	t.mu.Unlock()
}

// OnRoomOnlined 计数。
func (t *Telemetry) OnRoomOnlined(ev hook.RoomEvent) {
	t.mu.Lock()
	t.snap.TotalOnlinedRooms++
	t.mu.Unlock()
}

// OnRoomOfflined 计数。
func (t *Telemetry) OnRoomOfflined(ev hook.RoomEvent) {
	t.mu.Lock()
	t.snap.TotalOfflinedRooms++
	t.mu.Unlock()
}

// OnKeywordHit 计数。
func (t *Telemetry) OnKeywordHit(ev hook.KeywordHitEvent) {
	t.mu.Lock()
	t.snap.TotalKeywordHits += uint64(len(ev.Messages))
	t.mu.Unlock()
}

// OnNotificationSent 计数 (分别统计尝试和成功)。
func (t *Telemetry) OnNotificationSent(ev hook.NotificationEvent) {
	t.mu.Lock()
	t.snap.TotalNotifications++
	if ev.Sent {
		t.snap.TotalSent++
	}
	t.mu.Unlock()
}

// OnCycleStats 更新周期量表。
func (t *Telemetry) OnCycleStats(ev hook.CycleStats) {
	t.mu.Lock()
	t.snap.CycleID = ev.CycleID
	t.snap.Cycles++
	t.snap.Rooms = ev.Rooms
	t.snap.Members = ev.Members
	t.snap.LastWaitSec = ev.WaitSec
	t.snap.LastRawWaitSec = ev.RawWaitSec
	t.snap.UpdatedAt = ev.FinishedAt
	t.mu.Unlock()
}
