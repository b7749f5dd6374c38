// Package domain 定义了 SR 状态监视器使用的数据结构 (上游快照模型和持久化模型)。
package domain

import (
	"reflect"
	"strings"
)

// Member 表示房间中观测到的一个成员。
// 上游字段都是可选的 (缺失时保持零值)，RoomID 和 Online 不来自上游，
// 由 diff 引擎在每个周期赋值。
type Member struct {
	UserID       string         `json:"userId"`
	Nickname     string         `json:"nickname"`
	NsgmMemberID string         `json:"nsgmMemberId,omitempty"`
	IconInfo     map[string]any `json:"iconInfo,omitempty"`

	// RoomID 是成员当前所在房间的派生 id (引擎回填，用于 user->room 查找)。
	RoomID string `json:"roomid,omitempty"`
	// Online 在缓存写入时显式标记 (本周期观测到为 true，下线时改写为 false)。
	Online bool `json:"online"`
}

// Key 返回成员的缓存键 (userId 大小写不敏感)。
func (m *Member) Key() string {
	return strings.ToLower(m.UserID)
}

// IconEquals 比较两个成员的 iconInfo 属性块。
// iconInfo 对我们是不透明的，双方都经过 JSON 反序列化，DeepEqual 即可。
func (m *Member) IconEquals(other *Member) bool {
	if other == nil {
		return m.IconInfo == nil
	}
	return reflect.DeepEqual(m.IconInfo, other.IconInfo)
}

// IsZero 报告该成员是否为 "unknown" (缓存未命中时返回的空对象)。
func (m *Member) IsZero() bool {
	return m == nil || m.UserID == ""
}
