// Package observer 提供随附的观察者实现。
// 观察者只通过副作用对外沟通 (日志、发送、计数)，不返回任何东西。
package observer

import (
	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/hook"
)

// Console 把生命周期事件打到日志上。
type Console struct {
	log *logrus.Entry
}

// NewConsole 创建控制台观察者。
func NewConsole(logger *logrus.Logger) *Console {
	return &Console{log: logger.WithField("component", "console")}
}

// Name 实现 hook.Observer。
func (c *Console) Name() string { return "console" }

// OnRoomOnlined 在新房间出现时调用。
func (c *Console) OnRoomOnlined(ev hook.RoomEvent) {
	c.log.Infof("Room has appeared: '%s' created by '%s'", ev.Room.RoomName, ev.Room.CreatorNickname())
}

// OnRoomOfflined 在房间消失时调用。给到的房间对象是它最后存在时的缓存。
func (c *Console) OnRoomOfflined(ev hook.RoomEvent) {
	c.log.Infof("Room has disappeared: '%s'", ev.Room.RoomName)
}

// OnRoomOption 在房间仅备用源可见时调用。
func (c *Console) OnRoomOption(ev hook.RoomEvent) {
	c.log.Infof("(Option)Room: '%s'", ev.Room.RoomName)
}

// OnUserOnlined 在新用户出现时调用。
func (c *Console) OnUserOnlined(ev hook.UserEvent) {
	c.log.Infof("User Onlined: '%s' to room '%s'", ev.User.Nickname, ev.Room.RoomName)
}

// OnUserOfflined 在用户从所有房间消失时调用。用户和房间对象都是缓存值。
func (c *Console) OnUserOfflined(ev hook.UserEvent) {
	c.log.Infof("User Offlined: '%s' from room '%s'", ev.User.Nickname, ev.Room.RoomName)
}

// OnUserChanged 在用户属性变化时调用。
func (c *Console) OnUserChanged(ev hook.UserChangedEvent) {
	c.log.Infof("User Changed: '%s' -> '%s'", ev.Previous.Nickname, ev.User.Nickname)
}

// OnKeywordHit 在关键词命中时调用。
func (c *Console) OnKeywordHit(ev hook.KeywordHitEvent) {
	for _, message := range ev.Messages {
		c.log.Infof("(Hit Keyword) Message: %s", message)
	}
}
