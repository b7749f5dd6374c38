package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/domain"
	"github.com/fflughiraeth/srpusher/internal/hook"
	"github.com/fflughiraeth/srpusher/internal/notify"
	"github.com/fflughiraeth/srpusher/internal/repository"
)

// WatchRules 是监视目标清单。
type WatchRules struct {
	Targets        []string // 被钉住的用户 id：出现即通知
	TargetsExclude []string // 即使命中也不通知的用户 id
}

// Watcher 协调一个完整的轮询周期：
// 抓取快照 → 更新实体缓存 → 在线集合 diff → 关键词扫描 → 钩子扇出 →
// 计算下一次睡眠。严格单线程顺序执行，周期之间没有重叠。
type Watcher struct {
	snapshots  *SnapshotCache
	option     *SnapshotCache // 备用源，可为未配置
	state      repository.StateRepository
	presence   *PresenceService
	keywords   *KeywordMatcher
	pacing     *PacingController
	dispatcher *hook.Dispatcher
	sink       notify.Sink
	rules      WatchRules
	now        func() time.Time
	log        *logrus.Entry
}

// NewWatcher 组装监视器。sink 为 nil 表示通知已禁用 (合法的非错误状态)。
func NewWatcher(
	snapshots, option *SnapshotCache,
	state repository.StateRepository,
	presence *PresenceService,
	keywords *KeywordMatcher,
	pacing *PacingController,
	dispatcher *hook.Dispatcher,
	sink notify.Sink,
	rules WatchRules,
	logger *logrus.Logger,
) *Watcher {
	if snapshots == nil || state == nil || presence == nil || keywords == nil || pacing == nil || dispatcher == nil {
		panic("Watcher dependencies cannot be nil")
	}
	return &Watcher{
		snapshots:  snapshots,
		option:     option,
		state:      state,
		presence:   presence,
		keywords:   keywords,
		pacing:     pacing,
		dispatcher: dispatcher,
		sink:       sink,
		rules:      rules,
		now:        time.Now,
		log:        logger.WithField("component", "watcher"),
	}
}

// pendingNotification 是 pass 2 收集的待发通知 (每个房间至多一条)。
type pendingNotification struct {
	RoomID string
	Title  string
	Detail string
}

// RunOnce 执行恰好一个周期，返回下一次应睡眠的时长。
// 只有致命错误 (房间 id 无法生成、状态存储不可用) 才会返回 error。
func (w *Watcher) RunOnce(ctx context.Context) (time.Duration, error) {
	cycleID := uuid.NewString()
	log := w.log.WithField("cycle_id", cycleID)

	snapshot := w.snapshots.Current(ctx)
	if snapshot == nil {
		// 上游从未成功过：没有可信的观测。跳过 diff 和派发 ——
		// 对着空集合求差会把存储里残留的全部实体误报为下线
		// (典型场景：上游宕机期间进程重启)。
		log.Warn("No snapshot available yet, skipping diff and dispatch")
		waitSec, _, _, err := w.pacing.NextWait(ctx, 0)
		if err != nil {
			return 0, err
		}
		if waitSec < 0 {
			waitSec = 0
		}
		return time.Duration(waitSec * float64(time.Second)), nil
	}
	var optionSnapshot *domain.Snapshot
	if w.option.Configured() {
		optionSnapshot = w.option.Current(ctx)
	}

	// 每周期重新计算的多重登录计数 (局部 map，不保留)
	memberships := CountMemberships(snapshot)

	// pass 1：更新缓存、收集在线 id、派发 user_changed
	memberIDs, roomIDs, err := w.collectOnlines(ctx, cycleID, snapshot, memberships)
	if err != nil {
		return 0, err
	}
	var optionRoomIDs []string
	if optionSnapshot != nil {
		_, optionRoomIDs, err = w.collectOnlines(ctx, cycleID, optionSnapshot, memberships)
		if err != nil {
			return 0, err
		}
	}

	onlinedUsers, offlinedUsers, err := w.presence.UpdateUsers(ctx, memberIDs)
	if err != nil {
		return 0, err
	}
	onlinedRooms, offlinedRooms, optionRooms, err := w.presence.UpdateRooms(ctx, roomIDs, optionRoomIDs)
	if err != nil {
		return 0, err
	}

	// pass 2：关键词/目标扫描，收集待发通知
	pending, err := w.scanRooms(ctx, cycleID, snapshot, onlinedUsers)
	if err != nil {
		return 0, err
	}

	// 派发次序是契约的一部分：用户 diff → 房间 diff → 备用源房间 → 通知
	for _, id := range onlinedUsers {
		user := w.cachedUser(ctx, id)
		room := w.cachedRoom(ctx, user.RoomID)
		w.dispatcher.UserOnlined(hook.UserEvent{CycleID: cycleID, User: user, RoomID: user.RoomID, Room: room})
	}
	for _, id := range offlinedUsers {
		user := w.cachedUser(ctx, id)
		room := w.cachedRoom(ctx, user.RoomID)
		w.dispatcher.UserOfflined(hook.UserEvent{CycleID: cycleID, User: user, RoomID: user.RoomID, Room: room})
		// 下线用户的最后已知状态必须留在缓存里，只把 online 翻成 false
		if !user.IsZero() {
			user.Online = false
			if err := w.state.SaveUser(ctx, user); err != nil {
				log.WithError(err).Warn("Failed to re-cache offlined user")
			}
		}
	}
	for _, id := range onlinedRooms {
		w.dispatcher.RoomOnlined(hook.RoomEvent{CycleID: cycleID, RoomID: id, Room: w.cachedRoom(ctx, id)})
	}
	for _, id := range offlinedRooms {
		w.dispatcher.RoomOfflined(hook.RoomEvent{CycleID: cycleID, RoomID: id, Room: w.cachedRoom(ctx, id)})
	}
	for _, id := range optionRooms {
		w.dispatcher.RoomOption(hook.RoomEvent{CycleID: cycleID, RoomID: id, Room: w.cachedRoom(ctx, id)})
	}

	for _, p := range pending {
		sent := false
		if w.sink != nil {
			sent = w.sink.Send(strings.TrimSpace(p.Detail), p.Title)
		} else {
			log.Debug("Notification sink disabled or not configured")
		}
		w.dispatcher.NotificationSent(hook.NotificationEvent{
			CycleID: cycleID,
			Title:   p.Title,
			Message: p.Detail,
			RoomID:  p.RoomID,
			Sent:    sent,
		})
		log.WithFields(logrus.Fields{"room_id": p.RoomID, "sent": sent}).Info("Notification dispatched")
	}

	onlineCount := uniqueCount(memberIDs)
	waitSec, jitter, raw, err := w.pacing.NextWait(ctx, onlineCount)
	if err != nil {
		return 0, err
	}

	w.dispatcher.CycleStats(hook.CycleStats{
		CycleID:       cycleID,
		Rooms:         snapshot.NumRooms(),
		Members:       onlineCount,
		OnlinedUsers:  len(onlinedUsers),
		OfflinedUsers: len(offlinedUsers),
		OnlinedRooms:  len(onlinedRooms),
		OfflinedRooms: len(offlinedRooms),
		OptionRooms:   len(optionRooms),
		Notifications: len(pending),
		WaitSec:       waitSec,
		JitterSec:     jitter,
		RawWaitSec:    raw,
		FinishedAt:    w.now(),
	})

	log.WithFields(logrus.Fields{
		"rooms":    snapshot.NumRooms(),
		"members":  onlineCount,
		"wait_sec": waitSec,
	}).Infof("%d rooms available", snapshot.NumRooms())

	if waitSec < 0 {
		waitSec = 0
	}
	return time.Duration(waitSec * float64(time.Second)), nil
}

// Run 循环执行周期直到 ctx 取消。单个坏周期不会终止循环的例外：
// 致命的 id 生成错误和状态存储故障会向上传播。
func (w *Watcher) Run(ctx context.Context) error {
	for {
		wait, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}
		w.log.Infof("Sleeping %d sec", int(wait.Seconds()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// collectOnlines 遍历快照：派生房间 id、刷新实体缓存、收集在线 id。
// 副作用：更新用户和房间的 Redis 缓存、派发 user_changed。
func (w *Watcher) collectOnlines(ctx context.Context, cycleID string, snapshot *domain.Snapshot, memberships map[string]int) (memberIDs, roomIDs []string, err error) {
	if snapshot == nil {
		return nil, nil, nil
	}
	for i := range snapshot.Rooms {
		room := &snapshot.Rooms[i]
		roomID, _, err := w.roomIdentity(room)
		if err != nil {
			return nil, nil, err
		}
		roomIDs = append(roomIDs, roomID)
		if err := w.state.SaveRoom(ctx, roomID, room); err != nil {
			w.log.WithError(err).WithField("room_id", roomID).Warn("Failed to cache room")
		}
		for j := range room.Members {
			member := &room.Members[j]
			member.RoomID = roomID
			member.Online = true
			if member.UserID == "" {
				continue
			}
			memberIDs = append(memberIDs, member.UserID)
			previous, getErr := w.state.GetUser(ctx, member.UserID)
			if getErr == nil && !previous.IsZero() && UserChanged(member, previous, memberships) {
				w.dispatcher.UserChanged(hook.UserChangedEvent{
					CycleID:  cycleID,
					User:     member,
					Previous: previous,
				})
			}
			if err := w.state.SaveUser(ctx, member); err != nil {
				w.log.WithError(err).WithField("user_id", member.Key()).Warn("Failed to cache user")
			}
		}
	}
	return memberIDs, roomIDs, nil
}

// scanRooms 是 pass 2：对着同一快照做关键词和目标扫描，
// 生成每个房间至多一条的待发通知，并派发 keyword_hit。
func (w *Watcher) scanRooms(ctx context.Context, cycleID string, snapshot *domain.Snapshot, onlinedUsers []string) ([]pendingNotification, error) {
	if snapshot == nil {
		return nil, nil
	}
	now := w.now().UTC().Truncate(time.Second)
	onlined := make(map[string]bool, len(onlinedUsers))
	for _, id := range onlinedUsers {
		onlined[strings.ToLower(id)] = true
	}

	var order []string
	pending := make(map[string]pendingNotification)

	for i := range snapshot.Rooms {
		room := &snapshot.Rooms[i]
		roomID, createTime, err := w.roomIdentity(room)
		if err != nil {
			return nil, err
		}

		var messages []string
		isNewRoom := false
		match, err := w.keywords.Match(ctx, room.Members, room.RoomName, room.RoomDesc)
		if err != nil {
			w.log.WithError(err).Warn("Keyword check failed, skipping")
		} else if match {
			isNewRoom = true
			messages = append(messages, fmt.Sprintf("keyword: %s %s", room.RoomName, room.RoomDesc))
		}

		var roster strings.Builder
		for j := range room.Members {
			member := &room.Members[j]
			nickMatch, err := w.keywords.Match(ctx, room.Members, member.Nickname)
			if err != nil {
				w.log.WithError(err).Warn("Keyword check failed, skipping")
			} else if nickMatch {
				isNewRoom = true
				messages = append(messages, fmt.Sprintf("keyword: %s %s", room.RoomName, room.RoomDesc))
			}

			lowered := strings.ToLower(member.UserID)
			var header string
			switch {
			case onlined[lowered] && w.isTarget(member.UserID):
				header = "  + " // 本周期刚上线的目标
			case w.isTarget(member.UserID):
				header = "  * " // 被钉住的目标
			default:
				header = "  - "
			}
			roster.WriteString(header + member.Nickname + "\n")

			if isNewRoom || (w.isTarget(member.UserID) && !w.isExcludedTarget(member.UserID) && onlined[lowered]) {
				title := room.RoomName
				if room.NeedPasswd {
					title += " (protected)"
				}
				detail := fmt.Sprintf("Members(%d):\n%s\n%s\nElapsed: %s\n\n",
					room.NumMembers, roster.String(), room.RoomDesc, now.Sub(createTime))
				if _, exists := pending[roomID]; !exists {
					order = append(order, roomID)
				}
				pending[roomID] = pendingNotification{RoomID: roomID, Title: title, Detail: detail}
			}
		}
		if len(messages) > 0 {
			w.dispatcher.KeywordHit(hook.KeywordHitEvent{CycleID: cycleID, Messages: messages})
		}
	}

	out := make([]pendingNotification, 0, len(order))
	for _, id := range order {
		out = append(out, pending[id])
	}
	return out, nil
}

// roomIdentity 派生房间 id。id 生成所需输入为空是致命的输入错误：
// 没有身份的房间无法被处理，这里不做跳过。
func (w *Watcher) roomIdentity(room *domain.Room) (string, time.Time, error) {
	createTime, err := domain.ParseCreateTime(room.CreateTime)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("watcher: room %q: %w", room.RoomName, err)
	}
	roomID, err := domain.GenerateRoomID(createTime, room.RoomName, room.ActorID())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("watcher: room %q: %w", room.RoomName, err)
	}
	return roomID, createTime, nil
}

func (w *Watcher) isTarget(userID string) bool {
	return containsFold(w.rules.Targets, userID)
}

func (w *Watcher) isExcludedTarget(userID string) bool {
	return containsFold(w.rules.TargetsExclude, userID)
}

// cachedUser 读取用户缓存，未命中返回空对象 (unknown)，绝不返回错误。
func (w *Watcher) cachedUser(ctx context.Context, userID string) *domain.Member {
	user, err := w.state.GetUser(ctx, userID)
	if err != nil {
		return &domain.Member{}
	}
	return user
}

// cachedRoom 读取房间缓存，未命中返回空对象。
func (w *Watcher) cachedRoom(ctx context.Context, roomID string) *domain.Room {
	room, err := w.state.GetRoom(ctx, roomID)
	if err != nil {
		return &domain.Room{}
	}
	return room
}

func containsFold(list []string, value string) bool {
	if value == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

func uniqueCount(ids []string) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		seen[strings.ToLower(id)] = struct{}{}
	}
	return len(seen)
}
