package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/domain"
	"github.com/fflughiraeth/srpusher/internal/repository"
)

// 在线集合的键名 (StateRepository 会加上实例前缀)。
const (
	KeyMembers     = "members"
	KeyMembersPrev = "members_prev"
	KeyRooms       = "rooms"
	KeyRoomsPrev   = "rooms_prev"
	KeyRoomsOption = "rooms_option"
)

// PresenceService 是在线状态 diff 引擎。
// 每个实体类维护 current/previous 两个世代集合，每周期整体重建 current、
// 双向求差、然后推进世代 (previous := current)。
type PresenceService struct {
	state  repository.StateRepository
	retain bool // 调试保留模式：推进后 current 保留供检查
	log    *logrus.Entry
}

// NewPresenceService 创建 diff 引擎。
func NewPresenceService(state repository.StateRepository, retain bool, logger *logrus.Logger) *PresenceService {
	if state == nil {
		panic("StateRepository cannot be nil for PresenceService")
	}
	return &PresenceService{
		state:  state,
		retain: retain,
		log:    logger.WithField("component", "presence"),
	}
}

// UpdateUsers 用本周期观测到的用户 id 重建 current 集合，
// 返回 (onlined, offlined) 并推进世代。id 在这里统一小写。
func (s *PresenceService) UpdateUsers(ctx context.Context, userIDs []string) (onlined, offlined []string, err error) {
	normalized := normalizeIDs(userIDs, true)
	if err := s.state.ReplaceSet(ctx, KeyMembers, normalized); err != nil {
		return nil, nil, fmt.Errorf("presence: rebuild members: %w", err)
	}
	offlined, err = s.state.DiffSets(ctx, KeyMembersPrev, KeyMembers)
	if err != nil {
		return nil, nil, fmt.Errorf("presence: diff offlined members: %w", err)
	}
	onlined, err = s.state.DiffSets(ctx, KeyMembers, KeyMembersPrev)
	if err != nil {
		return nil, nil, fmt.Errorf("presence: diff onlined members: %w", err)
	}
	if err := s.state.AdvanceSet(ctx, KeyMembers, KeyMembersPrev, s.retain); err != nil {
		return nil, nil, fmt.Errorf("presence: advance members: %w", err)
	}
	return onlined, offlined, nil
}

// UpdateRooms 对房间执行同样的 current/previous/diff/advance 周期。
// optionRoomIDs 来自可选的备用源：其中不在主 current 集合里的房间
// 作为 option 集合返回 (仅备用源可见的房间)。
func (s *PresenceService) UpdateRooms(ctx context.Context, roomIDs, optionRoomIDs []string) (onlined, offlined, option []string, err error) {
	if err := s.state.ReplaceSet(ctx, KeyRooms, normalizeIDs(roomIDs, false)); err != nil {
		return nil, nil, nil, fmt.Errorf("presence: rebuild rooms: %w", err)
	}
	offlined, err = s.state.DiffSets(ctx, KeyRoomsPrev, KeyRooms)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("presence: diff offlined rooms: %w", err)
	}
	if len(optionRoomIDs) > 0 {
		if err := s.state.ReplaceSet(ctx, KeyRoomsOption, normalizeIDs(optionRoomIDs, false)); err != nil {
			return nil, nil, nil, fmt.Errorf("presence: rebuild option rooms: %w", err)
		}
		option, err = s.state.DiffSets(ctx, KeyRoomsOption, KeyRooms)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("presence: diff option rooms: %w", err)
		}
	}
	onlined, err = s.state.DiffSets(ctx, KeyRooms, KeyRoomsPrev)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("presence: diff onlined rooms: %w", err)
	}
	if err := s.state.AdvanceSet(ctx, KeyRooms, KeyRoomsPrev, s.retain); err != nil {
		return nil, nil, nil, fmt.Errorf("presence: advance rooms: %w", err)
	}
	return onlined, offlined, option, nil
}

// CountMemberships 统计每个用户本周期在多少个房间里出现。
// 每周期重新计算到一个局部 map，显式传入 diff 步骤，不作为共享状态保留。
func CountMemberships(snapshot *domain.Snapshot) map[string]int {
	counts := make(map[string]int)
	if snapshot == nil {
		return counts
	}
	for _, room := range snapshot.Rooms {
		for _, member := range room.Members {
			if member.UserID == "" {
				continue
			}
			counts[member.UserID]++
		}
	}
	return counts
}

// UserChanged 把新观测到的记录和缓存记录比较，判断是否应派发变化事件。
// 触发条件：昵称变了，或 iconInfo 变了，或房间变了 —— 但房间变化在
// 以下情况被忽略 (判定次序是语义的一部分，决定误报率，不得调换)：
//  1. 该用户本周期出现在多个房间 (多重登录，归属含糊)；
//  2. 上周期离线、本周期在线 (正常重连)；
//  3. 任意一侧的房间 id 为空。
// 上游 feed 无法区分 "换房间"、"多重登录" 和 "本周期首次出现"，
// 所以只能用这种启发式。
func UserChanged(user, previous *domain.Member, memberships map[string]int) bool {
	if user.IsZero() {
		// 1.5 以下的客户端或测试房间成员没有 userId
		return false
	}
	if previous.IsZero() {
		// 没有缓存可比，首次出现不算变化
		return false
	}
	if previous.Nickname != user.Nickname {
		return true
	}
	if !user.IconEquals(previous) {
		return true
	}
	if memberships[user.UserID] > 1 {
		logrus.WithField("nickname", user.Nickname).Debug("Room change ignored: duplicate membership")
		return false
	}
	if !previous.Online && user.Online {
		return false
	}
	if previous.RoomID == "" || user.RoomID == "" {
		return false
	}
	return previous.RoomID != user.RoomID
}

func normalizeIDs(ids []string, lower bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if lower {
			id = strings.ToLower(id)
		}
		out = append(out, id)
	}
	return out
}
