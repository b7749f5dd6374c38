package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Creator 表示房间创建者 (上游 creator 对象的子集)。
type Creator struct {
	UserID       string `json:"userId"`
	Nickname     string `json:"nickname"`
	NsgmMemberID string `json:"nsgmMemberId"`
}

// Room 表示上游快照中的一个房间。
// 上游不提供房间 id，id 由 GenerateRoomID 从内容派生。
type Room struct {
	RoomName   string   `json:"roomName"`
	RoomDesc   string   `json:"roomDesc"`
	NumMembers int      `json:"numMembers"`
	NeedPasswd bool     `json:"needPasswd"`
	CreateTime string   `json:"createTime"`
	Creator    *Creator `json:"creator,omitempty"`
	Members    []Member `json:"members,omitempty"`
}

// ActorID 返回创建者的 nsgmMemberId (缺失时为空串)。
// 仅用于 GenerateRoomID 的输入校验，不参与 hash。
func (r *Room) ActorID() string {
	if r.Creator == nil {
		return ""
	}
	return r.Creator.NsgmMemberID
}

// CreatorNickname 返回创建者昵称 (缺失时为空串)。
func (r *Room) CreatorNickname() string {
	if r.Creator == nil {
		return ""
	}
	return r.Creator.Nickname
}

// IsZero 报告该房间是否为缓存未命中时的空对象。
func (r *Room) IsZero() bool {
	return r == nil || (r.RoomName == "" && r.CreateTime == "")
}

// createTimeLayouts 是上游 createTime 接受的格式。
// 实际 feed 使用 "2006-01-02 15:04:05 GMT" 这种带时区缩写的形式。
var createTimeLayouts = []string{
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseCreateTime 解析上游的 createTime 字符串。
func ParseCreateTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("domain: empty createTime")
	}
	for _, layout := range createTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("domain: unparseable createTime %q", value)
}

// GenerateRoomID 从 (createTime, roomName) 派生房间 id。
// 三个输入都必须非空，否则这是致命的输入错误 —— 没有它们房间无法被识别。
// actorID 只参与校验：为了保证 id 的幂等性，hash 刻意不包含它。
func GenerateRoomID(createTime time.Time, roomName, actorID string) (string, error) {
	if createTime.IsZero() || roomName == "" || actorID == "" {
		return "", fmt.Errorf("domain: generate room id: invalid parameters")
	}
	sum := sha256.Sum256([]byte(createTime.UTC().Format(time.RFC3339) + roomName))
	return hex.EncodeToString(sum[:]), nil
}
