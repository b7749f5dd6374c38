package domain

// Snapshot 是上游状态 API 的一次完整抓取结果。
// rooms 缺失时容忍为空列表，不视为错误。
type Snapshot struct {
	Rooms                 []Room `json:"rooms"`
	TotalPublishedRooms   int    `json:"totalPublishedRooms,omitempty"`
	TotalUnpublishedRooms int    `json:"totalUnpublishedRooms,omitempty"`
}

// NumRooms 返回快照中的房间数 (nil 安全)。
func (s *Snapshot) NumRooms() int {
	if s == nil {
		return 0
	}
	return len(s.Rooms)
}
