package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fflughiraeth/srpusher/internal/domain"
	"github.com/fflughiraeth/srpusher/internal/hook"
	"github.com/fflughiraeth/srpusher/internal/repository"
	"github.com/fflughiraeth/srpusher/internal/service"
)

// fakeState 是 StateRepository 的内存实现，端到端场景用它比
// 逐调用的 Mock 设定更可读。语义对齐 Redis 实现：集合重建、双向差、
// RENAME 式推进、检查即记录的去重。
type fakeState struct {
	mu       sync.Mutex
	users    map[string]*domain.Member
	rooms    map[string]*domain.Room
	sets     map[string]map[string]bool
	keywords map[string]bool
	wait     *float64
}

func newFakeState() *fakeState {
	return &fakeState{
		users:    make(map[string]*domain.Member),
		rooms:    make(map[string]*domain.Room),
		sets:     make(map[string]map[string]bool),
		keywords: make(map[string]bool),
	}
}

func (f *fakeState) SaveUser(ctx context.Context, member *domain.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *member
	f.users[member.Key()] = &clone
	return nil
}

func (f *fakeState) GetUser(ctx context.Context, userID string) (*domain.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[strings.ToLower(userID)]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeState) SaveRoom(ctx context.Context, roomID string, room *domain.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *room
	f.rooms[roomID] = &clone
	return nil
}

func (f *fakeState) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rooms[roomID]; ok {
		clone := *r
		return &clone, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeState) ReplaceSet(ctx context.Context, key string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = true
		}
	}
	f.sets[key] = set
	return nil
}

func (f *fakeState) DiffSets(ctx context.Context, key1, key2 string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id := range f.sets[key1] {
		if !f.sets[key2][id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeState) AdvanceSet(ctx context.Context, src, dst string, retain bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if retain {
		copied := make(map[string]bool, len(f.sets[src]))
		for id := range f.sets[src] {
			copied[id] = true
		}
		f.sets[dst] = copied
		return nil
	}
	f.sets[dst] = f.sets[src]
	delete(f.sets, src)
	return nil
}

func (f *fakeState) MarkKeyword(ctx context.Context, keyword string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := f.keywords[keyword]
	f.keywords[keyword] = true
	return seen, nil
}

func (f *fakeState) PreviousWait(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wait == nil {
		return 0, repository.ErrNotFound
	}
	return *f.wait, nil
}

func (f *fakeState) SavePreviousWait(ctx context.Context, seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wait = &seconds
	return nil
}

// stubFetcher 按调用次数返回预设的快照序列，最后一个快照之后保持不变。
type stubFetcher struct {
	snapshots []*domain.Snapshot
	calls     int
}

func (s *stubFetcher) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	idx := s.calls
	if idx >= len(s.snapshots) {
		idx = len(s.snapshots) - 1
	}
	s.calls++
	return s.snapshots[idx], nil
}

// recordingSink 记录发送的通知。
type recordingSink struct {
	titles   []string
	messages []string
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Send(message, title string) bool {
	r.messages = append(r.messages, message)
	r.titles = append(r.titles, title)
	return true
}

// recordingObserver 按派发顺序记录事件名。
type recordingObserver struct {
	events []string
}

func (r *recordingObserver) Name() string { return "recording" }

func (r *recordingObserver) OnUserOnlined(ev hook.UserEvent)        { r.events = append(r.events, hook.EventUserOnlined) }
func (r *recordingObserver) OnUserOfflined(ev hook.UserEvent)       { r.events = append(r.events, hook.EventUserOfflined) }
func (r *recordingObserver) OnRoomOnlined(ev hook.RoomEvent)        { r.events = append(r.events, hook.EventRoomOnlined) }
func (r *recordingObserver) OnRoomOfflined(ev hook.RoomEvent)       { r.events = append(r.events, hook.EventRoomOfflined) }
func (r *recordingObserver) OnRoomOption(ev hook.RoomEvent)         { r.events = append(r.events, hook.EventRoomOption) }
func (r *recordingObserver) OnUserChanged(ev hook.UserChangedEvent) { r.events = append(r.events, hook.EventUserChanged) }
func (r *recordingObserver) OnNotificationSent(ev hook.NotificationEvent) {
	r.events = append(r.events, hook.EventNotificationSent)
}
func (r *recordingObserver) OnCycleStats(ev hook.CycleStats) {
	r.events = append(r.events, hook.EventCycleStats)
}

func snapshotWith(rooms ...domain.Room) *domain.Snapshot {
	return &domain.Snapshot{Rooms: rooms, TotalPublishedRooms: len(rooms)}
}

func buildWatcher(t *testing.T, state *fakeState, fetcher service.Fetcher, sink *recordingSink, observer *recordingObserver, targets []string) *service.Watcher {
	t.Helper()
	logger := testLogger()
	// freshFor 最小化，保证每个周期都抓取新快照
	snapshots := service.NewSnapshotCache(fetcher, 1, logger)
	presence := service.NewPresenceService(state, false, logger)
	keywords := service.NewKeywordMatcher(state, service.KeywordRules{}, logger)
	pacing := service.NewPacingController(state, service.PacingConfig{
		BaseWaitSec: 30, Multiplier: 0.1, InterceptSec: 10, MinWaitSec: 5, TimeConstant: 1,
	}, logger)
	dispatcher := hook.NewDispatcher(logger)
	dispatcher.Register(observer)
	return service.NewWatcher(
		snapshots, nil, state, presence, keywords, pacing, dispatcher, sink,
		service.WatchRules{Targets: targets}, logger,
	)
}

func TestRunOnce_TargetComesOnline(t *testing.T) {
	room := domain.Room{
		RoomName:   "麻雀ルーム",
		RoomDesc:   "のんびり",
		NumMembers: 2,
		CreateTime: "2024-03-01 12:00:00 GMT",
		Creator:    &domain.Creator{NsgmMemberID: "creator-1", Nickname: "host"},
		Members: []domain.Member{
			{UserID: "other", Nickname: "はなこ"},
			{UserID: "Target1", Nickname: "たろう"},
		},
	}
	lounge := domain.Room{
		RoomName:   "雑談",
		CreateTime: "2024-03-01 11:00:00 GMT",
		Creator:    &domain.Creator{NsgmMemberID: "creator-2"},
		Members:    []domain.Member{{UserID: "idler", Nickname: "ぼんやり"}},
	}

	state := newFakeState()
	sink := &recordingSink{}
	observer := &recordingObserver{}
	fetcher := &stubFetcher{snapshots: []*domain.Snapshot{snapshotWith(room, lounge)}}
	w := buildWatcher(t, state, fetcher, sink, observer, []string{"target1"})

	wait, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Greater(t, wait.Seconds(), 0.0)

	// 目标刚上线 → 恰好一条通知，标题带房间名，正文带花名册
	require.Len(t, sink.titles, 1)
	assert.Equal(t, "麻雀ルーム", sink.titles[0])
	assert.Contains(t, sink.messages[0], "Members(2)")
	assert.Contains(t, sink.messages[0], "+ たろう", "刚上线的目标带 + 标头")
	assert.Contains(t, sink.messages[0], "- はなこ")

	// 首个周期全员都是 onlined
	var onlinedUsers, onlinedRooms int
	for _, ev := range observer.events {
		switch ev {
		case hook.EventUserOnlined:
			onlinedUsers++
		case hook.EventRoomOnlined:
			onlinedRooms++
		}
	}
	assert.Equal(t, 3, onlinedUsers)
	assert.Equal(t, 2, onlinedRooms)

	// 用户缓存已写入且在线
	cached, err := state.GetUser(context.Background(), "target1")
	require.NoError(t, err)
	assert.True(t, cached.Online)
	assert.NotEmpty(t, cached.RoomID)
}

func TestRunOnce_ProtectedRoomTitleSuffix(t *testing.T) {
	room := domain.Room{
		RoomName:   "secret",
		NeedPasswd: true,
		NumMembers: 1,
		CreateTime: "2024-03-01 12:00:00 GMT",
		Creator:    &domain.Creator{NsgmMemberID: "creator-1"},
		Members:    []domain.Member{{UserID: "target1", Nickname: "t"}},
	}

	state := newFakeState()
	sink := &recordingSink{}
	fetcher := &stubFetcher{snapshots: []*domain.Snapshot{snapshotWith(room)}}
	w := buildWatcher(t, state, fetcher, sink, &recordingObserver{}, []string{"target1"})

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.titles, 1)
	assert.Equal(t, "secret (protected)", sink.titles[0])
}

func TestRunOnce_SecondCycleEmitsOfflines(t *testing.T) {
	first := domain.Room{
		RoomName:   "room-a",
		CreateTime: "2024-03-01 12:00:00 GMT",
		Creator:    &domain.Creator{NsgmMemberID: "creator-1"},
		Members:    []domain.Member{{UserID: "alice", Nickname: "a"}},
	}

	state := newFakeState()
	sink := &recordingSink{}
	observer := &recordingObserver{}
	fetcher := &stubFetcher{snapshots: []*domain.Snapshot{
		snapshotWith(first),
		snapshotWith(), // 第二周期房间消失
	}}
	w := buildWatcher(t, state, fetcher, sink, observer, nil)

	ctx := context.Background()
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)
	observer.events = nil

	_, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Contains(t, observer.events, hook.EventUserOfflined)
	assert.Contains(t, observer.events, hook.EventRoomOfflined)

	// 下线用户的最后状态仍在缓存里，online 翻成 false
	cached, err := state.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, cached.Online)
	assert.Equal(t, "a", cached.Nickname)
}

func TestRunOnce_DispatchOrderContract(t *testing.T) {
	first := domain.Room{
		RoomName:   "room-a",
		CreateTime: "2024-03-01 12:00:00 GMT",
		Creator:    &domain.Creator{NsgmMemberID: "creator-1"},
		Members:    []domain.Member{{UserID: "target1", Nickname: "t"}},
	}

	state := newFakeState()
	observer := &recordingObserver{}
	fetcher := &stubFetcher{snapshots: []*domain.Snapshot{snapshotWith(first)}}
	w := buildWatcher(t, state, fetcher, &recordingSink{}, observer, []string{"target1"})

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	// 用户 diff → 房间 diff → 通知 → 周期统计
	idx := func(name string) int {
		for i, ev := range observer.events {
			if ev == name {
				return i
			}
		}
		return -1
	}
	require.NotEqual(t, -1, idx(hook.EventUserOnlined))
	require.NotEqual(t, -1, idx(hook.EventRoomOnlined))
	require.NotEqual(t, -1, idx(hook.EventNotificationSent))
	require.NotEqual(t, -1, idx(hook.EventCycleStats))
	assert.Less(t, idx(hook.EventUserOnlined), idx(hook.EventRoomOnlined))
	assert.Less(t, idx(hook.EventRoomOnlined), idx(hook.EventNotificationSent))
	assert.Less(t, idx(hook.EventNotificationSent), idx(hook.EventCycleStats))
	assert.Equal(t, hook.EventCycleStats, observer.events[len(observer.events)-1])
}

func TestRunOnce_NeverFetchedSkipsDiffAndDispatch(t *testing.T) {
	state := newFakeState()
	// 存储里有上一次进程运行留下的在线集合和实体缓存
	state.sets[service.KeyMembersPrev] = map[string]bool{"alice": true}
	state.sets[service.KeyRoomsPrev] = map[string]bool{"r1": true}
	state.users["alice"] = &domain.Member{UserID: "alice", Nickname: "a", Online: true}

	observer := &recordingObserver{}
	fetcher := &stubFetcher{snapshots: []*domain.Snapshot{nil}} // 上游从未成功
	w := buildWatcher(t, state, fetcher, &recordingSink{}, observer, nil)

	wait, err := w.RunOnce(context.Background())
	require.NoError(t, err, "缺失快照是可容忍的降级状态")
	assert.Greater(t, wait.Seconds(), 0.0)

	// 不得把残留实体误报为下线，集合也不得被推进
	assert.Empty(t, observer.events, "没有观测就没有事件")
	assert.True(t, state.sets[service.KeyMembersPrev]["alice"], "previous 集合保持原样")
	assert.True(t, state.sets[service.KeyRoomsPrev]["r1"])

	cached, err := state.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, cached.Online, "缓存的在线状态不被改写")
}

func TestRunOnce_MissingRoomIdentityIsFatal(t *testing.T) {
	broken := domain.Room{
		RoomName:   "no-creator",
		CreateTime: "2024-03-01 12:00:00 GMT",
		// Creator 缺失 → actor id 为空 → id 无法生成
	}
	state := newFakeState()
	fetcher := &stubFetcher{snapshots: []*domain.Snapshot{snapshotWith(broken)}}
	w := buildWatcher(t, state, fetcher, &recordingSink{}, &recordingObserver{}, nil)

	_, err := w.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-creator")
}
