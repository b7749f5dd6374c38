package domain_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fflughiraeth/srpusher/internal/domain"
)

func TestGenerateRoomID_Deterministic(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	id1, err := domain.GenerateRoomID(created, "夜更かし部屋", "actor-1")
	require.NoError(t, err)
	id2, err := domain.GenerateRoomID(created, "夜更かし部屋", "actor-1")
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "相同输入必须产生相同 id")
	assert.Len(t, id1, 64, "id 应为 sha256 的十六进制表示")

	// id 就是 createTime(RFC3339, UTC) + roomName 的 sha256
	sum := sha256.Sum256([]byte(created.Format(time.RFC3339) + "夜更かし部屋"))
	assert.Equal(t, hex.EncodeToString(sum[:]), id1)
}

func TestGenerateRoomID_ActorExcludedFromHash(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	id1, err := domain.GenerateRoomID(created, "room", "actor-a")
	require.NoError(t, err)
	id2, err := domain.GenerateRoomID(created, "room", "actor-b")
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "actor id 不参与 hash，不同 actor 不应改变 id")
}

func TestGenerateRoomID_NormalizesToUTC(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	utc := time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)
	local := time.Date(2024, 3, 1, 12, 0, 0, 0, jst) // 同一时刻

	id1, err := domain.GenerateRoomID(utc, "room", "actor")
	require.NoError(t, err)
	id2, err := domain.GenerateRoomID(local, "room", "actor")
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "同一时刻的不同时区表示应产生相同 id")
}

func TestGenerateRoomID_RequiresAllInputs(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	cases := []struct {
		name       string
		createTime time.Time
		roomName   string
		actorID    string
	}{
		{"empty createTime", time.Time{}, "room", "actor"},
		{"empty roomName", created, "", "actor"},
		{"empty actorID", created, "room", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.GenerateRoomID(tc.createTime, tc.roomName, tc.actorID)
			assert.Error(t, err)
		})
	}
}

func TestParseCreateTime(t *testing.T) {
	got, err := domain.ParseCreateTime("2024-03-01 12:30:00 GMT")
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, 30, got.Minute())

	_, err = domain.ParseCreateTime("")
	assert.Error(t, err, "空 createTime 应报错")

	_, err = domain.ParseCreateTime("not-a-time")
	assert.Error(t, err)
}

func TestMemberKey_CaseInsensitive(t *testing.T) {
	a := domain.Member{UserID: "AbCdEf"}
	b := domain.Member{UserID: "abcdef"}
	assert.Equal(t, a.Key(), b.Key(), "userId 的比较必须大小写不敏感")
}

func TestRoomIsZero(t *testing.T) {
	var nilRoom *domain.Room
	assert.True(t, nilRoom.IsZero())
	assert.True(t, (&domain.Room{}).IsZero())
	assert.False(t, (&domain.Room{RoomName: "r", CreateTime: "2024-03-01 12:30:00 GMT"}).IsZero())
}
