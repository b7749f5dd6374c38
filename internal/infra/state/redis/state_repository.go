package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/domain"
	"github.com/fflughiraeth/srpusher/internal/repository"
)

// Key 命名空间的 TTL 约定：
//   实体详情缓存 1 小时 (比在线集合短得多，但总能在下次抓取前存活)，
//   在线集合 1 周，关键词去重标记 1 小时 (每次命中延长)。
const (
	entityCacheTTL = 1 * time.Hour
	presenceTTL    = 7 * 24 * time.Hour
	keywordTTL     = 1 * time.Hour
)

// RedisStateRepository 是 StateRepository 接口的 Redis 实现。
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例。
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "srp:"
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---

func (r *RedisStateRepository) userCacheKey(userID string) string {
	return r.keyPrefix + "user-cache:" + strings.ToLower(userID)
}

func (r *RedisStateRepository) roomCacheKey(roomID string) string {
	return r.keyPrefix + "room-cache:" + roomID
}

func (r *RedisStateRepository) setKey(name string) string {
	return r.keyPrefix + name
}

func (r *RedisStateRepository) keywordKey(keyword string) string {
	return r.keyPrefix + "keyword:" + keyword
}

func (r *RedisStateRepository) waitKey() string {
	return r.keyPrefix + "previous_wait_sec"
}

// --- Entity detail cache ---

// SaveUser 缓存成员详情。下线成员的信息必须被缓存，否则之后就是 UNKNOWN。
func (r *RedisStateRepository) SaveUser(ctx context.Context, member *domain.Member) error {
	if member == nil || member.UserID == "" {
		return nil // 上游偶尔出现无 userId 的成员 (旧客户端/测试房间)，静默跳过
	}
	data, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal user %s: %w", member.Key(), err)
	}
	key := r.userCacheKey(member.UserID)
	if err := r.client.Set(ctx, key, data, entityCacheTTL).Err(); err != nil {
		return fmt.Errorf("redis: failed to save user cache on key %s: %w", key, err)
	}
	return nil
}

// GetUser 读取成员缓存 (unreliable —— 可能已过期)。
func (r *RedisStateRepository) GetUser(ctx context.Context, userID string) (*domain.Member, error) {
	key := r.userCacheKey(userID)
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("redis: failed to get user cache from %s: %w", key, err)
	}
	var member domain.Member
	if err := json.Unmarshal([]byte(data), &member); err != nil {
		// 缓存损坏按未命中处理，调用方把它当作 unknown
		logrus.WithField("key", key).WithError(err).Warn("Corrupt user cache entry, treating as miss")
		return nil, repository.ErrUserNotFound
	}
	return &member, nil
}

// SaveRoom 缓存房间详情。
func (r *RedisStateRepository) SaveRoom(ctx context.Context, roomID string, room *domain.Room) error {
	if roomID == "" || room == nil {
		return nil
	}
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal room %s: %w", roomID, err)
	}
	key := r.roomCacheKey(roomID)
	if err := r.client.Set(ctx, key, data, entityCacheTTL).Err(); err != nil {
		return fmt.Errorf("redis: failed to save room cache on key %s: %w", key, err)
	}
	return nil
}

// GetRoom 读取房间缓存 (unreliable)。
func (r *RedisStateRepository) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if roomID == "" {
		return nil, repository.ErrRoomNotFound
	}
	key := r.roomCacheKey(roomID)
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("redis: failed to get room cache from %s: %w", key, err)
	}
	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		logrus.WithField("key", key).WithError(err).Warn("Corrupt room cache entry, treating as miss")
		return nil, repository.ErrRoomNotFound
	}
	return &room, nil
}

// --- Presence sets ---

// ReplaceSet 清空并重建在线集合。绝不增量更新。
func (r *RedisStateRepository) ReplaceSet(ctx context.Context, key string, ids []string) error {
	fullKey := r.setKey(key)
	pipe := r.client.Pipeline()
	pipe.Del(ctx, fullKey)
	for _, id := range ids {
		if id == "" {
			continue
		}
		pipe.SAdd(ctx, fullKey, id)
	}
	pipe.Expire(ctx, fullKey, presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to replace set %s: %w", fullKey, err)
	}
	return nil
}

// DiffSets 返回 key1 − key2。
func (r *RedisStateRepository) DiffSets(ctx context.Context, key1, key2 string) ([]string, error) {
	diff, err := r.client.SDiff(ctx, r.setKey(key1), r.setKey(key2)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to diff sets %s/%s: %w", key1, key2, err)
	}
	return diff, nil
}

// AdvanceSet 推进世代：previous := current。
// 用 RENAME 做原子交换，避免原先 复制+删除 两步之间的别名窗口；
// 可观测语义不变 (previous 恰好等于上个周期的 current)。
func (r *RedisStateRepository) AdvanceSet(ctx context.Context, src, dst string, retain bool) error {
	srcKey, dstKey := r.setKey(src), r.setKey(dst)
	if retain {
		// 调试保留模式：current 留在原地供检查，下个周期会被整体重建
		pipe := r.client.Pipeline()
		pipe.Del(ctx, dstKey)
		pipe.SInterStore(ctx, dstKey, srcKey)
		pipe.Expire(ctx, dstKey, presenceTTL)
		pipe.Expire(ctx, srcKey, presenceTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis: failed to advance set %s -> %s (retain): %w", src, dst, err)
		}
		return nil
	}

	n, err := r.client.Exists(ctx, srcKey).Result()
	if err != nil {
		return fmt.Errorf("redis: failed to check set %s: %w", src, err)
	}
	if n == 0 {
		// current 为空 (Redis 不保存空集合)；previous 也应变为空
		if err := r.client.Del(ctx, dstKey).Err(); err != nil {
			return fmt.Errorf("redis: failed to clear set %s: %w", dst, err)
		}
		return nil
	}
	if err := r.client.Rename(ctx, srcKey, dstKey).Err(); err != nil {
		return fmt.Errorf("redis: failed to advance set %s -> %s: %w", src, dst, err)
	}
	if err := r.client.Expire(ctx, dstKey, presenceTTL).Err(); err != nil {
		return fmt.Errorf("redis: failed to touch set %s: %w", dst, err)
	}
	return nil
}

// --- Keyword dedup markers ---

// MarkKeyword 检查并记录关键词命中 (check 即 mark，滑动窗口)。
func (r *RedisStateRepository) MarkKeyword(ctx context.Context, keyword string) (bool, error) {
	key := r.keywordKey(keyword)
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check keyword marker %s: %w", key, err)
	}
	if n > 0 {
		// 已在窗口内：延长窗口 (sliding，不是 fixed)
		if err := r.client.Expire(ctx, key, keywordTTL).Err(); err != nil {
			return true, fmt.Errorf("redis: failed to extend keyword marker %s: %w", key, err)
		}
		return true, nil
	}
	if err := r.client.Set(ctx, key, "1", keywordTTL).Err(); err != nil {
		return false, fmt.Errorf("redis: failed to set keyword marker %s: %w", key, err)
	}
	return false, nil
}

// --- Controller state ---

// PreviousWait 读取控制器的上一个平滑等待值。
func (r *RedisStateRepository) PreviousWait(ctx context.Context) (float64, error) {
	data, err := r.client.Get(ctx, r.waitKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("redis: failed to get previous wait: %w", err)
	}
	value, err := strconv.ParseFloat(data, 64)
	if err != nil {
		logrus.WithField("value", data).WithError(err).Warn("Corrupt previous_wait_sec, treating as unset")
		return 0, repository.ErrNotFound
	}
	return value, nil
}

// SavePreviousWait 持久化平滑等待值 (控制器状态没有规定 TTL)。
func (r *RedisStateRepository) SavePreviousWait(ctx context.Context, seconds float64) error {
	value := strconv.FormatFloat(seconds, 'f', -1, 64)
	if err := r.client.Set(ctx, r.waitKey(), value, 0).Err(); err != nil {
		return fmt.Errorf("redis: failed to save previous wait: %w", err)
	}
	return nil
}
