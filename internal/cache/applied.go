package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AppliedSet 按候选人缓存已申请的职位 id 集合。
// Get 的 ok 为 false 表示该候选人尚未加载，调用方应回源读取后 Set。
// Add 只作用于已加载的集合，避免把单个 id 当成完整集合。
type AppliedSet interface {
	Get(ctx context.Context, candidateID string) (jobIDs []string, ok bool, err error)
	Set(ctx context.Context, candidateID string, jobIDs []string) error
	Add(ctx context.Context, candidateID, jobID string) error
	Remove(ctx context.Context, candidateID, jobID string) error
	Invalidate(ctx context.Context, candidateID string) error
}

// MemorySet 进程内实现。
type MemorySet struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// NewMemorySet 创建 MemorySet。
func NewMemorySet() *MemorySet {
	return &MemorySet{sets: make(map[string]map[string]struct{})}
}

func (m *MemorySet) Get(ctx context.Context, candidateID string) ([]string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.sets[candidateID]
	if !ok {
		return nil, false, nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, true, nil
}

func (m *MemorySet) Set(ctx context.Context, candidateID string, jobIDs []string) error {
	set := make(map[string]struct{}, len(jobIDs))
	for _, id := range jobIDs {
		set[id] = struct{}{}
	}
	m.mu.Lock()
	m.sets[candidateID] = set
	m.mu.Unlock()
	return nil
}

func (m *MemorySet) Add(ctx context.Context, candidateID, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.sets[candidateID]; ok {
		set[jobID] = struct{}{}
	}
	return nil
}

func (m *MemorySet) Remove(ctx context.Context, candidateID, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.sets[candidateID]; ok {
		delete(set, jobID)
	}
	return nil
}

func (m *MemorySet) Invalidate(ctx context.Context, candidateID string) error {
	m.mu.Lock()
	delete(m.sets, candidateID)
	m.mu.Unlock()
	return nil
}

// loadedMarker 让空集合在 Redis 中也有一个键，区分“已加载但为空”和“未加载”。
const loadedMarker = "\x00loaded"

// DefaultTTL Redis 中集合的过期时间。
const DefaultTTL = 10 * time.Minute

var addIfLoaded = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("SADD", KEYS[1], ARGV[1])
end
return 0
`)

// RedisSet 基于 Redis set 的实现，多个进程共享同一份缓存。
type RedisSet struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSet 创建 RedisSet，ttl 不大于 0 时使用 DefaultTTL。
func NewRedisSet(rdb *redis.Client, prefix string, ttl time.Duration) *RedisSet {
	if prefix == "" {
		prefix = "talent-mirror:applied:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSet{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisSet) key(candidateID string) string {
	return r.prefix + candidateID
}

func (r *RedisSet) Get(ctx context.Context, candidateID string) ([]string, bool, error) {
	members, err := r.rdb.SMembers(ctx, r.key(candidateID)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(members) == 0 {
		return nil, false, nil
	}
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m != loadedMarker {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, true, nil
}

func (r *RedisSet) Set(ctx context.Context, candidateID string, jobIDs []string) error {
	key := r.key(candidateID)
	members := make([]any, 0, len(jobIDs)+1)
	members = append(members, loadedMarker)
	for _, id := range jobIDs {
		members = append(members, id)
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	return err
}

func (r *RedisSet) Add(ctx context.Context, candidateID, jobID string) error {
	return addIfLoaded.Run(ctx, r.rdb, []string{r.key(candidateID)}, jobID).Err()
}

func (r *RedisSet) Remove(ctx context.Context, candidateID, jobID string) error {
	return r.rdb.SRem(ctx, r.key(candidateID), jobID).Err()
}

func (r *RedisSet) Invalidate(ctx context.Context, candidateID string) error {
	return r.rdb.Del(ctx, r.key(candidateID)).Err()
}
