package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Strategy 限流算法策略接口
type Strategy interface {
	// Allow 检查是否允许通过
	// key: 限流标识 (如账号名或 IP)
	// limit: 时间窗口内的限制次数
	// window: 时间窗口
	Allow(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error)
}

// Manager 限流管理器
// rdb 为 nil 时（Redis 降级）一律放行，限流属于尽力而为
type Manager struct {
	rdb      *redis.Client
	strategy Strategy
}

func NewManager(rdb *redis.Client, strategy Strategy) *Manager {
	return &Manager{
		rdb:      rdb,
		strategy: strategy,
	}
}

// Allow 代理执行具体的策略
func (m *Manager) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.rdb == nil {
		return true, nil
	}
	return m.strategy.Allow(ctx, m.rdb, key, limit, window)
}

// 固定窗口 (Fixed Window / Counter)
type FixedWindowStrategy struct{}

func (s *FixedWindowStrategy) Allow(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error) {
	// Lua 脚本：原子性执行 INCR 和 EXPIRE
	const script = `
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])

		local current = redis.call("INCR", key)

		-- 第一次访问时设置过期时间
		if current == 1 then
			redis.call("EXPIRE", key, window)
		end

		if current > limit then
			return 0
		end
		return 1
	`

	result, err := rdb.Eval(ctx, script, []string{key}, limit, int(window.Seconds())).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}
