package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/paeinovis/RETRHO-administrative/config"
	pkgerrors "github.com/paeinovis/RETRHO-administrative/pkg/errors"
)

// Client Redis 客户端封装
// 用于多实例部署下的单写者锁与接口限流
type Client struct {
	rdb     *goredis.Client
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Client{rdb: rdb, lockTTL: ttl, logger: logger}, nil
}

// ── 单写者锁 ──

const (
	lockPrefix        = "retrho:lock:"
	lockRetryInterval = 50 * time.Millisecond
)

// 仅当值仍为本次持有的 token 时删除，避免误删他人续上的锁
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lock 获取 key 上的互斥锁，阻塞直到成功或 ctx 结束
// 返回的 unlock 必须调用一次
func (c *Client) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := lockPrefix + key
	token := uuid.NewString()

	for {
		ok, err := c.rdb.SetNX(ctx, lockKey, token, c.lockTTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, pkgerrors.ErrLockNotAcquired
			}
			return nil, fmt.Errorf("获取锁 %s 失败: %w", key, err)
		}
		if ok {
			return func() { c.unlock(lockKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, pkgerrors.ErrLockNotAcquired
		case <-time.After(lockRetryInterval):
		}
	}
}

func (c *Client) unlock(lockKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, c.rdb, []string{lockKey}, token).Err(); err != nil {
		c.logger.Warn("释放锁失败，等待 TTL 过期", zap.String("key", lockKey), zap.Error(err))
	}
}

// ── 限流 ──

const rateLimitPrefix = "retrho:ratelimit:"

// CheckRateLimit 滑动窗口限流，返回本次请求是否放行
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	redisKey := rateLimitPrefix + key
	windowStart := now.Add(-window).UnixNano()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, redisKey, goredis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	card := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return card.Val() <= int64(limit), nil
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
