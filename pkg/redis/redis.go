package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"library-lending/config"
)

// ErrLockNotHeld 解锁时锁已过期或被其他进程持有
var ErrLockNotHeld = errors.New("分布式锁未持有")

// Client Redis 客户端封装
// 当前用于定时扫描任务的分布式锁
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
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

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 扫描任务分布式锁 ──

const lockPrefix = "lending:lock:"

// 仅当值仍为本进程令牌时删除，避免误删他人续上的锁
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockKey 返回锁在 Redis 中的完整键名
func LockKey(name string) string {
	return lockPrefix + name
}

// TryLock SET NX PX 获取锁；已被占用时返回 ("", false, nil)
func (c *Client) TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, LockKey(name), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock 释放 TryLock 取得的锁
func (c *Client) Unlock(ctx context.Context, name, token string) error {
	n, err := unlockScript.Run(ctx, c.rdb, []string{LockKey(name)}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		c.logger.Warn("释放分布式锁时锁已不属于本进程", zap.String("lock", name))
		return ErrLockNotHeld
	}
	return nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
