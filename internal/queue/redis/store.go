// Package redis Redis Streams 任务队列实现
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"netsurvey/internal/queue"
)

// Options 队列存储参数
// 零值字段回退到包级默认值
type Options struct {
	Stream string
	Group  string
	MaxLen int64 // 流长度上限（近似裁剪）
}

func (o Options) withDefaults() Options {
	if o.Stream == "" {
		o.Stream = queue.DefaultStream
	}
	if o.Group == "" {
		o.Group = queue.DefaultGroup
	}
	if o.MaxLen <= 0 {
		o.MaxLen = 100000
	}
	return o
}

// Store Redis 任务队列存储
type Store struct {
	client *redis.Client
	opts   Options
}

// NewStore 创建 Redis 任务队列实例
func NewStore(addr, password string, db int, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[Redis/Queue] Connected to %s", addr)
	return &Store{client: client, opts: opts.withDefaults()}, nil
}

// NewStoreFromURL 从 URL 创建 Redis 任务队列实例
func NewStoreFromURL(redisURL string, opts Options) (*Store, error) {
	ro, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(ro)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[Redis/Queue] Connected to %s", ro.Addr)
	return &Store{client: client, opts: opts.withDefaults()}, nil
}

// NewStoreFromClient 从现有 Redis 客户端创建任务队列实例
func NewStoreFromClient(client *redis.Client, opts Options) *Store {
	return &Store{client: client, opts: opts.withDefaults()}
}

// Close 关闭 Redis 连接
func (s *Store) Close() error {
	return s.client.Close()
}

// Client 返回底层 Redis 客户端
func (s *Store) Client() *redis.Client {
	return s.client
}

// 确保 Store 实现了 JobQueue 接口
var _ queue.JobQueue = (*Store)(nil)
