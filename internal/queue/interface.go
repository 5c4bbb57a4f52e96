// Package queue 任务队列抽象接口
//
// 提供流水线任务的提交和消费能力，当前由 Redis Streams 实现。
package queue

import (
	"context"
	"time"
)

// JobQueue 流水线任务队列接口
type JobQueue interface {
	// SubmitJob 提交一个单网络流水线任务
	SubmitJob(ctx context.Context, job *JobMessage) (string, error)
	CreateConsumerGroup(ctx context.Context) error
	ConsumeJobs(ctx context.Context, consumerID string, count int64, blockTimeout time.Duration) ([]*JobMessage, error)
	AckJob(ctx context.Context, messageID string) error
	QueueLength(ctx context.Context) (int64, error)
	PendingCount(ctx context.Context) (int64, error)
	Close() error
}
