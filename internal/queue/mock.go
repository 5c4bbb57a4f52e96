// Package queue 任务队列 mock 实现
package queue

import (
	"context"
	"time"
)

// ============================================================================
// NoOpQueue - 空操作的 JobQueue 实现（用于测试）
// ============================================================================

// NoOpQueue 是一个不做任何操作的 JobQueue 实现
type NoOpQueue struct{}

// NewNoOpQueue 创建 NoOpQueue 实例
func NewNoOpQueue() *NoOpQueue {
	return &NoOpQueue{}
}

// Close 关闭队列
func (q *NoOpQueue) Close() error {
	return nil
}

func (q *NoOpQueue) SubmitJob(ctx context.Context, job *JobMessage) (string, error) {
	return "", nil
}
func (q *NoOpQueue) CreateConsumerGroup(ctx context.Context) error {
	return nil
}
func (q *NoOpQueue) ConsumeJobs(ctx context.Context, consumerID string, count int64, blockTimeout time.Duration) ([]*JobMessage, error) {
	return []*JobMessage{}, nil
}
func (q *NoOpQueue) AckJob(ctx context.Context, messageID string) error {
	return nil
}
func (q *NoOpQueue) QueueLength(ctx context.Context) (int64, error) {
	return 0, nil
}
func (q *NoOpQueue) PendingCount(ctx context.Context) (int64, error) {
	return 0, nil
}

// 确保 NoOpQueue 实现了 JobQueue 接口
var _ JobQueue = (*NoOpQueue)(nil)
