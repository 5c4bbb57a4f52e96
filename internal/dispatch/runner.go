// Package dispatch 任务提交后端接口和实现
package dispatch

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"

	"netsurvey/internal/queue"
)

// Runner 任务提交后端接口
//
// 所有后端必须实现此接口。后端只负责把任务送出去，
// 任务之后独立运行，可能安静失败也可能响亮失败。
type Runner interface {
	// Name 返回后端名称（用于日志和选择器）
	Name() string

	// Submit 提交一个流水线任务
	Submit(ctx context.Context, job *queue.JobMessage) error
}

// 后端选择器的合法取值
const (
	RunnerQueue = "queue"
	RunnerSlurm = "slurm"
	RunnerLocal = "local"
)

// NewRunner 按选择器创建提交后端
//
// slurm 和 local 是被识别但未实现的后端，返回 NotImplemented
// 而不是静默空转。未知选择器返回 InvalidArgument。
func NewRunner(kind string, q queue.JobQueue) (Runner, error) {
	switch kind {
	case RunnerQueue:
		return &QueueRunner{q: q}, nil
	case RunnerSlurm, RunnerLocal:
		return nil, fmt.Errorf("%w: runner %q", errdefs.ErrNotImplemented, kind)
	default:
		return nil, fmt.Errorf("%w: unknown runner %q", errdefs.ErrInvalidArgument, kind)
	}
}

// QueueRunner 队列提交后端
// 把任务写入 Redis Streams，由 worker 进程消费执行
type QueueRunner struct {
	q queue.JobQueue
}

// NewQueueRunner 创建队列提交后端
func NewQueueRunner(q queue.JobQueue) *QueueRunner {
	return &QueueRunner{q: q}
}

// Name 返回后端名称
func (r *QueueRunner) Name() string {
	return RunnerQueue
}

// Submit 把任务写入队列
func (r *QueueRunner) Submit(ctx context.Context, job *queue.JobMessage) error {
	if _, err := r.q.SubmitJob(ctx, job); err != nil {
		return fmt.Errorf("submit job %s to queue: %w", job.JobID, err)
	}
	return nil
}
