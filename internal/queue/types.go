// Package queue 任务队列类型定义
package queue

import (
	"time"
)

// JobMessage 单网络流水线任务
//
// 消息自带完整的流水线调用参数，worker 不需要回读派发方的
// 配置即可发起流水线进程。
type JobMessage struct {
	ID          string // 队列消息 ID，消费时填充
	JobID       string
	NetworkID   string
	NetworkFile string
	PatternDir  string
	DatabaseDir string
	ResultsDir  string
	Solver      string
	Procs       int
	QueryScript string

	// 清理策略标志
	RemoveNetwork  bool
	RemoveDatabase bool

	SubmittedAt time.Time
}

// ============================================================================
// 流名和常量
// ============================================================================

const (
	// 任务流 - 存放待执行的单网络流水线任务
	DefaultStream = "survey:jobs"

	// 消费者组
	DefaultGroup = "workers"
)
