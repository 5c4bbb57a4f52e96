// Package dispatch 批次派发
//
// 枚举网络目录、校验批次完整性、准备共享目录，然后给每个网络
// 提交恰好一个流水线任务。提交之间相互独立，单个提交失败不
// 中止批次，只计入报告。
package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"netsurvey/internal/layout"
	"netsurvey/internal/queue"
	"netsurvey/pkg/logging"
)

// Options 一次批次派发的参数
type Options struct {
	NetworkDir  string
	PatternDir  string
	DatabaseDir string
	ResultsDir  string
	Solver      string
	Procs       int
	QueryScript string

	// 传递给每个流水线任务的清理策略标志
	RemoveNetwork  bool
	RemoveDatabase bool
}

// Network 批次中的一个网络
type Network struct {
	ID   string
	File string
}

// Report 批次派发报告
type Report struct {
	Total     int
	Submitted int
	Failed    int
}

// Dispatcher 批次派发器
// 不持有任何持久状态，每次 Run 是一个独立批次
type Dispatcher struct {
	opts   Options
	runner Runner
	log    *logging.Logger
}

// New 创建派发器
func New(opts Options, runner Runner, log *logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Default("dispatcher")
	}
	return &Dispatcher{opts: opts, runner: runner, log: log}
}

// Run 执行一次批次派发
//
// 枚举失败、批次校验失败、目录准备失败都在任何提交之前中止。
// 空网络目录是零提交的成功批次。
func (d *Dispatcher) Run(ctx context.Context) (*Report, error) {
	networks, err := EnumerateNetworks(d.opts.NetworkDir)
	if err != nil {
		return nil, err
	}

	if err := validateBatch(networks); err != nil {
		return nil, err
	}

	for _, dir := range []string{d.opts.DatabaseDir, d.opts.ResultsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("prepare directory %s: %w", dir, err)
		}
	}

	report := &Report{Total: len(networks)}
	for _, n := range networks {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		job := d.newJob(n)
		if err := d.runner.Submit(ctx, job); err != nil {
			report.Failed++
			d.log.WithError(err).Error("job submission failed",
				"network_id", n.ID, "runner", d.runner.Name())
			continue
		}
		report.Submitted++
		d.log.JobLog("submitted", job.JobID, n.ID, "runner", d.runner.Name())
	}

	d.log.Info("batch dispatched",
		"total", report.Total,
		"submitted", report.Submitted,
		"failed", report.Failed,
		"runner", d.runner.Name(),
	)
	return report, nil
}

// newJob 组装单网络流水线任务
func (d *Dispatcher) newJob(n Network) *queue.JobMessage {
	return &queue.JobMessage{
		JobID:          generateJobID(),
		NetworkID:      n.ID,
		NetworkFile:    n.File,
		PatternDir:     d.opts.PatternDir,
		DatabaseDir:    d.opts.DatabaseDir,
		ResultsDir:     d.opts.ResultsDir,
		Solver:         d.opts.Solver,
		Procs:          d.opts.Procs,
		QueryScript:    d.opts.QueryScript,
		RemoveNetwork:  d.opts.RemoveNetwork,
		RemoveDatabase: d.opts.RemoveDatabase,
	}
}

// EnumerateNetworks 枚举网络目录
//
// 目录下每个常规文件都必须是合法的 network<ID>.txt，解析失败
// 的文件名使整个枚举失败而不是被跳过。子目录被忽略。
// 目录为空返回空批次；目录不存在是错误。
func EnumerateNetworks(dir string) ([]Network, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read network dir %s: %w", dir, err)
	}

	var networks []Network
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, err := layout.NetworkIDFromFile(e.Name())
		if err != nil {
			return nil, fmt.Errorf("network dir %s: %w", dir, err)
		}
		networks = append(networks, Network{
			ID:   id,
			File: filepath.Join(dir, e.Name()),
		})
	}
	return networks, nil
}

// validateBatch 校验批次内 NetworkID 唯一
func validateBatch(networks []Network) error {
	seen := make(map[string]string, len(networks))
	for _, n := range networks {
		if prev, ok := seen[n.ID]; ok {
			return fmt.Errorf("duplicate network ID %q: %s and %s", n.ID, prev, n.File)
		}
		seen[n.ID] = n.File
	}
	return nil
}

// generateJobID 生成任务标识符
// 格式：job-xxxxxxxxxxxx（6 字节加密安全随机数的十六进制）
func generateJobID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return "job-" + hex.EncodeToString(b)
}
