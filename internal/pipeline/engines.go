// Package pipeline 单网络分析流水线
// 负责签名库构建、汇总统计、模式匹配循环、结果落盘与清理
package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"netsurvey/pkg/logging"
)

// Solver 签名库求解器
// 外部可执行程序：输入网络描述文件，产出 sqlite 签名库
type Solver interface {
	BuildDatabase(ctx context.Context, networkFile, databaseFile string) error
}

// Matcher 模式匹配引擎
// 外部可执行程序：在 StableFC 参数上匹配模式，逐行写出匹配条目
type Matcher interface {
	Match(ctx context.Context, networkFile, patternFile, stableFCFile, matchFile string) error
}

// ExecSolver 通过 mpiexec 调用求解器进程
type ExecSolver struct {
	Bin     string // 求解器可执行文件
	MPIExec string // MPI 启动器，空则直接运行 Bin
	Procs   int    // 并行进程数
	Log     *logging.Logger
}

// BuildDatabase 调用求解器构建签名库
// 阻塞直到求解器退出；求解器可能运行任意长时间，取消通过 ctx 传递
func (s *ExecSolver) BuildDatabase(ctx context.Context, networkFile, databaseFile string) error {
	var bin string
	var args []string
	if s.MPIExec != "" {
		bin = s.MPIExec
		args = []string{"-np", strconv.Itoa(s.Procs), s.Bin, networkFile, databaseFile}
	} else {
		bin = s.Bin
		args = []string{networkFile, databaseFile}
	}

	start := time.Now()
	err := runEngine(ctx, s.Log, "solver", bin, args)
	if s.Log != nil {
		s.Log.ExecLog("solver", bin, args, time.Since(start), err)
	}
	return err
}

// ExecMatcher 调用模式匹配引擎进程
type ExecMatcher struct {
	Bin string
	Log *logging.Logger
}

// Match 调用匹配引擎
// 参数顺序：网络文件、模式文件、StableFC 列表、匹配输出文件
func (m *ExecMatcher) Match(ctx context.Context, networkFile, patternFile, stableFCFile, matchFile string) error {
	args := []string{networkFile, patternFile, stableFCFile, matchFile}

	start := time.Now()
	err := runEngine(ctx, m.Log, "matcher", m.Bin, args)
	if m.Log != nil {
		m.Log.ExecLog("matcher", m.Bin, args, time.Since(start), err)
	}
	return err
}

// runEngine 启动外部引擎进程，流式记录 stdout，失败时带上 stderr 摘要
func runEngine(ctx context.Context, log *logging.Logger, engine, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = os.Environ()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%s stdout pipe: %w", engine, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%s stderr pipe: %w", engine, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s %s: %w", engine, bin, err)
	}

	// 异步收集 stderr 以便失败时带出错误信息
	var stderrBuf bytes.Buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		io.Copy(&stderrBuf, stderr)
	}()

	// 流式记录 stdout，增大缓冲区以处理大行
	scanner := bufio.NewScanner(stdout)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		if log != nil {
			log.Debug("engine output", "engine", engine, "line", scanner.Text())
		}
	}

	<-done
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", engine, ctx.Err())
		}
		if stderrBuf.Len() > 0 {
			return fmt.Errorf("%s %s: %w: %s", engine, bin, err, truncate(stderrBuf.String(), 512))
		}
		return fmt.Errorf("%s %s: %w", engine, bin, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
