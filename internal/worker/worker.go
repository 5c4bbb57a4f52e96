// Package worker 队列 worker
//
// 消费任务流，为每个任务发起一个独立的流水线进程（保持按网络
// 的磁盘缓存语义），有限并发，处理完确认消息。可选地把成功
// 任务的结果记录归档到对象存储。
package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"netsurvey/internal/pipeline"
	"netsurvey/internal/queue"
	"netsurvey/pkg/logging"
)

// 任务终态
const (
	statusCompleted   = "completed"
	statusBuildFailed = "build_failed"
	statusFailed      = "failed"
)

// ResultArchiver 结果归档接口
type ResultArchiver interface {
	ArchiveNetworkResults(ctx context.Context, resultsDir, networkID string) (int, error)
}

// Config worker 配置
type Config struct {
	WorkerID    string
	Concurrency int    // 同时运行的流水线进程数
	PipelineBin string // 流水线可执行文件
	MatchBin    string // 传给流水线的匹配引擎
	MPIExec     string // 传给流水线的 MPI 启动器
	ReadCount   int64
	ReadTimeout time.Duration
}

// Worker 队列 worker
type Worker struct {
	config   Config
	queue    queue.JobQueue
	metrics  *Metrics
	archiver ResultArchiver
	log      *logging.Logger

	sem chan struct{}
	wg  sync.WaitGroup

	mu      sync.Mutex
	running map[string]string // jobID → networkID

	// 测试替身入口
	launch func(ctx context.Context, job *queue.JobMessage) error
}

// New 创建 worker
// metrics 和 archiver 都可以为 nil（关闭对应能力）
func New(cfg Config, q queue.JobQueue, metrics *Metrics, archiver ResultArchiver, logger *logging.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ReadCount <= 0 {
		cfg.ReadCount = 1
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WorkerID == "" {
		hostname, _ := os.Hostname()
		cfg.WorkerID = hostname
	}
	if logger == nil {
		logger = logging.Default("worker")
	}

	w := &Worker{
		config:   cfg,
		queue:    q,
		metrics:  metrics,
		archiver: archiver,
		log:      logger,
		sem:      make(chan struct{}, cfg.Concurrency),
		running:  make(map[string]string),
	}
	w.launch = w.launchPipeline
	return w
}

// Start 启动消费循环，阻塞直到 ctx 取消且在途任务全部退出
func (w *Worker) Start(ctx context.Context) error {
	if err := w.queue.CreateConsumerGroup(ctx); err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}

	log.Printf("Worker started: %s (concurrency=%d)", w.config.WorkerID, w.config.Concurrency)

	for ctx.Err() == nil {
		if n, err := w.queue.QueueLength(ctx); err == nil {
			w.metrics.SetQueueLength(n)
		}

		jobs, err := w.queue.ConsumeJobs(ctx, w.config.WorkerID, w.config.ReadCount, w.config.ReadTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			w.metrics.RecordConsumeError()
			w.log.WithError(err).Error("consume failed, backing off")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, job := range jobs {
			select {
			case w.sem <- struct{}{}:
				w.wg.Add(1)
				go w.runJob(ctx, job)
			case <-ctx.Done():
				// 未分发的消息不确认，留在 pending
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	w.wg.Wait()
	log.Printf("Worker stopped: %s", w.config.WorkerID)
	return nil
}

// Running 当前在途任务数
func (w *Worker) Running() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.running)
}

// runJob 执行单个任务直到终态并确认消息
//
// ctx 取消导致的中断不确认：消息留在 pending，由运维通过
// XAUTOCLAIM 或重新投递恢复。自身失败是终态，照常确认。
func (w *Worker) runJob(ctx context.Context, job *queue.JobMessage) {
	defer w.wg.Done()
	defer func() { <-w.sem }()

	w.mu.Lock()
	w.running[job.JobID] = job.NetworkID
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.running, job.JobID)
		w.mu.Unlock()
	}()

	jobLog := w.log.WithJobID(job.JobID).WithNetworkID(job.NetworkID)
	jobLog.Info("job started", "worker_id", w.config.WorkerID)

	start := time.Now()
	w.metrics.RecordJobStart()
	err := w.launch(ctx, job)
	status := classifyExit(err)
	w.metrics.RecordJobComplete(status, time.Since(start))

	if err != nil && ctx.Err() != nil {
		jobLog.Warn("job interrupted by shutdown, message left pending")
		return
	}

	if err != nil {
		jobLog.WithError(err).WithDuration(time.Since(start)).Error("job failed", "status", status)
	} else {
		jobLog.WithDuration(time.Since(start)).Info("job completed")
	}

	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if ackErr := w.queue.AckJob(ackCtx, job.ID); ackErr != nil {
		jobLog.WithError(ackErr).Warn("ack failed, message may be redelivered")
	}

	if err == nil && w.archiver != nil {
		archiveCtx, cancelArchive := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		w.archiveResults(archiveCtx, job, jobLog)
		cancelArchive()
	}
}

// archiveResults 镜像该网络的结果记录，失败只告警
func (w *Worker) archiveResults(ctx context.Context, job *queue.JobMessage, jobLog *logging.Logger) {
	uploaded, err := w.archiver.ArchiveNetworkResults(ctx, job.ResultsDir, job.NetworkID)
	if err != nil {
		w.metrics.RecordArchive(uploaded, false)
		jobLog.WithError(err).Warn("archive failed", "uploaded", uploaded)
		return
	}
	w.metrics.RecordArchive(uploaded, true)
	jobLog.Info("results archived", "uploaded", uploaded)
}

// launchPipeline 发起流水线进程并等待退出
func (w *Worker) launchPipeline(ctx context.Context, job *queue.JobMessage) error {
	args := []string{
		"-network", job.NetworkFile,
		"-network-id", job.NetworkID,
		"-pattern-dir", job.PatternDir,
		"-database-dir", job.DatabaseDir,
		"-results-dir", job.ResultsDir,
	}
	if job.Solver != "" {
		args = append(args, "-solver", job.Solver)
	}
	if job.Procs > 0 {
		args = append(args, "-procs", strconv.Itoa(job.Procs))
	}
	if w.config.MatchBin != "" {
		args = append(args, "-match-bin", w.config.MatchBin)
	}
	if w.config.MPIExec != "" {
		args = append(args, "-mpiexec", w.config.MPIExec)
	}
	if job.QueryScript != "" {
		args = append(args, "-query-script", job.QueryScript)
	}
	if job.RemoveNetwork {
		args = append(args, "-remove-network")
	}
	if job.RemoveDatabase {
		args = append(args, "-remove-database")
	}

	cmd := exec.CommandContext(ctx, w.config.PipelineBin, args...)
	cmd.Env = os.Environ()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("pipeline stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start pipeline %s: %w", w.config.PipelineBin, err)
	}

	// 流水线进程自己写结构化日志，这里整行透传
	scanner := bufio.NewScanner(stdout)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		log.Printf("[pipeline/%s] %s", job.NetworkID, scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("pipeline cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("pipeline %s network %s: %w", w.config.PipelineBin, job.NetworkID, err)
	}
	return nil
}

// classifyExit 按退出码归类任务终态
func classifyExit(err error) string {
	if err == nil {
		return statusCompleted
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == pipeline.ExitBuildFailed {
		return statusBuildFailed
	}
	return statusFailed
}
