// Package worker 队列 worker 测试
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"netsurvey/internal/queue"
)

// memQueue 内存任务队列，模拟消费和确认
type memQueue struct {
	mu      sync.Mutex
	pending []*queue.JobMessage
	acked   map[string]bool
	nextID  int
	grouped bool
}

func newMemQueue(jobs ...*queue.JobMessage) *memQueue {
	q := &memQueue{acked: make(map[string]bool)}
	for _, job := range jobs {
		q.nextID++
		job.ID = fmt.Sprintf("mem-%d", q.nextID)
		q.pending = append(q.pending, job)
	}
	return q
}

func (q *memQueue) SubmitJob(ctx context.Context, job *queue.JobMessage) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	job.ID = fmt.Sprintf("mem-%d", q.nextID)
	q.pending = append(q.pending, job)
	return job.ID, nil
}

func (q *memQueue) CreateConsumerGroup(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.grouped = true
	return nil
}

func (q *memQueue) ConsumeJobs(ctx context.Context, consumerID string, count int64, blockTimeout time.Duration) ([]*queue.JobMessage, error) {
	q.mu.Lock()
	n := int(count)
	if n > len(q.pending) {
		n = len(q.pending)
	}
	out := q.pending[:n:n]
	q.pending = q.pending[n:]
	q.mu.Unlock()

	if len(out) > 0 {
		return out, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Millisecond):
		return nil, nil
	}
}

func (q *memQueue) AckJob(ctx context.Context, messageID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked[messageID] = true
	return nil
}

func (q *memQueue) QueueLength(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.pending)), nil
}

func (q *memQueue) PendingCount(ctx context.Context) (int64, error) { return 0, nil }
func (q *memQueue) Close() error                                    { return nil }

func (q *memQueue) ackedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.acked)
}

var _ queue.JobQueue = (*memQueue)(nil)

// fakeArchiver 记录归档调用
type fakeArchiver struct {
	mu    sync.Mutex
	calls []string
}

func (a *fakeArchiver) ArchiveNetworkResults(ctx context.Context, resultsDir, networkID string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, networkID)
	return 1, nil
}

func testJob(networkID string) *queue.JobMessage {
	return &queue.JobMessage{
		JobID:       "job-" + networkID,
		NetworkID:   networkID,
		NetworkFile: "/data/networks/network" + networkID + ".txt",
		ResultsDir:  "/data/results",
	}
}

// startWorker 在后台运行 worker，返回停止函数
func startWorker(t *testing.T, w *Worker) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

// TestWorkerRunsAndAcks 所有任务被执行且确认，并发不超过上限
func TestWorkerRunsAndAcks(t *testing.T) {
	q := newMemQueue(testJob("1"), testJob("2"), testJob("3"), testJob("4"))

	var mu sync.Mutex
	cur, peak, launched := 0, 0, 0
	w := New(Config{WorkerID: "w-test", Concurrency: 2, ReadCount: 4}, q, nil, nil, nil)
	w.launch = func(ctx context.Context, job *queue.JobMessage) error {
		mu.Lock()
		cur++
		launched++
		if cur > peak {
			peak = cur
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		cur--
		mu.Unlock()
		return nil
	}

	stop := startWorker(t, w)
	defer stop()

	waitFor(t, "all jobs acked", func() bool { return q.ackedCount() == 4 })

	mu.Lock()
	defer mu.Unlock()
	if launched != 4 {
		t.Errorf("launched = %d, want 4", launched)
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	q.mu.Lock()
	grouped := q.grouped
	q.mu.Unlock()
	if !grouped {
		t.Error("expected consumer group to be created")
	}
}

// TestWorkerAcksFailedJobs 自身失败是终态，消息照常确认
func TestWorkerAcksFailedJobs(t *testing.T) {
	q := newMemQueue(testJob("9"))

	w := New(Config{WorkerID: "w-test", Concurrency: 1}, q, nil, nil, nil)
	w.launch = func(ctx context.Context, job *queue.JobMessage) error {
		return errors.New("pipeline exit status 2")
	}

	stop := startWorker(t, w)
	defer stop()

	waitFor(t, "failed job acked", func() bool { return q.ackedCount() == 1 })
}

// TestWorkerLeavesCancelledJobsPending 停机中断的任务不确认
func TestWorkerLeavesCancelledJobsPending(t *testing.T) {
	q := newMemQueue(testJob("5"))

	started := make(chan struct{})
	var once sync.Once
	w := New(Config{WorkerID: "w-test", Concurrency: 1}, q, nil, nil, nil)
	w.launch = func(ctx context.Context, job *queue.JobMessage) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}

	stop := startWorker(t, w)
	<-started
	stop()

	if q.ackedCount() != 0 {
		t.Errorf("acked = %d, want 0 after cancellation", q.ackedCount())
	}
}

// TestWorkerArchivesOnSuccess 成功任务触发归档，失败任务不触发
func TestWorkerArchivesOnSuccess(t *testing.T) {
	q := newMemQueue(testJob("1"), testJob("2"))

	arch := &fakeArchiver{}
	w := New(Config{WorkerID: "w-test", Concurrency: 1}, q, nil, arch, nil)
	w.launch = func(ctx context.Context, job *queue.JobMessage) error {
		if job.NetworkID == "2" {
			return errors.New("pipeline exit status 1")
		}
		return nil
	}

	stop := startWorker(t, w)
	defer stop()

	waitFor(t, "both jobs acked", func() bool { return q.ackedCount() == 2 })

	arch.mu.Lock()
	defer arch.mu.Unlock()
	if len(arch.calls) != 1 || arch.calls[0] != "1" {
		t.Errorf("archive calls = %v, want [1]", arch.calls)
	}
}

// TestClassifyExit 退出码归类
func TestClassifyExit(t *testing.T) {
	if got := classifyExit(nil); got != statusCompleted {
		t.Errorf("classifyExit(nil) = %v, want %v", got, statusCompleted)
	}
	if got := classifyExit(errors.New("boom")); got != statusFailed {
		t.Errorf("classifyExit(err) = %v, want %v", got, statusFailed)
	}
}

// TestNewDefaults 配置缺省回填
func TestNewDefaults(t *testing.T) {
	w := New(Config{}, queue.NewNoOpQueue(), nil, nil, nil)

	if w.config.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", w.config.Concurrency)
	}
	if w.config.ReadCount != 1 {
		t.Errorf("ReadCount = %d, want 1", w.config.ReadCount)
	}
	if w.config.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", w.config.ReadTimeout)
	}
	if w.config.WorkerID == "" {
		t.Error("expected WorkerID to fall back to hostname")
	}
}
