// Package main 队列 Worker 入口
//
// 从 Redis Stream 消费流水线任务，按并发上限拉起流水线进程，
// 任务结束后确认消息；可选地把结果文件归档到对象存储。
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netsurvey/internal/archive"
	"netsurvey/internal/config"
	queueredis "netsurvey/internal/queue/redis"
	"netsurvey/internal/worker"
	"netsurvey/pkg/logging"
)

func main() {
	configDir := flag.String("config", "", "配置文件目录")
	workerID := flag.String("worker-id", "", "Worker 标识（默认主机名）")
	concurrency := flag.Int("concurrency", 0, "并发流水线进程数")
	pipelineBin := flag.String("pipeline-bin", "", "流水线可执行文件")
	matchBin := flag.String("match-bin", "", "传给流水线的匹配引擎可执行文件")
	mpiExec := flag.String("mpiexec", "", "传给流水线的 MPI 启动器")
	metricsPort := flag.String("metrics-port", "", "Prometheus 指标端口（空则不启动）")
	flag.Parse()

	if *configDir != "" {
		config.SetConfigDir(*configDir)
	}
	cfg := config.Load()

	id := firstNonEmpty(*workerID, cfg.Worker.ID)

	store, err := queueredis.NewStoreFromURL(cfg.RedisURL, queueredis.Options{
		Stream: cfg.Queue.Stream,
		Group:  cfg.Queue.Group,
		MaxLen: cfg.Queue.MaxLen,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer store.Close()

	metrics := worker.NewMetrics("netsurvey", id)

	// 归档客户端失败只降级，不阻止 Worker 启动
	var archiver worker.ResultArchiver
	if cfg.Archive.Enabled {
		client, err := archive.NewClient(cfg.Archive)
		if err != nil {
			log.Printf("Warning: archive client unavailable, results stay local: %v", err)
		} else {
			bctx, bcancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := client.EnsureBucket(bctx); err != nil {
				log.Printf("Warning: archive bucket unavailable, results stay local: %v", err)
			} else {
				archiver = client
			}
			bcancel()
		}
	}

	logger := logging.Default("worker")
	w := worker.New(worker.Config{
		WorkerID:    id,
		Concurrency: firstPositive(*concurrency, cfg.Worker.Concurrency),
		PipelineBin: firstNonEmpty(*pipelineBin, cfg.Worker.PipelineBin),
		MatchBin:    firstNonEmpty(*matchBin, cfg.Match.Bin),
		MPIExec:     firstNonEmpty(*mpiExec, cfg.Solver.MPIExec),
		ReadCount:   int64(cfg.Queue.ReadCount),
		ReadTimeout: cfg.Queue.ReadTimeout,
	}, store, metrics, archiver, logger)

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down worker...")
		cancel()
	}()

	// 指标端点独立于任务循环，随进程退出一起关闭
	var metricsSrv *http.Server
	if port := firstNonEmpty(*metricsPort, cfg.Worker.MetricsPort); port != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", worker.MetricsHandler())
		metricsSrv = &http.Server{Addr: ":" + port, Handler: mux}
		go func() {
			log.Printf("Metrics listening on :%s/metrics", port)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	if err := w.Start(ctx); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		metricsSrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	log.Println("Worker stopped")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
