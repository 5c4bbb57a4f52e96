// Package main 批次分发入口
//
// 枚举网络目录、校验整个批次，然后为每个网络提交一个流水线任务。
// 批次校验失败（文件名不合法、网络 ID 重复）时整体中止，不提交任何任务。
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"netsurvey/internal/config"
	"netsurvey/internal/dispatch"
	"netsurvey/internal/queue"
	queueredis "netsurvey/internal/queue/redis"
	"netsurvey/pkg/logging"
)

func main() {
	configDir := flag.String("config", "", "配置文件目录")
	networkDir := flag.String("network-dir", "", "网络描述文件目录")
	patternDir := flag.String("pattern-dir", "", "模式根目录")
	databaseDir := flag.String("database-dir", "", "签名库目录")
	resultsDir := flag.String("results-dir", "", "结果目录")
	solverBin := flag.String("solver", "", "求解器可执行文件")
	procs := flag.Int("procs", 0, "求解器并行进程数")
	queryScript := flag.String("query-script", "", "附加统计脚本（可选）")
	runnerKind := flag.String("runner", dispatch.RunnerQueue, "任务运行方式: queue|slurm|local")
	removeNetwork := flag.Bool("remove-network", false, "流水线结束时删除网络文件")
	removeDatabase := flag.Bool("remove-database", false, "流水线结束时删除签名库")
	flag.Parse()

	if *configDir != "" {
		config.SetConfigDir(*configDir)
	}
	cfg := config.Load()

	opts := dispatch.Options{
		NetworkDir:     firstNonEmpty(*networkDir, cfg.Paths.NetworkDir),
		PatternDir:     firstNonEmpty(*patternDir, cfg.Paths.PatternDir),
		DatabaseDir:    firstNonEmpty(*databaseDir, cfg.Paths.DatabaseDir),
		ResultsDir:     firstNonEmpty(*resultsDir, cfg.Paths.ResultsDir),
		Solver:         firstNonEmpty(*solverBin, cfg.Solver.Bin),
		Procs:          firstPositive(*procs, cfg.Solver.Procs),
		QueryScript:    *queryScript,
		RemoveNetwork:  *removeNetwork,
		RemoveDatabase: *removeDatabase,
	}
	if opts.NetworkDir == "" {
		log.Fatal("network directory not configured (flag -network-dir or paths.network_dir)")
	}

	// 队列 runner 需要 Redis 连接，其余 runner 不建连
	var q queue.JobQueue
	if *runnerKind == dispatch.RunnerQueue {
		store, err := queueredis.NewStoreFromURL(cfg.RedisURL, queueredis.Options{
			Stream: cfg.Queue.Stream,
			Group:  cfg.Queue.Group,
			MaxLen: cfg.Queue.MaxLen,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer store.Close()
		q = store
	}

	runner, err := dispatch.NewRunner(*runnerKind, q)
	if err != nil {
		log.Fatalf("Runner unavailable: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down dispatcher...")
		cancel()
	}()

	logger := logging.Default("dispatcher")
	report, err := dispatch.New(opts, runner, logger).Run(ctx)
	if err != nil {
		log.Fatalf("Batch dispatch failed: %v", err)
	}
	log.Printf("Batch dispatched: %d/%d submitted (%d failed)", report.Submitted, report.Total, report.Failed)
	if report.Failed > 0 {
		os.Exit(1)
	}
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
