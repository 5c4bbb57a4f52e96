// Package main 单网络流水线入口
//
// 对一个网络执行完整流程：签名库构建、校验、汇总统计、
// 模式匹配循环、结果落盘、清理。退出码约定：
// 0 全部完成，1 签名库构建失败，2 其他错误。
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"netsurvey/internal/config"
	"netsurvey/internal/layout"
	"netsurvey/internal/pipeline"
	"netsurvey/pkg/logging"
)

func main() {
	configDir := flag.String("config", "", "配置文件目录")
	networkFile := flag.String("network", "", "网络描述文件 network<ID>.txt")
	networkID := flag.String("network-id", "", "网络 ID（默认从文件名解析）")
	patternDir := flag.String("pattern-dir", "", "模式根目录")
	databaseDir := flag.String("database-dir", "", "签名库目录")
	resultsDir := flag.String("results-dir", "", "结果目录")
	solverBin := flag.String("solver", "", "求解器可执行文件")
	mpiExec := flag.String("mpiexec", "", "MPI 启动器（none 表示直接运行求解器）")
	procs := flag.Int("procs", 0, "求解器并行进程数")
	matchBin := flag.String("match-bin", "", "匹配引擎可执行文件")
	queryScript := flag.String("query-script", "", "附加统计脚本（可选）")
	tokenUnique := flag.Bool("token-unique", false, "匹配条目按空白分词去重")
	removeAll := flag.Bool("remove-all", false, "无条件清理网络文件和签名库")
	removeNetwork := flag.Bool("remove-network", false, "结束时删除网络文件")
	removeDatabase := flag.Bool("remove-database", false, "结束时删除签名库")
	flag.Parse()

	if *configDir != "" {
		config.SetConfigDir(*configDir)
	}
	cfg := config.Load()

	if *networkFile == "" {
		log.Fatal("missing required flag: -network")
	}

	id := *networkID
	if id == "" {
		derived, err := layout.NetworkIDFromFile(*networkFile)
		if err != nil {
			log.Fatalf("cannot derive network ID: %v", err)
		}
		id = derived
	}

	mpi := firstNonEmpty(*mpiExec, cfg.Solver.MPIExec)
	if mpi == "none" {
		mpi = ""
	}

	logger := logging.Default("pipeline")

	solver := &pipeline.ExecSolver{
		Bin:     firstNonEmpty(*solverBin, cfg.Solver.Bin),
		MPIExec: mpi,
		Procs:   firstPositive(*procs, cfg.Solver.Procs),
		Log:     logger,
	}
	if solver.Bin == "" {
		log.Fatal("solver binary not configured (flag -solver or solver.bin)")
	}
	matcher := &pipeline.ExecMatcher{
		Bin: firstNonEmpty(*matchBin, cfg.Match.Bin),
		Log: logger,
	}

	opts := pipeline.Options{
		NetworkFile: *networkFile,
		NetworkID:   id,
		PatternDir:  firstNonEmpty(*patternDir, cfg.Paths.PatternDir),
		DatabaseDir: firstNonEmpty(*databaseDir, cfg.Paths.DatabaseDir),
		ResultsDir:  firstNonEmpty(*resultsDir, cfg.Paths.ResultsDir),
		QueryScript: *queryScript,
		TokenUnique: *tokenUnique,
		Cleanup: pipeline.CleanupPolicy{
			All:            *removeAll,
			RemoveNetwork:  *removeNetwork,
			RemoveDatabase: *removeDatabase,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down pipeline...")
		cancel()
	}()

	err := pipeline.New(opts, solver, matcher, logger).Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrDatabaseMissing):
		log.Printf("Build failed for network %s: %v", id, err)
		os.Exit(pipeline.ExitBuildFailed)
	default:
		log.Printf("Pipeline failed for network %s: %v", id, err)
		os.Exit(pipeline.ExitError)
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
