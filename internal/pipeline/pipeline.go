package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"netsurvey/internal/layout"
	"netsurvey/internal/query"
	"netsurvey/internal/result"
	"netsurvey/internal/summary"
	"netsurvey/pkg/logging"
)

// ErrDatabaseMissing 求解器运行后签名库文件不存在
// 唯一的致命失败：调用方据此退出非零，不做清理
var ErrDatabaseMissing = errors.New("signature database missing after solver run")

// 流水线进程退出码约定
// worker 据此区分构建失败和其他错误
const (
	ExitOK          = 0
	ExitBuildFailed = 1
	ExitError       = 2
)

// CleanupPolicy 清理策略
// All 为无条件变体：总是删除网络文件、签名库和 StableFC 列表。
// 否则按标志逐项删除。不存在的文件删除是空操作。
type CleanupPolicy struct {
	All            bool
	RemoveNetwork  bool
	RemoveDatabase bool
}

// Options 单网络流水线参数
type Options struct {
	NetworkFile string
	NetworkID   string
	PatternDir  string
	DatabaseDir string
	ResultsDir  string
	QueryScript string // 可选：附加统计脚本
	TokenUnique bool   // 匹配条目按空白分词去重（默认整行去重）
	Cleanup     CleanupPolicy
}

// Pipeline 单网络分析流水线
//
// 状态机：BUILD_DB → VERIFY_DB → DERIVE_BASE_SUMMARY →
// (PATTERN_BRANCH | NO_PATTERN_BRANCH) → CLEANUP。
// 每个实例独占自己网络的签名库和 StableFC 列表生命周期。
type Pipeline struct {
	opts    Options
	solver  Solver
	matcher Matcher
	sink    *result.Sink
	log     *logging.Logger

	// 测试替身入口
	stableFC func(ctx context.Context, db *query.DB, listPath string) (int, bool, error)
}

// New 创建流水线实例
func New(opts Options, solver Solver, matcher Matcher, log *logging.Logger) *Pipeline {
	if log == nil {
		log = logging.Default("pipeline")
	}
	return &Pipeline{
		opts:     opts,
		solver:   solver,
		matcher:  matcher,
		sink:     result.NewSink(opts.ResultsDir),
		log:      log.WithNetworkID(opts.NetworkID),
		stableFC: query.EnsureStableFCList,
	}
}

// Run 执行完整流水线
//
// 返回 nil 表示两个分支之一完整走完。唯一约定的非零退出场景是
// VERIFY_DB 失败（errors.Is(err, ErrDatabaseMissing)），此时网络内容
// 已写入诊断日志，中间产物保留现场。
func (p *Pipeline) Run(ctx context.Context) error {
	id, err := layout.NetworkIDFromFile(p.opts.NetworkFile)
	if err != nil {
		return err
	}
	if id != p.opts.NetworkID {
		return fmt.Errorf("network file %s carries ID %q but job says %q",
			p.opts.NetworkFile, id, p.opts.NetworkID)
	}

	networkData, err := os.ReadFile(p.opts.NetworkFile)
	if err != nil {
		return fmt.Errorf("read network file: %w", err)
	}
	network := string(networkData)

	dbFile := layout.DatabaseFile(p.opts.DatabaseDir, id)
	listPath := layout.StableFCListFile(p.opts.DatabaseDir, id)

	// BUILD_DB：阻塞直到求解器退出
	buildErr := p.solver.BuildDatabase(ctx, p.opts.NetworkFile, dbFile)
	if buildErr != nil && ctx.Err() != nil {
		return buildErr
	}

	// VERIFY_DB：唯一的致命判定是签名库文件是否存在
	if _, err := os.Stat(dbFile); err != nil {
		if buildErr == nil {
			buildErr = err
		}
		p.dumpNetwork(network, buildErr)
		return fmt.Errorf("%w: %s: %v", ErrDatabaseMissing, dbFile, buildErr)
	}
	if buildErr != nil {
		p.log.WithError(buildErr).Warn("solver exited with error but database exists, continuing")
	}

	db, err := query.Open(dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	// DERIVE_BASE_SUMMARY
	var sum summary.Record
	paramCount, err := db.ParameterCount(ctx)
	if err != nil {
		return err
	}
	sum.AddInt(summary.KeyParameterCount, paramCount)

	if p.opts.QueryScript != "" {
		p.appendQueryStats(ctx, &sum, dbFile)
	}

	// 分支判定：模式子目录按内容判空，目录不存在等同于空
	patternNames, err := listPatternFiles(layout.NetworkPatternDir(p.opts.PatternDir, id))
	if err != nil {
		return err
	}

	if len(patternNames) == 0 {
		rec := result.New(p.opts.NetworkFile, network, sum.String())
		if _, err := p.sink.Write(id, "", rec); err != nil {
			return err
		}
		p.log.Info("no patterns, single record emitted", "parameter_count", paramCount)
	} else {
		count, computed, err := p.stableFC(ctx, db, listPath)
		if err != nil {
			return err
		}
		if computed {
			sum.AddInt(summary.KeyStableFCParameterCount, count)
			p.log.Info("stable FC list computed", "count", count)
		}

		for _, name := range patternNames {
			if err := p.runPattern(ctx, id, network, name, listPath, &sum); err != nil {
				return err
			}
		}
	}

	// CLEANUP：先关库再删文件
	db.Close()
	p.cleanup(dbFile, listPath)
	return nil
}

// runPattern 处理单个模式文件
//
// 匹配引擎失败或计数失败被隔离：该模式的记录带 Error 标记，
// 整个运行继续处理剩余模式。ctx 取消不隔离，向上传播。
func (p *Pipeline) runPattern(ctx context.Context, id, network, name, listPath string, sum *summary.Record) error {
	patternID, err := layout.PatternIDFromFile(name)
	if err != nil {
		return err
	}
	patternFile := filepath.Join(layout.NetworkPatternDir(p.opts.PatternDir, id), name)
	matchFile := layout.MatchesFile(p.opts.DatabaseDir, id, patternID)
	log := p.log.WithPatternID(patternID)

	specData, err := os.ReadFile(patternFile)
	if err != nil {
		return fmt.Errorf("read pattern file %s: %w", patternFile, err)
	}

	rec := result.New(p.opts.NetworkFile, network, sum.String()).
		WithPattern(patternFile, string(specData))

	if err := p.matcher.Match(ctx, p.opts.NetworkFile, patternFile, listPath, matchFile); err != nil {
		if ctx.Err() != nil {
			return err
		}
		log.WithError(err).Warn("pattern match failed, emitting partial record")
		rec.WithError(err)
		_, werr := p.sink.Write(id, patternID, rec)
		return werr
	}

	mode := query.UniqueLines
	if p.opts.TokenUnique {
		mode = query.UniqueTokens
	}
	count, err := query.CountUniqueEntries(matchFile, mode)
	if err != nil {
		log.WithError(err).Warn("match count failed, emitting partial record")
		rec.WithError(err)
		_, werr := p.sink.Write(id, patternID, rec)
		return werr
	}

	rec.WithMatchCount(count)
	if _, err := p.sink.Write(id, patternID, rec); err != nil {
		return err
	}
	log.Info("pattern done", "matches", count)

	// 模式文件和匹配输出是临时产物，记录落盘后即删除
	p.removeIfPresent(patternFile)
	p.removeIfPresent(matchFile)
	return nil
}

// appendQueryStats 运行附加统计脚本，把 stdout 中的 name:value 词条并入汇总
// 脚本失败只告警，不影响主流程
func (p *Pipeline) appendQueryStats(ctx context.Context, sum *summary.Record, dbFile string) {
	pairs, err := runQueryScript(ctx, p.opts.QueryScript, p.opts.NetworkFile, dbFile)
	if err != nil {
		p.log.WithError(err).Warn("query script failed, continuing without extra stats")
		return
	}
	for _, pair := range pairs {
		if err := sum.Add(pair.Name, pair.Value); err != nil {
			p.log.WithError(err).Warn("query script pair rejected", "name", pair.Name)
		}
	}
}

// listPatternFiles 枚举模式子目录中的常规文件名（已排序）
// 目录不存在视为无模式
func listPatternFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pattern dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// cleanup 按策略删除临时产物
func (p *Pipeline) cleanup(dbFile, listPath string) {
	pol := p.opts.Cleanup
	if pol.All || pol.RemoveNetwork {
		p.removeIfPresent(p.opts.NetworkFile)
	}
	if pol.All || pol.RemoveDatabase {
		p.removeIfPresent(dbFile)
		p.removeIfPresent(listPath)
	}
}

// removeIfPresent 删除文件；文件不存在是空操作，其他错误只告警
func (p *Pipeline) removeIfPresent(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.log.WithError(err).Warn("cleanup failed", "path", path)
	}
}

// dumpNetwork 构建失败诊断：完整网络描述进入错误日志
func (p *Pipeline) dumpNetwork(network string, cause error) {
	p.log.WithError(cause).Error("database build failed",
		"network_file", p.opts.NetworkFile,
		"network", network,
	)
}
