// Package pipeline 流水线状态机测试
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsurvey/internal/layout"
	"netsurvey/internal/query"
	"netsurvey/internal/result"
	"netsurvey/internal/summary"

	_ "modernc.org/sqlite"
)

// writeSignatureDB 写出一个 5 参数的小型签名库
// 参数 1 和 3 拥有稳定 FC，其余为 FP 或带出边的 FC
func writeSignatureDB(path string) error {
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer raw.Close()

	stmts := []string{
		`CREATE TABLE Signatures (ParameterIndex INTEGER PRIMARY KEY, MorseGraphIndex INTEGER)`,
		`CREATE TABLE MorseGraphAnnotations (MorseGraphIndex INTEGER, Vertex INTEGER, Label TEXT)`,
		`CREATE TABLE MorseGraphEdges (MorseGraphIndex INTEGER, Source INTEGER, Target INTEGER)`,
		`INSERT INTO Signatures VALUES (0,0),(1,1),(2,2),(3,1),(4,0)`,
		`INSERT INTO MorseGraphAnnotations VALUES (0,0,'FP'),(1,0,'FC'),(2,0,'FC')`,
		`INSERT INTO MorseGraphEdges VALUES (2,0,1)`,
	}
	for _, stmt := range stmts {
		if _, err := raw.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// fakeSolver 测试求解器
// writeDB 控制是否产出签名库文件，fail 控制退出状态
type fakeSolver struct {
	writeDB bool
	fail    bool
	calls   int
}

func (s *fakeSolver) BuildDatabase(ctx context.Context, networkFile, databaseFile string) error {
	s.calls++
	if s.writeDB {
		if err := writeSignatureDB(databaseFile); err != nil {
			return err
		}
	}
	if s.fail {
		return errors.New("solver exit status 1")
	}
	return nil
}

type matchCall struct {
	pattern string
	list    string
	out     string
}

// fakeMatcher 测试匹配引擎
// 对 failOn 中列出的模式文件名返回错误，否则写出固定匹配条目
type fakeMatcher struct {
	failOn map[string]bool
	lines  string
	calls  []matchCall
}

func (m *fakeMatcher) Match(ctx context.Context, networkFile, patternFile, stableFCFile, matchFile string) error {
	m.calls = append(m.calls, matchCall{pattern: patternFile, list: stableFCFile, out: matchFile})
	if m.failOn[filepath.Base(patternFile)] {
		return errors.New("matcher exit status 1")
	}
	lines := m.lines
	if lines == "" {
		lines = "1\n3\n1\n"
	}
	return os.WriteFile(matchFile, []byte(lines), 0644)
}

// testDirs 单次运行的目录布局
type testDirs struct {
	network  string
	patterns string
	database string
	results  string
}

func newTestDirs(t *testing.T) testDirs {
	t.Helper()
	root := t.TempDir()
	d := testDirs{
		network:  filepath.Join(root, "networks"),
		patterns: filepath.Join(root, "patterns"),
		database: filepath.Join(root, "databases"),
		results:  filepath.Join(root, "results"),
	}
	for _, dir := range []string{d.network, d.patterns, d.database, d.results} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	return d
}

// writeNetwork 写入网络描述文件，返回路径和内容
func writeNetwork(t *testing.T, dirs testDirs, id string) (string, string) {
	t.Helper()
	content := "X : X + Y\nY : ~X\n"
	path := layout.NetworkFile(dirs.network, id)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path, content
}

// writePattern 在网络的模式子目录写入一个模式文件
func writePattern(t *testing.T, dirs testDirs, networkID, name, spec string) string {
	t.Helper()
	dir := layout.NetworkPatternDir(dirs.patterns, networkID)
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(spec), 0644))
	return path
}

func newTestPipeline(dirs testDirs, networkFile, id string, solver Solver, matcher Matcher, cleanup CleanupPolicy) *Pipeline {
	return New(Options{
		NetworkFile: networkFile,
		NetworkID:   id,
		PatternDir:  dirs.patterns,
		DatabaseDir: dirs.database,
		ResultsDir:  dirs.results,
		Cleanup:     cleanup,
	}, solver, matcher, nil)
}

// TestRunNoPatterns 无模式分支：单条记录，模式字段为 null，不算 StableFC
func TestRunNoPatterns(t *testing.T) {
	dirs := newTestDirs(t)
	networkFile, content := writeNetwork(t, dirs, "7")

	solver := &fakeSolver{writeDB: true}
	matcher := &fakeMatcher{}
	p := newTestPipeline(dirs, networkFile, "7", solver, matcher, CleanupPolicy{All: true})

	stableFCCalls := 0
	inner := p.stableFC
	p.stableFC = func(ctx context.Context, db *query.DB, listPath string) (int, bool, error) {
		stableFCCalls++
		return inner(ctx, db, listPath)
	}

	require.NoError(t, p.Run(context.Background()))

	rec, err := result.ReadFile(layout.ResultFile(dirs.results, "7", ""))
	require.NoError(t, err)
	assert.Equal(t, networkFile, rec.NetworkFile)
	assert.Equal(t, content, rec.Network)
	assert.Nil(t, rec.PatternFile)
	assert.Nil(t, rec.StableFCMatchesParameterCount)
	assert.Empty(t, rec.Error)

	sum, err := summary.Parse(rec.Summary)
	require.NoError(t, err)
	v, ok := sum.Get(summary.KeyParameterCount)
	require.True(t, ok)
	assert.Equal(t, "5", v)
	_, ok = sum.Get(summary.KeyStableFCParameterCount)
	assert.False(t, ok)

	assert.Equal(t, 0, stableFCCalls)
	assert.Empty(t, matcher.calls)

	// CleanupPolicy.All：网络文件和签名库都被删除
	assert.NoFileExists(t, networkFile)
	assert.NoFileExists(t, layout.DatabaseFile(dirs.database, "7"))
}

// TestRunWithPatterns 模式分支：每个模式一条记录，StableFC 只算一次
func TestRunWithPatterns(t *testing.T) {
	dirs := newTestDirs(t)
	networkFile, content := writeNetwork(t, dirs, "3")
	pattern1 := writePattern(t, dirs, "3", "pattern1.json", `{"poset": [[0], [1]]}`)
	pattern2 := writePattern(t, dirs, "3", "pattern2.json", `{"poset": [[1], [0]]}`)

	solver := &fakeSolver{writeDB: true}
	matcher := &fakeMatcher{}
	p := newTestPipeline(dirs, networkFile, "3", solver, matcher, CleanupPolicy{All: true})

	stableFCCalls := 0
	inner := p.stableFC
	p.stableFC = func(ctx context.Context, db *query.DB, listPath string) (int, bool, error) {
		stableFCCalls++
		return inner(ctx, db, listPath)
	}

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, matcher.calls, 2)
	assert.Equal(t, 1, stableFCCalls)

	// 匹配引擎收到的 StableFC 列表是本次计算发布的文件
	listPath := layout.StableFCListFile(dirs.database, "3")
	assert.Equal(t, listPath, matcher.calls[0].list)

	specs := []string{`{"poset": [[0], [1]]}`, `{"poset": [[1], [0]]}`}
	for i, patternFile := range []string{pattern1, pattern2} {
		patternID := fmt.Sprintf("%d", i+1)
		rec, err := result.ReadFile(layout.ResultFile(dirs.results, "3", patternID))
		require.NoError(t, err)
		assert.Equal(t, content, rec.Network)
		require.NotNil(t, rec.PatternFile)
		assert.Equal(t, patternFile, *rec.PatternFile)
		assert.JSONEq(t, specs[i], string(rec.PatternSpecification))
		require.NotNil(t, rec.StableFCMatchesParameterCount)
		assert.Equal(t, 2, *rec.StableFCMatchesParameterCount)
		assert.Empty(t, rec.Error)

		sum, err := summary.Parse(rec.Summary)
		require.NoError(t, err)
		v, ok := sum.Get(summary.KeyStableFCParameterCount)
		require.True(t, ok)
		assert.Equal(t, "2", v)
	}

	// 模式文件和匹配输出在记录落盘后删除
	assert.NoFileExists(t, pattern1)
	assert.NoFileExists(t, pattern2)
	assert.NoFileExists(t, layout.MatchesFile(dirs.database, "3", "1"))
	assert.NoFileExists(t, layout.MatchesFile(dirs.database, "3", "2"))
	assert.NoFileExists(t, networkFile)
	assert.NoFileExists(t, listPath)
}

// TestRunStableFCAlreadyOnDisk 列表已存在：跳过计算，汇总不含 StableFC 键
func TestRunStableFCAlreadyOnDisk(t *testing.T) {
	dirs := newTestDirs(t)
	networkFile, _ := writeNetwork(t, dirs, "3")
	writePattern(t, dirs, "3", "pattern1.json", `{"poset": []}`)

	listPath := layout.StableFCListFile(dirs.database, "3")
	require.NoError(t, os.WriteFile(listPath, []byte("1\n3\n"), 0644))

	matcher := &fakeMatcher{}
	p := newTestPipeline(dirs, networkFile, "3", &fakeSolver{writeDB: true}, matcher, CleanupPolicy{})

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, matcher.calls, 1)

	rec, err := result.ReadFile(layout.ResultFile(dirs.results, "3", "1"))
	require.NoError(t, err)
	sum, err := summary.Parse(rec.Summary)
	require.NoError(t, err)
	_, ok := sum.Get(summary.KeyStableFCParameterCount)
	assert.False(t, ok)
}

// TestRunDatabaseMissing VERIFY_DB 失败：致命错误，不产记录，不清理
func TestRunDatabaseMissing(t *testing.T) {
	dirs := newTestDirs(t)
	networkFile, _ := writeNetwork(t, dirs, "9")

	p := newTestPipeline(dirs, networkFile, "9", &fakeSolver{writeDB: false, fail: true}, &fakeMatcher{}, CleanupPolicy{All: true})

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDatabaseMissing)

	// 现场保留：网络文件不删，结果目录为空
	assert.FileExists(t, networkFile)
	entries, rerr := os.ReadDir(dirs.results)
	require.NoError(t, rerr)
	assert.Empty(t, entries)
}

// TestRunSolverErrorDatabaseExists 求解器报错但库文件在：告警后继续
func TestRunSolverErrorDatabaseExists(t *testing.T) {
	dirs := newTestDirs(t)
	networkFile, _ := writeNetwork(t, dirs, "2")

	p := newTestPipeline(dirs, networkFile, "2", &fakeSolver{writeDB: true, fail: true}, &fakeMatcher{}, CleanupPolicy{})

	require.NoError(t, p.Run(context.Background()))
	assert.FileExists(t, layout.ResultFile(dirs.results, "2", ""))
}

// TestRunPatternFailureIsolated 单模式失败被隔离：带 Error 的记录 + 继续后续模式
func TestRunPatternFailureIsolated(t *testing.T) {
	dirs := newTestDirs(t)
	networkFile, _ := writeNetwork(t, dirs, "5")
	pattern1 := writePattern(t, dirs, "5", "pattern1.json", `{"poset": [[0]]}`)
	pattern2 := writePattern(t, dirs, "5", "pattern2.json", `{"poset": [[1]]}`)

	matcher := &fakeMatcher{failOn: map[string]bool{"pattern1.json": true}}
	p := newTestPipeline(dirs, networkFile, "5", &fakeSolver{writeDB: true}, matcher, CleanupPolicy{})

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, matcher.calls, 2)

	// 失败模式：Error 标记，计数为 null，模式文件保留现场
	rec1, err := result.ReadFile(layout.ResultFile(dirs.results, "5", "1"))
	require.NoError(t, err)
	assert.NotEmpty(t, rec1.Error)
	assert.Nil(t, rec1.StableFCMatchesParameterCount)
	assert.FileExists(t, pattern1)

	// 成功模式照常
	rec2, err := result.ReadFile(layout.ResultFile(dirs.results, "5", "2"))
	require.NoError(t, err)
	assert.Empty(t, rec2.Error)
	require.NotNil(t, rec2.StableFCMatchesParameterCount)
	assert.Equal(t, 2, *rec2.StableFCMatchesParameterCount)
	assert.NoFileExists(t, pattern2)
}

// TestRunMalformedPatternName 模式文件名不合规：响亮报错而不是静默跳过
func TestRunMalformedPatternName(t *testing.T) {
	dirs := newTestDirs(t)
	networkFile, _ := writeNetwork(t, dirs, "4")
	writePattern(t, dirs, "4", "patternX.json", `{}`)

	p := newTestPipeline(dirs, networkFile, "4", &fakeSolver{writeDB: true}, &fakeMatcher{}, CleanupPolicy{})

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, layout.ErrNotPatternFile)
}

// TestRunIdentityMismatch 文件名 ID 与任务声明不一致
func TestRunIdentityMismatch(t *testing.T) {
	dirs := newTestDirs(t)
	networkFile, _ := writeNetwork(t, dirs, "3")

	p := newTestPipeline(dirs, networkFile, "4", &fakeSolver{writeDB: true}, &fakeMatcher{}, CleanupPolicy{})

	err := p.Run(context.Background())
	require.Error(t, err)
}

// TestRunCleanupFlags 按标志清理：只删签名库，网络文件保留
func TestRunCleanupFlags(t *testing.T) {
	dirs := newTestDirs(t)
	networkFile, _ := writeNetwork(t, dirs, "6")

	p := newTestPipeline(dirs, networkFile, "6", &fakeSolver{writeDB: true}, &fakeMatcher{}, CleanupPolicy{RemoveDatabase: true})

	require.NoError(t, p.Run(context.Background()))
	assert.FileExists(t, networkFile)
	assert.NoFileExists(t, layout.DatabaseFile(dirs.database, "6"))
}

// TestRunCleanupMissingFilesNoError 清理目标不存在是空操作
func TestRunCleanupMissingFilesNoError(t *testing.T) {
	dirs := newTestDirs(t)
	networkFile, _ := writeNetwork(t, dirs, "8")

	p := newTestPipeline(dirs, networkFile, "8", &fakeSolver{writeDB: true}, &fakeMatcher{}, CleanupPolicy{All: true})

	// StableFC 列表从未产出，网络文件在运行途中被外部删除的情形
	// 由两次删除同一路径模拟
	require.NoError(t, p.Run(context.Background()))
	p.cleanup(layout.DatabaseFile(dirs.database, "8"), layout.StableFCListFile(dirs.database, "8"))
}

// TestRunTokenUnique 按词去重模式
func TestRunTokenUnique(t *testing.T) {
	dirs := newTestDirs(t)
	networkFile, _ := writeNetwork(t, dirs, "1")
	writePattern(t, dirs, "1", "pattern1.json", `{}`)

	matcher := &fakeMatcher{lines: "1 3\n3 1\n"}
	p := New(Options{
		NetworkFile: networkFile,
		NetworkID:   "1",
		PatternDir:  dirs.patterns,
		DatabaseDir: dirs.database,
		ResultsDir:  dirs.results,
		TokenUnique: true,
	}, &fakeSolver{writeDB: true}, matcher, nil)

	require.NoError(t, p.Run(context.Background()))

	rec, err := result.ReadFile(layout.ResultFile(dirs.results, "1", "1"))
	require.NoError(t, err)
	require.NotNil(t, rec.StableFCMatchesParameterCount)
	assert.Equal(t, 2, *rec.StableFCMatchesParameterCount)
}
