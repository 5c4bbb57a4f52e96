// Package layout 批次文件布局约定
//
// 所有组件共享的文件命名规则（网络、签名库、StableFC 列表、匹配输出、结果），
// 下游聚合方按同样的规则读取，因此命名必须逐字节一致：
//
//	<network-dir>/network<NetworkID>.txt
//	<pattern-dir>/<NetworkID>/pattern<PatternID>.<ext>
//	<database-dir>/database<NetworkID>.db
//	<database-dir>/StableFCList<NetworkID>.txt
//	<database-dir>/Matches<NetworkID>_<PatternID>.txt
//	<results-dir>/results<NetworkID>.txt
//	<results-dir>/results<NetworkID>_<PatternID>.txt
//
// ID 解析是严格校验的：不符合规则的文件名返回错误，而不是静默跳过，
// 避免把错放的文件拼进artifact路径。
package layout

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	networkPrefix  = "network"
	networkExt     = ".txt"
	patternPrefix  = "pattern"
	databasePrefix = "database"
	databaseExt    = ".db"
	stableFCPrefix = "StableFCList"
	matchesPrefix  = "Matches"
	resultsPrefix  = "results"
	textExt        = ".txt"
)

var (
	// ErrNotNetworkFile 文件名不符合 network<ID>.txt 规则
	ErrNotNetworkFile = errors.New("file name does not match network<ID>.txt")

	// ErrNotPatternFile 文件名不符合 pattern<ID>.<ext> 规则
	ErrNotPatternFile = errors.New("file name does not match pattern<ID>.<ext>")
)

// NetworkIDFromFile 从 network<ID>.txt 文件名解析网络 ID
//
// ID 必须非空且全部为数字。目录部分被忽略，只看 base name。
func NetworkIDFromFile(path string) (string, error) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, networkExt) {
		return "", fmt.Errorf("%w: %q has no %s extension", ErrNotNetworkFile, base, networkExt)
	}
	stem := strings.TrimSuffix(base, networkExt)
	if !strings.HasPrefix(stem, networkPrefix) {
		return "", fmt.Errorf("%w: %q", ErrNotNetworkFile, base)
	}
	id := strings.TrimPrefix(stem, networkPrefix)
	if id == "" {
		return "", fmt.Errorf("%w: %q has an empty ID", ErrNotNetworkFile, base)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: ID %q is not numeric", ErrNotNetworkFile, id)
		}
	}
	return id, nil
}

// PatternIDFromFile 从 pattern<ID>.<ext> 文件名解析模式 ID
//
// ID 以数字开头，之后允许数字和下划线（例如缩放参数 0.5 编码为 0_5）。
// 解析出的 ID 逐字用于 Matches/results 文件名。
func PatternIDFromFile(path string) (string, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if !strings.HasPrefix(stem, patternPrefix) {
		return "", fmt.Errorf("%w: %q", ErrNotPatternFile, base)
	}
	id := strings.TrimPrefix(stem, patternPrefix)
	if id == "" {
		return "", fmt.Errorf("%w: %q has an empty ID", ErrNotPatternFile, base)
	}
	if id[0] < '0' || id[0] > '9' {
		return "", fmt.Errorf("%w: ID %q does not start with a digit", ErrNotPatternFile, id)
	}
	for _, r := range id {
		if (r < '0' || r > '9') && r != '_' {
			return "", fmt.Errorf("%w: ID %q contains %q", ErrNotPatternFile, id, string(r))
		}
	}
	return id, nil
}

// MatchSetID 组合网络 ID 和模式 ID 得到匹配集标识
func MatchSetID(networkID, patternID string) string {
	return networkID + "_" + patternID
}

// NetworkFile 网络描述文件路径
func NetworkFile(networkDir, networkID string) string {
	return filepath.Join(networkDir, networkPrefix+networkID+networkExt)
}

// NetworkPatternDir 某网络的模式子目录
func NetworkPatternDir(patternDir, networkID string) string {
	return filepath.Join(patternDir, networkID)
}

// DatabaseFile 签名库文件路径
func DatabaseFile(databaseDir, networkID string) string {
	return filepath.Join(databaseDir, databasePrefix+networkID+databaseExt)
}

// StableFCListFile StableFC 参数列表文件路径
func StableFCListFile(databaseDir, networkID string) string {
	return filepath.Join(databaseDir, stableFCPrefix+networkID+textExt)
}

// MatchesFile 匹配输出文件路径
func MatchesFile(databaseDir, networkID, patternID string) string {
	return filepath.Join(databaseDir, matchesPrefix+MatchSetID(networkID, patternID)+textExt)
}

// ResultFile 结果记录文件路径
// patternID 为空表示无模式分支的单条结果
func ResultFile(resultsDir, networkID, patternID string) string {
	if patternID == "" {
		return filepath.Join(resultsDir, resultsPrefix+networkID+textExt)
	}
	return filepath.Join(resultsDir, resultsPrefix+MatchSetID(networkID, patternID)+textExt)
}
