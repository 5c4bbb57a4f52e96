package query

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// UniqueMode 匹配输出的去重口径
type UniqueMode int

const (
	// UniqueLines 整行精确去重（默认口径），空行不计
	UniqueLines UniqueMode = iota
	// UniqueTokens 空白分词后去重
	UniqueTokens
)

// CountUniqueEntries 统计匹配输出文件中去重后的条目数
//
// 精确统计，不抽样。行尾 \r 在比较前剥离。
func CountUniqueEntries(path string, mode UniqueMode) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open match output: %w", err)
	}
	defer f.Close()

	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		switch mode {
		case UniqueTokens:
			for _, tok := range strings.Fields(line) {
				seen[tok] = struct{}{}
			}
		default:
			if line == "" {
				continue
			}
			seen[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan match output %s: %w", path, err)
	}

	return len(seen), nil
}
