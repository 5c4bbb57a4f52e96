package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"netsurvey/internal/summary"
)

// runQueryScript 执行附加统计脚本
//
// 调用约定：<script> <networkFile> <databaseFile>。
// stdout 按空白切分，每个词条必须是 name:value 形式。
func runQueryScript(ctx context.Context, script, networkFile, dbFile string) ([]summary.Pair, error) {
	cmd := exec.CommandContext(ctx, script, networkFile, dbFile)
	cmd.Env = os.Environ()

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	out, err := cmd.Output()
	if err != nil {
		if stderrBuf.Len() > 0 {
			return nil, fmt.Errorf("query script %s: %w: %s", script, err, truncate(stderrBuf.String(), 512))
		}
		return nil, fmt.Errorf("query script %s: %w", script, err)
	}

	var pairs []summary.Pair
	for _, tok := range strings.Fields(string(out)) {
		name, value, ok := strings.Cut(tok, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("query script %s: token %q is not name:value", script, tok)
		}
		pairs = append(pairs, summary.Pair{Name: name, Value: value})
	}
	return pairs, nil
}
