package result

import (
	"fmt"
	"os"

	"netsurvey/internal/layout"
)

// Sink 结果记录落盘
//
// 文件名由 (networkID, patternID) 按布局约定导出，
// patternID 为空写 results<ID>.txt，否则写 results<ID>_<PID>.txt。
type Sink struct {
	resultsDir string
}

// NewSink 创建结果落盘器
func NewSink(resultsDir string) *Sink {
	return &Sink{resultsDir: resultsDir}
}

// Write 写入一条记录，返回实际路径
// 先写临时文件再原子改名，读方不会看到半截记录
func (s *Sink) Write(networkID, patternID string, rec *Record) (string, error) {
	data, err := rec.Marshal()
	if err != nil {
		return "", err
	}
	path := layout.ResultFile(s.resultsDir, networkID, patternID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write result record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("publish result record: %w", err)
	}
	return path, nil
}
