// Package result 结果记录的构造与落盘
//
// 每个 (网络, 模式或无) 组合产出恰好一条 JSON 记录。
// Network 和 PatternSpecification 字段嵌入原始文件内容，
// 下游聚合不再需要访问共享目录。
package result

import (
	"encoding/json"
	"fmt"
	"os"
)

// Record 单条结果记录
//
// 无模式分支时 PatternFile/PatternSpecification/StableFCMatchesParameterCount
// 序列化为 null。Error 仅在单个模式匹配失败被隔离时出现。
type Record struct {
	NetworkFile                   string          `json:"NetworkFile"`
	Network                       string          `json:"Network"`
	PatternFile                   *string         `json:"PatternFile"`
	PatternSpecification          json.RawMessage `json:"PatternSpecification"`
	Summary                       string          `json:"Summary"`
	StableFCMatchesParameterCount *int            `json:"StableFCMatchesParameterCount"`
	Error                         string          `json:"Error,omitempty"`
}

// New 构造无模式的基础记录
func New(networkFile, network, summary string) *Record {
	return &Record{
		NetworkFile: networkFile,
		Network:     network,
		Summary:     summary,
	}
}

// WithPattern 填充模式字段
//
// spec 为模式文件原始内容：合法 JSON 原样嵌入，否则作为 JSON 字符串嵌入。
func (r *Record) WithPattern(patternFile, spec string) *Record {
	r.PatternFile = &patternFile
	r.PatternSpecification = embedSpec(spec)
	return r
}

// WithMatchCount 填充去重匹配数
// 匹配失败被隔离时不调用，字段保持 null
func (r *Record) WithMatchCount(n int) *Record {
	r.StableFCMatchesParameterCount = &n
	return r
}

// WithError 标记单模式失败（部分失败隔离）
func (r *Record) WithError(err error) *Record {
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// embedSpec 将模式文件内容嵌入为 JSON 值
func embedSpec(spec string) json.RawMessage {
	raw := []byte(spec)
	if json.Valid(raw) {
		return raw
	}
	quoted, err := json.Marshal(spec)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return quoted
}

// Marshal 序列化为 JSON
func (r *Record) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal result record: %w", err)
	}
	return data, nil
}

// ReadFile 从文件读取单条结果记录
func ReadFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse result record %s: %w", path, err)
	}
	return &rec, nil
}
