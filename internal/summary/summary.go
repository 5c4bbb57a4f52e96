// Package summary 汇总统计记录
//
// Pipeline 在运行中累积 name:value 统计对（参数数量、StableFC 数量、
// 查询脚本的附加统计），序列化为单个字符串写入结果记录。
// 分隔符 " __ " 是保留串：name 和 value 中都不允许出现，
// name 中同时不允许出现 ':'（第一个冒号之后的内容全部属于 value）。
package summary

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Delimiter 统计对之间的分隔符
const Delimiter = " __ "

// 共享统计键
const (
	KeyParameterCount         = "ParameterCount"
	KeyStableFCParameterCount = "StableFCParameterCount"
)

var (
	// ErrReservedSequence name 或 value 中包含保留串
	ErrReservedSequence = errors.New("summary pair contains the reserved delimiter")

	// ErrBadPair 序列化串中存在无法解析的统计对
	ErrBadPair = errors.New("summary pair is not name:value")
)

// Pair 单个统计对
type Pair struct {
	Name  string
	Value string
}

// Record 有序统计记录
// 零值可直接使用
type Record struct {
	pairs []Pair
}

// Add 追加一个统计对，校验保留串
func (r *Record) Add(name, value string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrBadPair)
	}
	if strings.Contains(name, ":") {
		return fmt.Errorf("%w: name %q contains ':'", ErrBadPair, name)
	}
	if strings.Contains(name, Delimiter) || strings.Contains(value, Delimiter) {
		return fmt.Errorf("%w: %q", ErrReservedSequence, name)
	}
	r.pairs = append(r.pairs, Pair{Name: name, Value: value})
	return nil
}

// AddInt 追加整数统计对
func (r *Record) AddInt(name string, n int) {
	r.pairs = append(r.pairs, Pair{Name: name, Value: strconv.Itoa(n)})
}

// Len 统计对数量
func (r *Record) Len() int {
	return len(r.pairs)
}

// Pairs 返回统计对副本（保持追加顺序）
func (r *Record) Pairs() []Pair {
	out := make([]Pair, len(r.pairs))
	copy(out, r.pairs)
	return out
}

// Get 按名称查找统计值
func (r *Record) Get(name string) (string, bool) {
	for _, p := range r.pairs {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// String 序列化为 "name:value __ name:value" 形式
func (r *Record) String() string {
	parts := make([]string, len(r.pairs))
	for i, p := range r.pairs {
		parts[i] = p.Name + ":" + p.Value
	}
	return strings.Join(parts, Delimiter)
}

// Parse 反序列化统计记录
//
// 按分隔符切分后，每段在第一个 ':' 处拆成 name 和 value。
// 空串解析为空记录。
func Parse(s string) (*Record, error) {
	r := &Record{}
	if s == "" {
		return r, nil
	}
	for _, part := range strings.Split(s, Delimiter) {
		name, value, ok := strings.Cut(part, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadPair, part)
		}
		r.pairs = append(r.pairs, Pair{Name: name, Value: value})
	}
	return r, nil
}
