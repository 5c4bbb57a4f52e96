// Package result 结果记录的测试
package result

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMarshalNoPattern(t *testing.T) {
	rec := New("/nets/network7.txt", "X : X + Y\nY : ~X\n", "ParameterCount:168")

	data, err := rec.Marshal()
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))

	assert.JSONEq(t, `"/nets/network7.txt"`, string(m["NetworkFile"]))
	assert.Equal(t, "null", string(m["PatternFile"]))
	assert.Equal(t, "null", string(m["PatternSpecification"]))
	assert.Equal(t, "null", string(m["StableFCMatchesParameterCount"]))
	_, hasErr := m["Error"]
	assert.False(t, hasErr, "Error field should be omitted when empty")
}

func TestRecordMarshalWithPattern(t *testing.T) {
	spec := `{"poset": [[0, 1]], "events": ["X min", "X max"]}`
	rec := New("/nets/network3.txt", "X : ~Y\n", "ParameterCount:20 __ StableFCParameterCount:5").
		WithPattern("/pats/3/pattern1.txt", spec).
		WithMatchCount(4)

	data, err := rec.Marshal()
	require.NoError(t, err)

	var parsed Record
	require.NoError(t, json.Unmarshal(data, &parsed))
	require.NotNil(t, parsed.PatternFile)
	assert.Equal(t, "/pats/3/pattern1.txt", *parsed.PatternFile)
	require.NotNil(t, parsed.StableFCMatchesParameterCount)
	assert.Equal(t, 4, *parsed.StableFCMatchesParameterCount)
	assert.JSONEq(t, spec, string(parsed.PatternSpecification))
}

// TestRecordPatternSpecNotJSON 非 JSON 的模式内容作为字符串嵌入
func TestRecordPatternSpecNotJSON(t *testing.T) {
	rec := New("/nets/network9.txt", "net", "S").
		WithPattern("/pats/9/pattern2.txt", "max(X), min(Y)").
		WithMatchCount(0)

	data, err := rec.Marshal()
	require.NoError(t, err)

	var parsed struct {
		PatternSpecification string `json:"PatternSpecification"`
	}
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "max(X), min(Y)", parsed.PatternSpecification)
}

func TestRecordWithError(t *testing.T) {
	rec := New("/nets/network5.txt", "net", "ParameterCount:10").
		WithPattern("/pats/5/pattern1.txt", "{}").
		WithError(errors.New("match engine exited with status 2"))

	data, err := rec.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "match engine exited with status 2")

	var parsed Record
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Nil(t, parsed.StableFCMatchesParameterCount, "failed match keeps the count null")
}

func TestSinkWrite(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink(dir)

	rec := New("/nets/network7.txt", "net content", "ParameterCount:168")
	path, err := sink.Write("7", "", rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "results7.txt"), path)

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "net content", got.Network)
	assert.Nil(t, got.PatternFile)
}

func TestSinkWriteWithPattern(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink(dir)

	rec := New("/nets/network3.txt", "net", "S").
		WithPattern("/pats/3/pattern0_5.txt", `{"k":1}`).
		WithMatchCount(2)
	path, err := sink.Write("3", "0_5", rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "results3_0_5.txt"), path)

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.NotNil(t, got.StableFCMatchesParameterCount)
	assert.Equal(t, 2, *got.StableFCMatchesParameterCount)
}

func TestSinkWriteMissingDir(t *testing.T) {
	sink := NewSink(filepath.Join(t.TempDir(), "missing"))
	_, err := sink.Write("1", "", New("f", "n", "s"))
	require.Error(t, err)
}

func TestReadFileErrors(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0644))
	_, err = ReadFile(bad)
	require.Error(t, err)
}
