// Package query 签名库查询
//
// 对求解器产出的 sqlite 签名库做只读查询：参数空间大小、
// StableFC 参数列表。所有查询都是精确的全量扫描，不抽样。
package query

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// 签名库固定表结构（求解器输出契约）：
//
//	Signatures(ParameterIndex, MorseGraphIndex)   每个参数一行
//	MorseGraphAnnotations(MorseGraphIndex, Vertex, Label)
//	MorseGraphEdges(MorseGraphIndex, Source, Target)
const (
	parameterCountSQL = `SELECT COUNT(*) FROM Signatures`

	// StableFC：标注为 FC 且在 Morse 图中无出边的顶点所对应的参数
	stableFCSQL = `SELECT DISTINCT ParameterIndex FROM Signatures NATURAL JOIN ` +
		`(SELECT MorseGraphIndex FROM ` +
		`(SELECT MorseGraphIndex, Vertex FROM MorseGraphAnnotations WHERE Label='FC' ` +
		`EXCEPT SELECT MorseGraphIndex, Source FROM MorseGraphEdges)) ` +
		`ORDER BY ParameterIndex`
)

// DB 一个打开的签名库
type DB struct {
	db   *sql.DB
	path string
}

// Open 以只读方式打开签名库
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open signature database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragma busy_timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping signature database %s: %w", path, err)
	}

	return &DB{db: db, path: path}, nil
}

// Close 关闭签名库
func (d *DB) Close() error {
	return d.db.Close()
}

// Path 签名库文件路径
func (d *DB) Path() string {
	return d.path
}

// ParameterCount 参数空间大小
func (d *DB) ParameterCount(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, parameterCountSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("parameter count query on %s: %w", d.path, err)
	}
	return count, nil
}

// StableFCParameters 拥有稳定 FC 的参数索引（升序）
func (d *DB) StableFCParameters(ctx context.Context) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, stableFCSQL)
	if err != nil {
		return nil, fmt.Errorf("stable FC query on %s: %w", d.path, err)
	}
	defer rows.Close()

	var params []int64
	for rows.Next() {
		var p int64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("stable FC scan: %w", err)
		}
		params = append(params, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stable FC rows: %w", err)
	}
	return params, nil
}
