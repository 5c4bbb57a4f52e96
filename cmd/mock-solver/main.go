// Package main Mock Solver - 为开发环境生成签名库
//
// 不做真实的动力学计算，按固定模式写出一个合法的 sqlite 签名库：
// 参数 i 归入 Morse 图 i%3。MG0 是 FP，MG1 是无出边的 FC（稳定），
// MG2 是带出边的 FC（不稳定）。参数空间大小可调，结果确定。
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

func main() {
	fail := flag.Bool("fail", false, "不产出签名库并以非零退出")
	params := flag.Int("params", 20, "参数空间大小")
	delay := flag.Duration("delay", 0, "模拟求解耗时")
	flag.Parse()

	if os.Getenv("MOCK_SOLVER_FAIL") == "1" {
		*fail = true
	}

	args := flag.Args()
	if len(args) != 2 {
		log.Fatal("usage: mock-solver [flags] <network-file> <database-file>")
	}
	networkFile, databaseFile := args[0], args[1]

	if _, err := os.Stat(networkFile); err != nil {
		log.Fatalf("network file: %v", err)
	}

	fmt.Printf("mock-solver: building %s from %s\n", databaseFile, networkFile)
	if *delay > 0 {
		time.Sleep(*delay)
	}

	if *fail {
		fmt.Fprintln(os.Stderr, "mock-solver: induced failure, no database written")
		os.Exit(1)
	}

	if err := writeDatabase(databaseFile, *params); err != nil {
		log.Fatalf("write database: %v", err)
	}
	fmt.Printf("mock-solver: wrote %d parameters\n", *params)
}

func writeDatabase(path string, params int) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE Signatures (ParameterIndex INTEGER PRIMARY KEY, MorseGraphIndex INTEGER)`,
		`CREATE TABLE MorseGraphAnnotations (MorseGraphIndex INTEGER, Vertex INTEGER, Label TEXT)`,
		`CREATE TABLE MorseGraphEdges (MorseGraphIndex INTEGER, Source INTEGER, Target INTEGER)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}

	for i := 0; i < params; i++ {
		if _, err := tx.Exec(`INSERT INTO Signatures VALUES (?, ?)`, i, i%3); err != nil {
			return err
		}
	}

	annotations := [][3]interface{}{
		{0, 0, "FP"},
		{1, 0, "FC"},
		{2, 0, "FC"},
		{2, 1, "FP"},
	}
	for _, a := range annotations {
		if _, err := tx.Exec(`INSERT INTO MorseGraphAnnotations VALUES (?, ?, ?)`, a[0], a[1], a[2]); err != nil {
			return err
		}
	}

	// MG2 的 FC 顶点有出边，因此不稳定；只有 MG1 贡献 StableFC
	if _, err := tx.Exec(`INSERT INTO MorseGraphEdges VALUES (2, 0, 1)`); err != nil {
		return err
	}

	return tx.Commit()
}
