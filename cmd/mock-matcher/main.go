// Package main Mock Matcher - 在 StableFC 参数上做确定性假匹配
//
// 不做真实的路径搜索：以模式文件长度为种子，从 StableFC 列表中
// 挑出一个确定的子集作为匹配条目写入输出文件。第一个命中的条目
// 会在末尾重复一次，用来验证计数端的去重。列表为空时输出空文件。
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

func main() {
	fail := flag.Bool("fail", false, "不产出匹配文件并以非零退出")
	flag.Parse()

	if os.Getenv("MOCK_MATCHER_FAIL") == "1" {
		*fail = true
	}

	args := flag.Args()
	if len(args) != 4 {
		log.Fatal("usage: mock-matcher [flags] <network-file> <pattern-file> <stablefc-file> <match-file>")
	}
	networkFile, patternFile, stableFCFile, matchFile := args[0], args[1], args[2], args[3]

	if _, err := os.Stat(networkFile); err != nil {
		log.Fatalf("network file: %v", err)
	}

	if *fail {
		fmt.Fprintln(os.Stderr, "mock-matcher: induced failure, no matches written")
		os.Exit(1)
	}

	pattern, err := os.ReadFile(patternFile)
	if err != nil {
		log.Fatalf("pattern file: %v", err)
	}
	seed := int64(len(pattern))

	params, err := readParams(stableFCFile)
	if err != nil {
		log.Fatalf("stable FC file: %v", err)
	}

	var matches []int64
	for _, p := range params {
		if (p+seed)%2 == 0 {
			matches = append(matches, p)
		}
	}

	out, err := os.Create(matchFile)
	if err != nil {
		log.Fatalf("match file: %v", err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for _, m := range matches {
		fmt.Fprintf(w, "%d\n", m)
	}
	if len(matches) > 0 {
		fmt.Fprintf(w, "%d\n", matches[0])
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("write matches: %v", err)
	}

	fmt.Printf("mock-matcher: %d matches for %s against %d stable FC parameters\n",
		len(matches), patternFile, len(params))
}

func readParams(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var params []int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", line, err)
		}
		params = append(params, p)
	}
	return params, scanner.Err()
}
