package query

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// EnsureStableFCList 确保 StableFC 参数列表文件存在，至多计算一次
//
// 列表已存在时直接返回 computed=false。不存在时通过 O_CREATE|O_EXCL
// 抢占 <listPath>.claim，写入后原子 rename 发布；抢占失败说明另一个
// 实例正在计算，同样返回 computed=false。只有本次真正计算的调用
// 返回 computed=true 和参数数量。
func EnsureStableFCList(ctx context.Context, db *DB, listPath string) (count int, computed bool, err error) {
	if _, statErr := os.Stat(listPath); statErr == nil {
		return 0, false, nil
	}

	claim := listPath + ".claim"
	f, err := os.OpenFile(claim, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("claim stable FC list: %w", err)
	}

	// 计算失败时撤销抢占，留给下一次重试
	published := false
	defer func() {
		if !published {
			os.Remove(claim)
		}
	}()

	params, err := db.StableFCParameters(ctx)
	if err != nil {
		f.Close()
		return 0, false, err
	}

	for _, p := range params {
		if _, err := f.WriteString(strconv.FormatInt(p, 10) + "\n"); err != nil {
			f.Close()
			return 0, false, fmt.Errorf("write stable FC list: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return 0, false, fmt.Errorf("close stable FC list: %w", err)
	}

	if err := os.Rename(claim, listPath); err != nil {
		return 0, false, fmt.Errorf("publish stable FC list: %w", err)
	}
	published = true

	return len(params), true, nil
}
