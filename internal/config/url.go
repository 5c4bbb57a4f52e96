package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// buildRedisURL 构建 Redis 连接字符串
// 如果 URL 字段非空，直接使用；否则从 host/port/db/password 构建
func buildRedisURL(redis RedisConfig) string {
	if redis.URL != "" {
		return redis.URL
	}
	if redis.Password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d", redis.Password, redis.Host, redis.Port, redis.DB)
	}
	return fmt.Sprintf("redis://%s:%d/%d", redis.Host, redis.Port, redis.DB)
}

// maskPassword 隐藏密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:]*:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}

// parseEnv 解析环境字符串
func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

// firstEnv 返回第一个非空的环境变量值（用于兼容多种 Docker Compose 变量名）
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// getEnv 获取环境变量，支持默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Redis: %s, Queue: %s, Solver: %s}",
		c.Env, maskPassword(c.RedisURL), c.Queue.Stream, c.Solver.Bin)
}

// validate 验证并填充队列默认值
func (q *QueueConfig) validate() {
	if q.Stream == "" {
		q.Stream = "survey:jobs"
	}
	if q.Group == "" {
		q.Group = "workers"
	}
	if q.ReadTimeout == 0 {
		q.ReadTimeout = 5 * time.Second
	}
	if q.ReadCount == 0 {
		q.ReadCount = 1
	}
	if q.MaxLen == 0 {
		q.MaxLen = 100000
	}
}

// validate 验证并填充求解器默认值
func (s *SolverConfig) validate() {
	if s.MPIExec == "" {
		s.MPIExec = "mpiexec"
	}
	if s.Procs <= 0 {
		s.Procs = 1
	}
}

// validate 验证并填充 Worker 默认值
func (w *WorkerConfig) validate() {
	if w.ID == "" {
		if host, err := os.Hostname(); err == nil {
			w.ID = host
		} else {
			w.ID = "worker-default"
		}
	}
	if w.Concurrency <= 0 {
		w.Concurrency = 1
	}
	if w.PipelineBin == "" {
		w.PipelineBin = "pipeline"
	}
}
