// Package config 统一配置管理
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load 加载配置
// 1. 加载 .env.{env}（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/common.yaml + configs/{env}.yaml
// 3. 环境变量覆盖敏感字段，构建最终配置
func Load() *Config {
	// APP_ENV 可能来自 shell，也可能来自 .env 文件；先按 shell 值加载 env 文件再重新解析
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)
	env = parseEnv(getEnv("APP_ENV", string(env)))

	yamlCfg := loadYAMLConfig(env)

	// 敏感信息只从环境变量读取
	yamlCfg.Redis.Password = firstEnv("REDIS_PASSWORD")
	yamlCfg.Archive.AccessKey = firstEnv("MINIO_ROOT_USER", "MINIO_ACCESS_KEY")
	yamlCfg.Archive.SecretKey = firstEnv("MINIO_ROOT_PASSWORD", "MINIO_SECRET_KEY")

	cfg := &Config{
		Env:            env,
		RedisURL:       buildRedisURL(yamlCfg.Redis),
		Paths:          yamlCfg.Paths,
		Solver:         yamlCfg.Solver,
		Match:          yamlCfg.Match,
		Queue:          yamlCfg.Queue,
		Worker:         yamlCfg.Worker,
		Archive:        yamlCfg.Archive,
		ConfigFilePath: yamlCfg.loadedFrom,
	}

	// 验证并填充默认值
	cfg.Queue.validate()
	cfg.Solver.validate()
	cfg.Worker.validate()

	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *yamlConfigInternal {
	// 1. 初始化默认值
	cfg := &yamlConfigInternal{
		YAMLConfig: YAMLConfig{
			Redis:  RedisConfig{Host: "localhost", Port: 6379, DB: 0},
			Solver: SolverConfig{MPIExec: "mpiexec", Procs: 1},
			Worker: WorkerConfig{Concurrency: 1, PipelineBin: "pipeline"},
		},
	}

	// 2. 加载 common.yaml（公共配置）
	if path := findConfigFile("common.yaml"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, &cfg.YAMLConfig)
		}
	}

	// 3. 加载 {env}.yaml（环境特定配置，覆盖公共配置）
	filename := fmt.Sprintf("%s.yaml", env)
	if path := findConfigFile(filename); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if yaml.Unmarshal(data, &cfg.YAMLConfig) == nil {
				cfg.loadedFrom = path
			}
		}
	}

	return cfg
}
