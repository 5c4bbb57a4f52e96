// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（common.yaml + {env}.yaml，如 dev.yaml、test.yaml、prod.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在 .env 文件中（YAML 中不存储任何密码）。
//	.env 文件同时被 Docker Compose（--env-file）、Go 应用（godotenv）、
//	systemd（EnvironmentFile=）共用，确保单一数据源。
//
// 配置路径确定策略：
//  1. --config 命令行参数（显式路径）
//  2. CONFIG_DIR 环境变量
//  3. 按 APP_ENV 选择默认路径：
//     - prod → /etc/netsurvey/
//     - dev/test → ./configs/
//
// 环境：
//   - 开发: APP_ENV=dev → configs/dev.yaml + .env.dev
//   - 测试: APP_ENV=test → configs/test.yaml + .env.test
//   - 生产: APP_ENV=prod → /etc/netsurvey/prod.yaml + prod.env
package config

import "time"

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test" // 测试环境（集成测试 + E2E 共用）
	EnvDevelopment Environment = "dev"
)

// YAMLConfig 统一 YAML 配置文件结构
// Dispatcher、Pipeline 和 Worker 共用此格式，通过章节区分
type YAMLConfig struct {
	Paths   PathsConfig   `yaml:"paths"`   // 批次目录（共享）
	Solver  SolverConfig  `yaml:"solver"`  // 签名库求解器（Pipeline）
	Match   MatchConfig   `yaml:"match"`   // 模式匹配引擎（Pipeline）
	Redis   RedisConfig   `yaml:"redis"`   // Redis（Dispatcher + Worker）
	Queue   QueueConfig   `yaml:"queue"`   // 作业队列（Dispatcher + Worker）
	Worker  WorkerConfig  `yaml:"worker"`  // Worker 进程
	Archive ArchiveConfig `yaml:"archive"` // MinIO 结果归档（Worker，可选）
}

// PathsConfig 批次目录配置
// 各目录也可由命令行参数逐项覆盖
type PathsConfig struct {
	NetworkDir  string `yaml:"network_dir"`
	PatternDir  string `yaml:"pattern_dir"`
	DatabaseDir string `yaml:"database_dir"`
	ResultsDir  string `yaml:"results_dir"`
}

// SolverConfig 签名库求解器配置
type SolverConfig struct {
	Bin     string `yaml:"bin"`     // 求解器可执行文件
	MPIExec string `yaml:"mpiexec"` // MPI 启动器（默认 mpiexec）
	Procs   int    `yaml:"procs"`   // 并行进程数
}

// MatchConfig 模式匹配引擎配置
type MatchConfig struct {
	Bin string `yaml:"bin"` // 匹配引擎可执行文件
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"`   // 只从 REDIS_PASSWORD 环境变量读取
	URL      string `yaml:"url"` // 直接指定 URL（优先于 host/port/db）
}

// QueueConfig 作业队列配置
type QueueConfig struct {
	Stream      string        `yaml:"stream"`       // Stream 键名
	Group       string        `yaml:"group"`        // 消费者组
	ReadTimeout time.Duration `yaml:"read_timeout"` // XReadGroup 阻塞时长
	ReadCount   int           `yaml:"read_count"`   // 单次读取消息数
	MaxLen      int64         `yaml:"max_len"`      // Stream 近似最大长度
}

// WorkerConfig Worker 进程配置
type WorkerConfig struct {
	ID          string `yaml:"id"`           // Worker 标识（默认主机名）
	Concurrency int    `yaml:"concurrency"`  // 并发 Pipeline 进程数
	PipelineBin string `yaml:"pipeline_bin"` // pipeline 可执行文件路径
	MetricsPort string `yaml:"metrics_port"` // Prometheus /metrics 端口（空则不暴露）
}

// ArchiveConfig MinIO 结果归档配置
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`  // 是否使用 HTTPS
	Bucket    string `yaml:"bucket"`   // 默认 bucket 名称
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	RedisURL       string
	Paths          PathsConfig
	Solver         SolverConfig
	Match          MatchConfig
	Queue          QueueConfig
	Worker         WorkerConfig
	Archive        ArchiveConfig
	ConfigFilePath string // 实际加载的配置文件路径（启动日志用）
}

// yamlConfigInternal 内部包装，记录配置文件来源（不参与 YAML 序列化）
type yamlConfigInternal struct {
	YAMLConfig `yaml:",inline"`
	loadedFrom string
}
