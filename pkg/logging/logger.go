// Package logging 结构化日志
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// ContextKey 上下文键类型
type ContextKey string

const (
	BatchIDKey   ContextKey = "batch_id"
	JobIDKey     ContextKey = "job_id"
	NetworkIDKey ContextKey = "network_id"
	WorkerIDKey  ContextKey = "worker_id"
)

// Logger 结构化日志器
type Logger struct {
	*slog.Logger
	component string
}

// Config 日志配置
type Config struct {
	Level     string `json:"level"`
	Format    string `json:"format"` // json or text
	Output    string `json:"output"` // stdout, stderr, or file path
	Component string `json:"component"`
}

// New 创建新的日志器
func New(cfg Config) *Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			output = os.Stdout
		} else {
			output = f
		}
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		Logger:    slog.New(handler),
		component: cfg.Component,
	}
}

// Default 创建默认日志器
func Default(component string) *Logger {
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    "stdout",
		Component: component,
	})
}

// WithContext 从上下文提取批次/作业信息
func (l *Logger) WithContext(ctx context.Context) *Logger {
	attrs := []any{slog.String("component", l.component)}

	if batchID, ok := ctx.Value(BatchIDKey).(string); ok && batchID != "" {
		attrs = append(attrs, slog.String("batch_id", batchID))
	}
	if jobID, ok := ctx.Value(JobIDKey).(string); ok && jobID != "" {
		attrs = append(attrs, slog.String("job_id", jobID))
	}
	if networkID, ok := ctx.Value(NetworkIDKey).(string); ok && networkID != "" {
		attrs = append(attrs, slog.String("network_id", networkID))
	}
	if workerID, ok := ctx.Value(WorkerIDKey).(string); ok && workerID != "" {
		attrs = append(attrs, slog.String("worker_id", workerID))
	}

	return &Logger{
		Logger:    l.Logger.With(attrs...),
		component: l.component,
	}
}

// WithJobID 添加作业 ID
func (l *Logger) WithJobID(jobID string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.String("job_id", jobID)),
		component: l.component,
	}
}

// WithNetworkID 添加网络 ID
func (l *Logger) WithNetworkID(networkID string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.String("network_id", networkID)),
		component: l.component,
	}
}

// WithPatternID 添加模式 ID
func (l *Logger) WithPatternID(patternID string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.String("pattern_id", patternID)),
		component: l.component,
	}
}

// WithError 添加错误信息
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{
		Logger:    l.Logger.With(slog.String("error", err.Error())),
		component: l.component,
	}
}

// WithDuration 添加持续时间
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.Float64("duration_ms", float64(d.Milliseconds()))),
		component: l.component,
	}
}

// ExecLog 外部进程调用日志
func (l *Logger) ExecLog(engine, bin string, args []string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("engine", engine),
		slog.String("bin", bin),
		slog.Int("argc", len(args)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.Logger.Error("engine invocation failed", attrs...)
	} else {
		l.Logger.Info("engine invocation done", attrs...)
	}
}

// DBQueryLog 签名库查询日志
func (l *Logger) DBQueryLog(operation, dbPath string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("db", dbPath),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.Logger.Error("DB query failed", attrs...)
	} else {
		l.Logger.Debug("DB query", attrs...)
	}
}

// JobLog 作业事件日志
func (l *Logger) JobLog(action, jobID, networkID string, extra ...any) {
	attrs := []any{
		slog.String("action", action),
		slog.String("job_id", jobID),
		slog.String("network_id", networkID),
	}
	attrs = append(attrs, extra...)
	l.Logger.Info("Job event", attrs...)
}
