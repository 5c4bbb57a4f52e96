// Package worker Prometheus 指标导出
package worker

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有 Worker 指标
type Metrics struct {
	// 任务执行指标
	JobsRunning prometheus.Gauge
	JobsTotal   *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec

	// 队列指标
	QueueLength   prometheus.Gauge
	ConsumeErrors prometheus.Counter

	// 归档指标
	ArchivedResults *prometheus.CounterVec
}

// NewMetrics 创建 Worker 指标实例
func NewMetrics(namespace, workerID string) *Metrics {
	labels := prometheus.Labels{"worker_id": workerID}

	return &Metrics{
		JobsRunning: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "jobs_running",
				Help:        "Number of currently running pipeline jobs",
				ConstLabels: labels,
			},
		),
		JobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "jobs_total",
				Help:        "Total pipeline jobs by status",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "job_duration_seconds",
				Help:        "Pipeline job duration in seconds",
				Buckets:     []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		QueueLength: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "queue_length",
				Help:        "Length of the job stream",
				ConstLabels: labels,
			},
		),
		ConsumeErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "consume_errors_total",
				Help:        "Total queue consume errors",
				ConstLabels: labels,
			},
		),
		ArchivedResults: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "archived_results_total",
				Help:        "Total archived result records by status",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
	}
}

// RecordJobStart 记录任务开始
func (m *Metrics) RecordJobStart() {
	if m == nil {
		return
	}
	m.JobsRunning.Inc()
}

// RecordJobComplete 记录任务完成
func (m *Metrics) RecordJobComplete(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.JobsRunning.Dec()
	m.JobsTotal.WithLabelValues(status).Inc()
	m.JobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// SetQueueLength 设置队列长度
func (m *Metrics) SetQueueLength(n int64) {
	if m == nil {
		return
	}
	m.QueueLength.Set(float64(n))
}

// RecordConsumeError 记录消费错误
func (m *Metrics) RecordConsumeError() {
	if m == nil {
		return
	}
	m.ConsumeErrors.Inc()
}

// RecordArchive 记录归档结果
// 成功按上传的记录数累加，失败按归档操作计一次
func (m *Metrics) RecordArchive(uploaded int, success bool) {
	if m == nil {
		return
	}
	if success {
		m.ArchivedResults.WithLabelValues("success").Add(float64(uploaded))
		return
	}
	m.ArchivedResults.WithLabelValues("failed").Inc()
}

// MetricsHandler 返回 Prometheus HTTP Handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
