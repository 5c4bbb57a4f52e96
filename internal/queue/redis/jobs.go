// Package redis JobQueue 操作
package redis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"netsurvey/internal/queue"
)

// SubmitJob 提交一个单网络流水线任务
func (s *Store) SubmitJob(ctx context.Context, job *queue.JobMessage) (string, error) {
	args := &redis.XAddArgs{
		Stream: s.opts.Stream,
		MaxLen: s.opts.MaxLen,
		Approx: true,
		Values: encodeJob(job),
	}

	msgID, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to submit job %s: %w", job.JobID, err)
	}

	log.Printf("[Redis/Queue] Submitted job: job=%s network=%s msg_id=%s", job.JobID, job.NetworkID, msgID)
	return msgID, nil
}

// CreateConsumerGroup 创建 worker 消费者组
func (s *Store) CreateConsumerGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.opts.Stream, s.opts.Group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group %s: %w", s.opts.Group, err)
	}
	return nil
}

// ConsumeJobs 消费流水线任务
func (s *Store) ConsumeJobs(ctx context.Context, consumerID string, count int64, blockTimeout time.Duration) ([]*queue.JobMessage, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.opts.Group,
		Consumer: consumerID,
		Streams:  []string{s.opts.Stream, ">"},
		Count:    count,
		Block:    blockTimeout,
	}).Result()

	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to consume jobs: %w", err)
	}

	var jobs []*queue.JobMessage
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			jobs = append(jobs, decodeJob(msg))
		}
	}

	if len(jobs) > 0 {
		log.Printf("[Redis/Queue] Consumed %d jobs: consumer=%s", len(jobs), consumerID)
	}

	return jobs, nil
}

// AckJob 确认任务消息已处理
func (s *Store) AckJob(ctx context.Context, messageID string) error {
	return s.client.XAck(ctx, s.opts.Stream, s.opts.Group, messageID).Err()
}

// QueueLength 获取任务流长度
func (s *Store) QueueLength(ctx context.Context) (int64, error) {
	return s.client.XLen(ctx, s.opts.Stream).Result()
}

// PendingCount 获取未确认任务数量
func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	pending, err := s.client.XPending(ctx, s.opts.Stream, s.opts.Group).Result()
	if err != nil {
		return 0, err
	}
	return pending.Count, nil
}

// encodeJob 任务消息编码为流字段
// 所有值按字符串存放，布尔和整数用 strconv 往返
func encodeJob(job *queue.JobMessage) map[string]interface{} {
	submittedAt := job.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}
	return map[string]interface{}{
		"job_id":          job.JobID,
		"network_id":      job.NetworkID,
		"network_file":    job.NetworkFile,
		"pattern_dir":     job.PatternDir,
		"database_dir":    job.DatabaseDir,
		"results_dir":     job.ResultsDir,
		"solver":          job.Solver,
		"procs":           strconv.Itoa(job.Procs),
		"query_script":    job.QueryScript,
		"remove_network":  strconv.FormatBool(job.RemoveNetwork),
		"remove_database": strconv.FormatBool(job.RemoveDatabase),
		"submitted_at":    submittedAt.Format(time.RFC3339Nano),
	}
}

// decodeJob 流消息解码为任务消息
// 缺失或畸形字段回落到零值，消息 ID 始终保留以便 Ack
func decodeJob(msg redis.XMessage) *queue.JobMessage {
	job := &queue.JobMessage{
		ID: msg.ID,
	}
	job.JobID = stringField(msg, "job_id")
	job.NetworkID = stringField(msg, "network_id")
	job.NetworkFile = stringField(msg, "network_file")
	job.PatternDir = stringField(msg, "pattern_dir")
	job.DatabaseDir = stringField(msg, "database_dir")
	job.ResultsDir = stringField(msg, "results_dir")
	job.Solver = stringField(msg, "solver")
	job.QueryScript = stringField(msg, "query_script")

	if v := stringField(msg, "procs"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			job.Procs = n
		}
	}
	if v := stringField(msg, "remove_network"); v != "" {
		job.RemoveNetwork, _ = strconv.ParseBool(v)
	}
	if v := stringField(msg, "remove_database"); v != "" {
		job.RemoveDatabase, _ = strconv.ParseBool(v)
	}
	if v := stringField(msg, "submitted_at"); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.SubmittedAt = t
		}
	}
	return job
}

func stringField(msg redis.XMessage, key string) string {
	if v, ok := msg.Values[key].(string); ok {
		return v
	}
	return ""
}
