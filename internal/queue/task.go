package asynqx

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TypeRunTask asynq 任务类型：执行一个已在 Store 中创建的任务
	TypeRunTask = "taskstream:run"
	// DefaultQueue 默认队列名
	DefaultQueue = "taskstream"
)

// RunPayload asynq 任务载荷，只携带 task_id，任务详情以 Store 为准
type RunPayload struct {
	TaskID string `json:"task_id"`
}

// NewRunTask 构造执行任务的 asynq.Task
func NewRunTask(taskID string) (*asynq.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task_id is required")
	}
	b, err := json.Marshal(RunPayload{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRunTask, b), nil
}

// ParseRunPayload 解析载荷
func ParseRunPayload(b []byte) (RunPayload, error) {
	var p RunPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return RunPayload{}, fmt.Errorf("decode run payload: %w", err)
	}
	if p.TaskID == "" {
		return RunPayload{}, fmt.Errorf("run payload missing task_id")
	}
	return p, nil
}

// EnqueueParams 入队参数
type EnqueueParams struct {
	TaskID    string // 作为 asynq task id，同一任务不会重复入队
	Queue     string
	UniqueFor time.Duration
}

// QueueName 空名称回落到 DefaultQueue
func QueueName(queue string) string {
	if queue == "" {
		return DefaultQueue
	}
	return queue
}

// EnqueueOptions 把入队参数转换为 asynq 选项。
// 任务状态只能单向流转，失败后不重试，MaxRetry 固定为 0。
func EnqueueOptions(p EnqueueParams) []asynq.Option {
	opts := []asynq.Option{
		asynq.MaxRetry(0),
		asynq.Queue(QueueName(p.Queue)),
	}
	if p.TaskID != "" {
		opts = append(opts, asynq.TaskID(p.TaskID))
	}
	if p.UniqueFor > 0 {
		opts = append(opts, asynq.Unique(p.UniqueFor))
	}
	return opts
}
