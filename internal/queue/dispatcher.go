package asynqx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/azhengyongqin/taskstream/internal/logger"
)

// Dispatcher 通过 asynq 把任务投递给本进程的 Processor
type Dispatcher struct {
	client    *asynq.Client
	queue     string
	uniqueFor time.Duration
}

// NewDispatcher 创建 asynq 分发器。queue 必须只被本进程的 Server 消费，
// 任务状态只在本进程内存中。uniqueFor 通常取任务保留时长。
func NewDispatcher(redisURI, queue string, uniqueFor time.Duration) (*Dispatcher, error) {
	opt, err := NewRedisConnOpt(redisURI)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	return &Dispatcher{
		client:    asynq.NewClient(opt),
		queue:     QueueName(queue),
		uniqueFor: uniqueFor,
	}, nil
}

// Dispatch 入队一个执行任务；同一 task_id 重复入队视为成功
func (d *Dispatcher) Dispatch(ctx context.Context, taskID string) error {
	t, err := NewRunTask(taskID)
	if err != nil {
		return err
	}

	info, err := d.client.EnqueueContext(ctx, t, EnqueueOptions(EnqueueParams{
		TaskID:    taskID,
		Queue:     d.queue,
		UniqueFor: d.uniqueFor,
	})...)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
			l := logger.WithTaskID(taskID)
			l.Debug().Msg("任务已在队列中")
			return nil
		}
		return fmt.Errorf("enqueue task: %w", err)
	}

	l := logger.WithTaskID(taskID)

	l.Debug().
		Str("queue", info.Queue).
		Msg("任务已入队")
	return nil
}

// Close 关闭 asynq client
func (d *Dispatcher) Close() error {
	return d.client.Close()
}
