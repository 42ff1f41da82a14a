package asynqx

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/azhengyongqin/taskstream/internal/logger"
)

// Executor 执行一个任务（jobs.Runner 实现）
type Executor interface {
	Execute(ctx context.Context, taskID string) error
}

// Processor asynq 处理器，把队列中的任务交给 Executor
type Processor struct {
	exec Executor
}

func NewProcessor(exec Executor) *Processor {
	return &Processor{exec: exec}
}

// ProcessTask 实现 asynq.Handler。业务失败已经写入任务状态，统一跳过重试。
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := ParseRunPayload(t.Payload())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := p.exec.Execute(ctx, payload.TaskID); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// NewServeMux 注册 taskstream:run 处理器
func NewServeMux(p *Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeRunTask, p)
	return mux
}

// NewServer 创建 asynq server，只消费 queue，日志接入 zerolog
func NewServer(redisURI, queue string, concurrency int) (*asynq.Server, error) {
	opt, err := NewRedisConnOpt(redisURI)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueName(queue): 1},
		Logger:      zerologAdapter{l: logger.WithComponent("asynq")},
	}), nil
}

// zerologAdapter 实现 asynq.Logger
type zerologAdapter struct {
	l zerolog.Logger
}

func (a zerologAdapter) Debug(args ...any) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Info(args ...any)  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Warn(args ...any)  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Error(args ...any) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Fatal(args ...any) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
