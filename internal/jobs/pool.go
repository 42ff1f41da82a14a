package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/azhengyongqin/taskstream/internal/logger"
)

// ErrDispatcherClosed 分发器已关闭，不再接受任务
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher 把已创建的任务交给执行方（进程内协程池或 asynq 队列）
type Dispatcher interface {
	Dispatch(ctx context.Context, taskID string) error
}

// LocalDispatcher 进程内有界协程池，信号量限制并发
type LocalDispatcher struct {
	runner *Runner
	sem    chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	// base 是所有作业的父 context，Shutdown 超时后取消
	base   context.Context
	cancel context.CancelFunc
}

func NewLocalDispatcher(runner *Runner, maxWorkers int) *LocalDispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	base, cancel := context.WithCancel(context.Background())
	return &LocalDispatcher{
		runner: runner,
		sem:    make(chan struct{}, maxWorkers),
		base:   base,
		cancel: cancel,
	}
}

// Dispatch 异步执行任务，立即返回。
// ctx 只作用于提交本身，作业生命周期跟随分发器而不是请求。
func (d *LocalDispatcher) Dispatch(ctx context.Context, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		select {
		case d.sem <- struct{}{}:
			defer func() { <-d.sem }()
		case <-d.base.Done():
			return
		}

		if err := d.runner.Execute(d.base, taskID); err != nil {
			l := logger.WithTaskID(taskID)
			l.Debug().Err(err).Msg("本地作业返回错误")
		}
	}()
	return nil
}

// Shutdown 停止接收新任务并等待在途作业结束；ctx 到期后取消全部作业再等待。
func (d *LocalDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
