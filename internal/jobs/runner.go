package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"unicode/utf8"

	"github.com/azhengyongqin/taskstream/internal/logger"
	"github.com/azhengyongqin/taskstream/internal/metrics"
	"github.com/azhengyongqin/taskstream/internal/tasks"
)

// maxErrorLen 写入任务结果的错误信息最大长度
const maxErrorLen = 500

// Runner 执行单个任务：查找处理函数、运行、根据结果驱动 Store 状态流转。
type Runner struct {
	store    *tasks.Store
	registry *Registry
}

func NewRunner(store *tasks.Store, registry *Registry) *Runner {
	return &Runner{store: store, registry: registry}
}

// Registry 返回处理函数注册表
func (r *Runner) Registry() *Registry {
	return r.registry
}

type storeReporter struct {
	store *tasks.Store
	id    string
}

func (s storeReporter) Report(percent float64, message, stage string) bool {
	return s.store.UpdateProgress(s.id, percent, message, stage)
}

// Execute 同步执行任务。
//
// - 任务不存在返回 ErrTaskNotFound
// - 任务已是终态（例如排队期间被取消）直接跳过
// - 处理函数出错或 panic 时 FailTask，并把错误返回给调用方
// - 任务在执行期间被取消时不再改变状态，返回 nil
func (r *Runner) Execute(ctx context.Context, taskID string) error {
	log := logger.WithTaskID(taskID)

	task, ok := r.store.GetTask(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if task.Status.IsTerminal() {
		log.Debug().Str("status", string(task.Status)).Msg("任务已结束，跳过执行")
		return nil
	}

	handler, ok := r.registry.Lookup(task.TaskType)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownTaskType, task.TaskType)
		r.store.FailTask(taskID, err.Error())
		return err
	}

	signal, ok := r.store.CancelSignal(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-signal:
			cancel()
		case <-ctx.Done():
		}
	}()

	metrics.JobStarted()
	defer metrics.JobFinished()

	log.Info().Str("task_type", task.TaskType).Msg("开始执行任务")

	result, err := safeRun(ctx, handler, storeReporter{store: r.store, id: taskID}, task)

	if cancelled(signal) {
		log.Info().Msg("任务已被取消")
		return nil
	}

	if err != nil {
		msg := truncate(err.Error(), maxErrorLen)
		if r.store.FailTask(taskID, msg) {
			log.Warn().Err(err).Msg("任务执行失败")
		}
		metrics.RecordError("runner", "job_failed")
		return err
	}

	result.Success = true
	r.store.CompleteTask(taskID, result)
	return nil
}

// safeRun 运行处理函数并把 panic 转换为错误
func safeRun(ctx context.Context, h Handler, rep Reporter, task tasks.Task) (res tasks.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			l := logger.WithTaskID(task.ID)
			l.Error().
				Str("stack", string(debug.Stack())).
				Msgf("任务处理函数 panic: %v", p)
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return h(ctx, rep, task)
}

func cancelled(signal <-chan struct{}) bool {
	select {
	case <-signal:
		return true
	default:
		return false
	}
}

// truncate 按字符截断，不破坏 UTF-8
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

