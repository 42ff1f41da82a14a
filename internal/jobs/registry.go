package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/azhengyongqin/taskstream/internal/tasks"
)

var (
	// ErrUnknownTaskType 没有为该 task_type 注册处理函数
	ErrUnknownTaskType = errors.New("unknown task type")
	// ErrTaskNotFound 任务不存在（已被回收或从未创建）
	ErrTaskNotFound = errors.New("task not found")
	// ErrStopped 进度上报被拒绝（任务已取消或已结束），作业主动停止
	ErrStopped = errors.New("task no longer accepts progress")
)

// Reporter 作业上报进度的入口。返回 false 表示任务已不再接受更新（被取消或已结束），
// 作业应尽快退出。
type Reporter interface {
	Report(percent float64, message, stage string) bool
}

// Handler 作业处理函数。ctx 在任务被取消或服务关闭时结束。
// 返回的 Result 中 Success 字段由 Runner 统一置为 true。
type Handler func(ctx context.Context, rep Reporter, task tasks.Task) (tasks.Result, error)

// Registry task_type -> Handler
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Register 注册处理函数，同名重复注册返回错误
func (r *Registry) Register(taskType string, h Handler) error {
	if taskType == "" {
		return fmt.Errorf("task type is required")
	}
	if h == nil {
		return fmt.Errorf("handler for %q is nil", taskType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[taskType]; exists {
		return fmt.Errorf("task type %q already registered", taskType)
	}
	r.handlers[taskType] = h
	return nil
}

// MustRegister 注册失败直接 panic（启动期使用）
func (r *Registry) MustRegister(taskType string, h Handler) {
	if err := r.Register(taskType, h); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(taskType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[taskType]
	return h, ok
}

// Types 已注册的 task_type（排序后）
func (r *Registry) Types() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}
