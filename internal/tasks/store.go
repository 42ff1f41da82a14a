package tasks

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/azhengyongqin/taskstream/internal/logger"
	"github.com/azhengyongqin/taskstream/internal/metrics"
	"github.com/azhengyongqin/taskstream/internal/model"
)

const (
	// DefaultTTL 任务在最后一次更新后保留的时长
	DefaultTTL = 30 * time.Minute
	// DefaultSubscriberBuffer 每个订阅者最多积压的事件数，满了直接丢弃
	DefaultSubscriberBuffer = 100
	// DefaultKeepalive 订阅者空闲多久后重发一次当前进度
	DefaultKeepalive = 30 * time.Second
)

type record struct {
	task        Task
	subscribers map[chan Event]struct{}
	cancelCh    chan struct{}
}

// Store 进程内任务注册表，所有状态变更、订阅者集合与广播都由一把锁串行化。
type Store struct {
	mu    sync.RWMutex
	items map[string]*record // key: task id

	ttl        time.Duration
	bufferSize int
	keepalive  time.Duration
	now        func() time.Time
	publisher  Publisher
}

// Option Store 构造选项
type Option func(*Store)

func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithSubscriberBuffer(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

func WithKeepalive(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.keepalive = d
		}
	}
}

// WithClock 替换时间源（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPublisher 设置变更发布者（持久化/消息 sink）
func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		items:      map[string]*record{},
		ttl:        DefaultTTL,
		bufferSize: DefaultSubscriberBuffer,
		keepalive:  DefaultKeepalive,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateTask 创建任务（pending），从不失败
func (s *Store) CreateTask(taskType string, metadata map[string]any) Task {
	now := s.now()
	t := Task{
		ID:        uuid.NewString(),
		TaskType:  taskType,
		Status:    model.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  copyMetadata(metadata),
	}

	rec := &record{
		task:        t,
		subscribers: map[chan Event]struct{}{},
		cancelCh:    make(chan struct{}),
	}

	s.mu.Lock()
	s.items[t.ID] = rec
	s.publish(ChangeCreated, rec)
	out := rec.task.clone()
	s.mu.Unlock()

	metrics.RecordTaskCreated(taskType)
	l := logger.WithTaskID(t.ID)
	l.Debug().Str("task_type", taskType).Msg("任务已创建")
	return out
}

// GetTask 返回任务快照
func (s *Store) GetTask(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.items[id]
	if !ok {
		return Task{}, false
	}
	return rec.task.clone(), true
}

// ListTasks 返回全部任务快照（诊断用），按创建时间排序
func (s *Store) ListTasks() []Task {
	s.mu.RLock()
	out := make([]Task, 0, len(s.items))
	for _, rec := range s.items {
		out = append(out, rec.task.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// UpdateProgress 更新进度并广播 progress 事件。
// 未知任务或已处于终态的任务返回 false，不做任何修改。
func (s *Store) UpdateProgress(id string, percent float64, message, stage string) bool {
	_, ok := s.mutate(id, func(rec *record) (Event, bool) {
		rec.task.Status = model.TaskStatusProcessing
		rec.task.Progress = Progress{
			Percent: clamp(percent, 0, 100),
			Message: message,
			Stage:   stage,
		}
		return ProgressEvent(rec.task.Progress), true
	})
	return ok
}

// CompleteTask 标记完成（percent 强制为 100，Success 强制为 true）并广播 complete 事件
func (s *Store) CompleteTask(id string, result Result) bool {
	result.Success = true
	t, ok := s.mutate(id, func(rec *record) (Event, bool) {
		rec.task.Status = model.TaskStatusCompleted
		rec.task.Progress.Percent = 100
		rec.task.Result = result.clone()
		return Event{Type: EventComplete, Data: *result.clone()}, true
	})
	if ok {
		s.finished(t)
	}
	return ok
}

// FailTask 标记失败并广播 error 事件
func (s *Store) FailTask(id string, errMsg string) bool {
	t, ok := s.mutate(id, func(rec *record) (Event, bool) {
		rec.task.Status = model.TaskStatusFailed
		rec.task.Result = &Result{Success: false, Error: StringPtr(errMsg)}
		return Event{Type: EventError, Data: MessageData{Message: errMsg}}, true
	})
	if ok {
		s.finished(t)
	}
	return ok
}

// CancelTask 标记取消并广播 cancelled 事件，同时关闭该任务的取消信号。
// 只修改状态，真正停止工作由 worker 自己完成。
func (s *Store) CancelTask(id string) bool {
	t, ok := s.mutate(id, func(rec *record) (Event, bool) {
		rec.task.Status = model.TaskStatusCancelled
		rec.task.Result = &Result{Success: false, Error: StringPtr(msgTaskCancelled)}
		closeSignal(rec)
		return Event{Type: EventCancelled, Data: MessageData{Message: msgTaskCancelled}}, true
	})
	if ok {
		s.finished(t)
	}
	return ok
}

// CancelSignal 返回任务的取消信号，CancelTask（或任务被回收）时关闭
func (s *Store) CancelSignal(id string) (<-chan struct{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return rec.cancelCh, true
}

// SubscriberCount 当前订阅者数量
func (s *Store) SubscriberCount(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.items[id]
	if !ok {
		return 0
	}
	return len(rec.subscribers)
}

// CleanupOldTasks 删除 updated_at 早于 TTL 的任务（不区分状态），返回删除数量
func (s *Store) CleanupOldTasks() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	removed := 0
	for id, rec := range s.items {
		if !rec.task.UpdatedAt.Before(cutoff) {
			continue
		}
		delete(s.items, id)
		closeSignal(rec)
		s.publish(ChangeRemoved, rec)
		removed++
	}
	s.mu.Unlock()

	if removed > 0 {
		metrics.RecordTasksCleaned(removed)
	}
	return removed
}

// mutate 在锁内执行状态变更、广播与发布。终态任务拒绝任何变更。
func (s *Store) mutate(id string, apply func(rec *record) (Event, bool)) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.items[id]
	if !ok || rec.task.Status.IsTerminal() {
		return Task{}, false
	}

	ev, ok := apply(rec)
	if !ok {
		return Task{}, false
	}
	rec.task.UpdatedAt = s.touch(rec.task.CreatedAt)

	s.broadcast(rec, ev)
	s.publish(ChangeUpdated, rec)
	return rec.task.clone(), true
}

// broadcast 非阻塞地把事件推给每个订阅者，通道满则丢弃
func (s *Store) broadcast(rec *record, ev Event) {
	for ch := range rec.subscribers {
		select {
		case ch <- ev:
		default:
			metrics.RecordEventDropped(string(ev.Type))
		}
	}
}

func (s *Store) publish(kind ChangeKind, rec *record) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(Change{Kind: kind, Task: rec.task.clone(), At: s.now()})
}

func (s *Store) touch(createdAt time.Time) time.Time {
	now := s.now()
	if now.Before(createdAt) {
		return createdAt
	}
	return now
}

func (s *Store) finished(t Task) {
	metrics.RecordTaskFinished(t.TaskType, string(t.Status), t.UpdatedAt.Sub(t.CreatedAt).Seconds())
	l := logger.WithTaskID(t.ID)
	l.Info().
		Str("task_type", t.TaskType).
		Str("status", string(t.Status)).
		Msg("任务结束")
}

func closeSignal(rec *record) {
	select {
	case <-rec.cancelCh:
	default:
		close(rec.cancelCh)
	}
}
