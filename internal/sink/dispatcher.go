package sink

import (
	"context"
	"sync"
	"time"

	"github.com/azhengyongqin/taskstream/internal/logger"
	"github.com/azhengyongqin/taskstream/internal/metrics"
	"github.com/azhengyongqin/taskstream/internal/tasks"
)

// DefaultBuffer 变更队列默认容量
const DefaultBuffer = 1024

// handleTimeout 单个 sink 处理一条变更的超时
const handleTimeout = 5 * time.Second

// Sink 变更的下游消费者（Redis 镜像、Postgres 归档、Kafka 等）
type Sink interface {
	Name() string
	Handle(ctx context.Context, c tasks.Change) error
}

// Dispatcher 实现 tasks.Publisher：Publish 只做非阻塞入队，
// 单个后台协程按顺序把变更交给每个 Sink。
//
// 同一任务尚未投递的进度变更会被后一条进度变更覆盖（快照是完整的，只保留最新）。
// 队列超过容量时只丢弃进度变更；created、removed 与终态变更总是保留，
// 它们的数量受任务数约束。
type Dispatcher struct {
	sinks []Sink
	limit int

	mu      sync.Mutex
	pending []tasks.Change
	latest  map[string]int // task id -> 该任务最后一条待投递变更在 pending 中的下标
	closed  bool
	notify  chan struct{}
}

func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Dispatcher{
		sinks:  sinks,
		limit:  buffer,
		latest: map[string]int{},
		notify: make(chan struct{}, 1),
	}
}

// Len 已配置的 sink 数量
func (d *Dispatcher) Len() int {
	return len(d.sinks)
}

// progressOnly 非终态的 updated 变更，可被同任务更新的快照替代
func progressOnly(c tasks.Change) bool {
	return c.Kind == tasks.ChangeUpdated && !c.Task.Status.IsTerminal()
}

// Publish 入队一条变更，从不阻塞
func (d *Dispatcher) Publish(c tasks.Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if progressOnly(c) {
		if i, ok := d.latest[c.Task.ID]; ok && progressOnly(d.pending[i]) {
			d.pending[i] = c
			return
		}
		if len(d.pending) >= d.limit {
			metrics.RecordError("sink", "queue_full")
			return
		}
	}

	d.pending = append(d.pending, c)
	d.latest[c.Task.ID] = len(d.pending) - 1

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// take 取走全部待投递变更
func (d *Dispatcher) take(stop bool) []tasks.Change {
	d.mu.Lock()
	defer d.mu.Unlock()

	batch := d.pending
	d.pending = nil
	clear(d.latest)
	if stop {
		d.closed = true
	}
	return batch
}

// Run 消费变更直到 ctx 结束；结束时不再接受新变更，并处理完剩余变更。
func (d *Dispatcher) Run(ctx context.Context) error {
	log := logger.WithComponent("sink")
	log.Info().Int("sinks", len(d.sinks)).Msg("变更分发器已启动")

	for {
		select {
		case <-d.notify:
			for _, c := range d.take(false) {
				d.dispatch(context.Background(), c)
			}
		case <-ctx.Done():
			for _, c := range d.take(true) {
				d.dispatch(context.Background(), c)
			}
			log.Info().Msg("变更分发器已停止")
			return nil
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, c tasks.Change) {
	for _, s := range d.sinks {
		hctx, cancel := context.WithTimeout(ctx, handleTimeout)
		err := s.Handle(hctx, c)
		cancel()

		if err != nil {
			metrics.RecordError("sink", s.Name())
			l := logger.WithTaskID(c.Task.ID)
			l.Warn().
				Err(err).
				Str("sink", s.Name()).
				Str("kind", string(c.Kind)).
				Msg("变更写入失败")
		}
	}
}
