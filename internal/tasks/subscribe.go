package tasks

import (
	"context"
	"time"

	"github.com/azhengyongqin/taskstream/internal/metrics"
	"github.com/azhengyongqin/taskstream/internal/model"
)

// Subscribe 订阅任务事件，返回的通道在流结束时关闭。
//
// 流程：
// 1. 未知任务：发送一个 error{"Task not found"} 后结束
// 2. 已终态：发送一个对应的终态事件后结束，不注册订阅者
// 3. 否则：在同一把锁内取当前进度快照并注册订阅通道，先发送该快照，
// 再转发后续广播；收到终态事件后结束
//
// 空闲超过 keepalive 时，若任务仍在 processing 则重发当前进度，否则结束。
// ctx 取消视为客户端断开。任何退出路径都会注销订阅通道。
func (s *Store) Subscribe(ctx context.Context, id string) <-chan Event {
	out := make(chan Event, 1)

	s.mu.Lock()
	rec, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		out <- NotFoundEvent()
		close(out)
		return out
	}
	if ev, terminal := TerminalEvent(rec.task.clone()); terminal {
		s.mu.Unlock()
		out <- ev
		close(out)
		return out
	}

	first := ProgressEvent(rec.task.Progress)
	ch := make(chan Event, s.bufferSize)
	rec.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	metrics.SubscriberAdded()
	out <- first

	go s.pump(ctx, id, ch, out)
	return out
}

func (s *Store) pump(ctx context.Context, id string, ch chan Event, out chan<- Event) {
	defer close(out)
	defer s.unsubscribe(id, ch)

	timer := time.NewTimer(s.keepalive)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-ch:
			if !deliver(ctx, out, ev) {
				return
			}
			if ev.Type.IsTerminal() {
				return
			}
			timer.Reset(s.keepalive)

		case <-timer.C:
			t, ok := s.GetTask(id)
			if !ok || t.Status != model.TaskStatusProcessing {
				return
			}
			if !deliver(ctx, out, ProgressEvent(t.Progress)) {
				return
			}
			timer.Reset(s.keepalive)
		}
	}
}

func (s *Store) unsubscribe(id string, ch chan Event) {
	s.mu.Lock()
	if rec, ok := s.items[id]; ok {
		delete(rec.subscribers, ch)
	}
	s.mu.Unlock()

	metrics.SubscriberRemoved()
}

func deliver(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
