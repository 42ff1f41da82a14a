package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/taskstream/internal/model"
	"github.com/azhengyongqin/taskstream/internal/tasks"
)

type memorySink struct {
	name string
	err  error

	mu   sync.Mutex
	seen []tasks.Change
}

func (m *memorySink) Name() string { return m.name }

func (m *memorySink) Handle(ctx context.Context, c tasks.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, c)
	return m.err
}

func (m *memorySink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

func (m *memorySink) statuses() []model.TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.TaskStatus, 0, len(m.seen))
	for _, c := range m.seen {
		out = append(out, c.Task.Status)
	}
	return out
}

func TestDispatcher_DeliversInOrderToAllSinks(t *testing.T) {
	good := &memorySink{name: "good"}
	bad := &memorySink{name: "bad", err: errors.New("unavailable")}
	d := NewDispatcher(16, bad, good)

	store := tasks.NewStore(tasks.WithPublisher(d))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	task := store.CreateTask("noop", nil)
	store.UpdateProgress(task.ID, 50, "", "encoding")
	store.CompleteTask(task.ID, tasks.Result{Success: true})

	require.Eventually(t, func() bool { return good.count() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []model.TaskStatus{
		model.TaskStatusPending,
		model.TaskStatusProcessing,
		model.TaskStatusCompleted,
	}, good.statuses())
	assert.Equal(t, 3, bad.count(), "一个 sink 失败不影响其他 sink")

	cancel()
	require.NoError(t, <-done)

	// 关闭后 Publish 不应 panic
	assert.NotPanics(t, func() { d.Publish(tasks.Change{Kind: tasks.ChangeCreated}) })
}

func progress(id string, percent float64) tasks.Change {
	return tasks.Change{Kind: tasks.ChangeUpdated, Task: tasks.Task{
		ID: id, Status: model.TaskStatusProcessing, Progress: tasks.Progress{Percent: percent},
	}}
}

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	s := &memorySink{name: "mem"}
	d := NewDispatcher(8, s)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		d.Publish(progress(id, 10))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Equal(t, 5, s.count())

	// 停止后的变更直接丢弃
	d.Publish(progress("f", 10))
	assert.Equal(t, 5, s.count())
}

func TestDispatcher_CoalescesProgressPerTask(t *testing.T) {
	s := &memorySink{name: "mem"}
	d := NewDispatcher(8, s)

	d.Publish(tasks.Change{Kind: tasks.ChangeCreated, Task: tasks.Task{ID: "a", Status: model.TaskStatusPending}})
	for i := 1; i <= 50; i++ {
		d.Publish(progress("a", float64(i)))
	}
	d.Publish(progress("b", 5))
	d.Publish(tasks.Change{Kind: tasks.ChangeUpdated, Task: tasks.Task{ID: "a", Status: model.TaskStatusCompleted}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.seen, 4)
	assert.Equal(t, tasks.ChangeCreated, s.seen[0].Kind)
	assert.Equal(t, float64(50), s.seen[1].Task.Progress.Percent, "只投递最新的进度快照")
	assert.Equal(t, "b", s.seen[2].Task.ID)
	assert.Equal(t, model.TaskStatusCompleted, s.seen[3].Task.Status)
}

func TestDispatcher_DropsOnlyProgressWhenFull(t *testing.T) {
	s := &memorySink{name: "mem"}
	d := NewDispatcher(2, s)

	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		d.Publish(tasks.Change{Kind: tasks.ChangeCreated, Task: tasks.Task{ID: id, Status: model.TaskStatusPending}})
		d.Publish(progress(id, 50))
		d.Publish(tasks.Change{Kind: tasks.ChangeUpdated, Task: tasks.Task{ID: id, Status: model.TaskStatusFailed}})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	created, terminal := 0, 0
	for _, st := range s.statuses() {
		switch st {
		case model.TaskStatusPending:
			created++
		case model.TaskStatusFailed:
			terminal++
		}
	}
	assert.Equal(t, 10, created)
	assert.Equal(t, 10, terminal)
	assert.Less(t, s.count(), 30, "超出容量的进度变更被丢弃")
	assert.Equal(t, 1, d.Len())
}

// slowSink 每条变更耗时固定时长，模拟同步写 Kafka
type slowSink struct {
	memorySink
	delay time.Duration
}

func (s *slowSink) Handle(ctx context.Context, c tasks.Change) error {
	time.Sleep(s.delay)
	return s.memorySink.Handle(ctx, c)
}

func TestDispatcher_SlowSinkKeepsTerminalChanges(t *testing.T) {
	slow := &slowSink{memorySink: memorySink{name: "slow"}, delay: 5 * time.Millisecond}
	d := NewDispatcher(4, slow)
	store := tasks.NewStore(tasks.WithPublisher(d))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	const jobs = 8
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task := store.CreateTask("demo", nil)
			for p := 1; p <= 200; p++ {
				store.UpdateProgress(task.ID, float64(p)/2, "", "encoding")
			}
			store.CompleteTask(task.ID, tasks.Result{Success: true})
		}()
	}
	wg.Wait()

	cancel()
	require.NoError(t, <-done)

	created, completed := 0, 0
	for _, st := range slow.statuses() {
		switch st {
		case model.TaskStatusPending:
			created++
		case model.TaskStatusCompleted:
			completed++
		}
	}
	assert.Equal(t, jobs, created)
	assert.Equal(t, jobs, completed)
}
