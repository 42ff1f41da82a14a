package jobs

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/taskstream/internal/model"
	"github.com/azhengyongqin/taskstream/internal/tasks"
)

func newRunner(t *testing.T, handlers map[string]Handler) (*tasks.Store, *Runner) {
	t.Helper()

	store := tasks.NewStore()
	reg := NewRegistry()
	for name, h := range handlers {
		require.NoError(t, reg.Register(name, h))
	}
	return store, NewRunner(store, reg)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	noop := func(ctx context.Context, rep Reporter, task tasks.Task) (tasks.Result, error) {
		return tasks.Result{}, nil
	}

	require.NoError(t, reg.Register("b", noop))
	require.NoError(t, reg.Register("a", noop))
	assert.Error(t, reg.Register("a", noop), "重复注册应报错")
	assert.Error(t, reg.Register("", noop))
	assert.Error(t, reg.Register("c", nil))

	_, ok := reg.Lookup("a")
	assert.True(t, ok)
	_, ok = reg.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, reg.Types())
	assert.Panics(t, func() { reg.MustRegister("a", noop) })
}

func TestRunner_Completes(t *testing.T) {
	store, runner := newRunner(t, map[string]Handler{
		"video_compress": func(ctx context.Context, rep Reporter, task tasks.Task) (tasks.Result, error) {
			assert.True(t, rep.Report(50, "encoding", "encoding"))
			return tasks.Result{Filename: tasks.StringPtr("out.mp4"), OriginalSize: tasks.Int64Ptr(2048)}, nil
		},
	})
	task := store.CreateTask("video_compress", nil)

	require.NoError(t, runner.Execute(context.Background(), task.ID))

	got, ok := store.GetTask(task.ID)
	require.True(t, ok)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.Success, "成功结果的 success 由 Runner 置为 true")
	assert.Equal(t, "out.mp4", *got.Result.Filename)
	assert.Equal(t, float64(100), got.Progress.Percent)
}

func TestRunner_FailsWithTruncatedError(t *testing.T) {
	long := strings.Repeat("x", 800)
	store, runner := newRunner(t, map[string]Handler{
		"broken": func(ctx context.Context, rep Reporter, task tasks.Task) (tasks.Result, error) {
			return tasks.Result{}, errors.New(long)
		},
	})
	task := store.CreateTask("broken", nil)

	err := runner.Execute(context.Background(), task.ID)
	require.Error(t, err)

	got, _ := store.GetTask(task.ID)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	require.NotNil(t, got.Result.Error)
	assert.Len(t, *got.Result.Error, maxErrorLen)
}

func TestRunner_RecoversPanic(t *testing.T) {
	store, runner := newRunner(t, map[string]Handler{
		"panicky": func(ctx context.Context, rep Reporter, task tasks.Task) (tasks.Result, error) {
			panic("boom")
		},
	})
	task := store.CreateTask("panicky", nil)

	err := runner.Execute(context.Background(), task.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	got, _ := store.GetTask(task.ID)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
}

func TestRunner_UnknownTypeAndTask(t *testing.T) {
	store, runner := newRunner(t, nil)

	err := runner.Execute(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	task := store.CreateTask("nobody_handles_this", nil)
	err = runner.Execute(context.Background(), task.ID)
	assert.ErrorIs(t, err, ErrUnknownTaskType)

	got, _ := store.GetTask(task.ID)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
}

func TestRunner_SkipsTerminalTask(t *testing.T) {
	var called atomic.Bool
	store, runner := newRunner(t, map[string]Handler{
		"noop": func(ctx context.Context, rep Reporter, task tasks.Task) (tasks.Result, error) {
			called.Store(true)
			return tasks.Result{}, nil
		},
	})
	task := store.CreateTask("noop", nil)
	store.CancelTask(task.ID)

	require.NoError(t, runner.Execute(context.Background(), task.ID))
	assert.False(t, called.Load(), "排队期间已取消的任务不应执行")
}

func TestRunner_CancelStopsHandler(t *testing.T) {
	started := make(chan struct{})
	store, runner := newRunner(t, map[string]Handler{
		"long": func(ctx context.Context, rep Reporter, task tasks.Task) (tasks.Result, error) {
			rep.Report(10, "working", "encoding")
			close(started)
			<-ctx.Done()
			return tasks.Result{}, ctx.Err()
		},
	})
	task := store.CreateTask("long", nil)

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Execute(context.Background(), task.ID) }()

	<-started
	require.True(t, store.CancelTask(task.ID))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("取消后作业应退出")
	}

	got, _ := store.GetTask(task.ID)
	assert.Equal(t, model.TaskStatusCancelled, got.Status, "取消状态不应被覆盖")
}

func TestLocalDispatcher_BoundsConcurrency(t *testing.T) {
	var (
		running atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)
	store, runner := newRunner(t, map[string]Handler{
		"slow": func(ctx context.Context, rep Reporter, task tasks.Task) (tasks.Result, error) {
			defer wg.Done()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return tasks.Result{}, nil
		},
	})

	d := NewLocalDispatcher(runner, 2)
	ids := make([]string, 6)
	wg.Add(len(ids))
	for i := range ids {
		ids[i] = store.CreateTask("slow", nil).ID
		require.NoError(t, d.Dispatch(context.Background(), ids[i]))
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	assert.LessOrEqual(t, peak.Load(), int32(2))
	for _, id := range ids {
		got, _ := store.GetTask(id)
		assert.Equal(t, model.TaskStatusCompleted, got.Status)
	}

	assert.ErrorIs(t, d.Dispatch(context.Background(), ids[0]), ErrDispatcherClosed)
}

func TestLocalDispatcher_ShutdownCancelsOnDeadline(t *testing.T) {
	store, runner := newRunner(t, map[string]Handler{
		"forever": func(ctx context.Context, rep Reporter, task tasks.Task) (tasks.Result, error) {
			<-ctx.Done()
			return tasks.Result{}, ctx.Err()
		},
	})
	d := NewLocalDispatcher(runner, 1)
	task := store.CreateTask("forever", nil)
	require.NoError(t, d.Dispatch(context.Background(), task.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)

	got, _ := store.GetTask(task.ID)
	assert.Equal(t, model.TaskStatusFailed, got.Status, "服务关闭打断的作业记为失败")
}

func TestDemo(t *testing.T) {
	store, runner := newRunner(t, map[string]Handler{DemoTaskType: Demo})

	t.Run("completes", func(t *testing.T) {
		task := store.CreateTask(DemoTaskType, map[string]any{"steps": float64(3), "interval_ms": float64(1)})
		require.NoError(t, runner.Execute(context.Background(), task.ID))

		got, _ := store.GetTask(task.ID)
		assert.Equal(t, model.TaskStatusCompleted, got.Status)
		require.NotNil(t, got.Result.Message)
		assert.Contains(t, *got.Result.Message, "3 steps")
	})

	t.Run("fails at step", func(t *testing.T) {
		task := store.CreateTask(DemoTaskType, map[string]any{"steps": 5, "interval_ms": 1, "fail_at": 2})
		require.Error(t, runner.Execute(context.Background(), task.ID))

		got, _ := store.GetTask(task.ID)
		assert.Equal(t, model.TaskStatusFailed, got.Status)
		assert.Equal(t, "demo step 2 failed", *got.Result.Error)
	})
}

func TestIntMeta(t *testing.T) {
	meta := map[string]any{
		"a": 3, "b": float64(7), "c": int64(9), "neg": -1, "s": "12",
		"big": float64(1e300), "inf": math.Inf(1), "nan": math.NaN(), "bigint": int64(math.MaxInt64),
	}

	tests := []struct {
		key  string
		def  int
		want int
	}{
		{"a", 0, 3},
		{"b", 0, 7},
		{"c", 0, 9},
		{"neg", 5, 5},
		{"s", 5, 5},
		{"missing", 5, 5},
		{"big", 0, 100},
		{"inf", 0, 100},
		{"nan", 5, 5},
		{"bigint", 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, intMeta(meta, tt.key, tt.def, 100))
		})
	}
	assert.Equal(t, 5, intMeta(nil, "x", 5, 100))
}

func TestDemoParamsBounded(t *testing.T) {
	tests := []struct {
		name         string
		meta         map[string]any
		wantSteps    int
		wantInterval time.Duration
	}{
		{"defaults", nil, defaultDemoSteps, 500 * time.Millisecond},
		{"regular", map[string]any{"steps": 3, "interval_ms": float64(20)}, 3, 20 * time.Millisecond},
		{"huge interval", map[string]any{"interval_ms": float64(1e18)}, defaultDemoSteps, time.Minute},
		{"huge steps", map[string]any{"steps": float64(1e12)}, maxDemoSteps, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, interval, _ := demoParams(tt.meta)
			assert.Equal(t, tt.wantSteps, steps)
			assert.Equal(t, tt.wantInterval, interval)
		})
	}
}
