package tasks

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/taskstream/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []Change
}

func (p *recordingPublisher) Publish(c Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
}

func (p *recordingPublisher) kinds() []ChangeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ChangeKind, 0, len(p.changes))
	for _, c := range p.changes {
		out = append(out, c.Kind)
	}
	return out
}

func TestStore_CreateTask(t *testing.T) {
	store := NewStore()

	// 场景 A
	task := store.CreateTask("video_compress", map[string]any{"quality": "medium"})
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "video_compress", task.TaskType)
	assert.Equal(t, model.TaskStatusPending, task.Status)
	assert.Equal(t, Progress{}, task.Progress)
	assert.Nil(t, task.Result)
	assert.Equal(t, "medium", task.Metadata["quality"])
	assert.False(t, task.UpdatedAt.Before(task.CreatedAt))

	got, ok := store.GetTask(task.ID)
	require.True(t, ok)
	assert.Equal(t, task.ID, got.ID)

	other := store.CreateTask("video_compress", nil)
	assert.NotEqual(t, task.ID, other.ID, "id 必须唯一")
	assert.NotNil(t, other.Metadata)
}

func TestStore_GetTaskReturnsCopy(t *testing.T) {
	store := NewStore()
	task := store.CreateTask("pdf_split", map[string]any{"pages": 3})

	task.Metadata["pages"] = 99
	task.Status = model.TaskStatusFailed

	got, ok := store.GetTask(task.ID)
	require.True(t, ok)
	assert.Equal(t, 3, got.Metadata["pages"])
	assert.Equal(t, model.TaskStatusPending, got.Status)
}

func TestStore_MetadataDeepCopy(t *testing.T) {
	store := NewStore()
	input := map[string]any{
		"options": map[string]any{"codec": "h264"},
		"files":   []any{"a.mp4", map[string]any{"name": "b.mp4"}},
	}
	task := store.CreateTask("video_compress", input)

	// 修改入参不影响已存储的任务
	input["options"].(map[string]any)["codec"] = "vp9"

	// 修改返回的快照也不影响存储
	task.Metadata["files"].([]any)[0] = "changed.mp4"
	task.Metadata["files"].([]any)[1].(map[string]any)["name"] = "changed.mp4"

	got, ok := store.GetTask(task.ID)
	require.True(t, ok)
	got.Metadata["options"].(map[string]any)["codec"] = "av1"

	again, _ := store.GetTask(task.ID)
	assert.Equal(t, "h264", again.Metadata["options"].(map[string]any)["codec"])
	files := again.Metadata["files"].([]any)
	assert.Equal(t, "a.mp4", files[0])
	assert.Equal(t, "b.mp4", files[1].(map[string]any)["name"])
}

func TestStore_UpdateProgressClamps(t *testing.T) {
	tests := []struct {
		name    string
		percent float64
		want    float64
	}{
		{"in range", 42.5, 42.5},
		{"negative", -10, 0},
		{"above max", 150, 100},
		{"zero", 0, 0},
		{"max", 100, 100},
		{"NaN", math.NaN(), 0},
		{"+Inf", math.Inf(1), 100},
		{"-Inf", math.Inf(-1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			task := store.CreateTask("video_compress", nil)

			ok := store.UpdateProgress(task.ID, tt.percent, "x", "encoding")
			require.True(t, ok)

			got, _ := store.GetTask(task.ID)
			assert.Equal(t, tt.want, got.Progress.Percent)
			assert.Equal(t, model.TaskStatusProcessing, got.Status)
			assert.Equal(t, "x", got.Progress.Message)
			assert.Equal(t, "encoding", got.Progress.Stage)
		})
	}
}

func TestStore_CompleteTask(t *testing.T) {
	store := NewStore()
	task := store.CreateTask("video_compress", nil)
	store.UpdateProgress(task.ID, 40, "encoding", "encoding")

	// 场景 C
	ok := store.CompleteTask(task.ID, Result{Success: true, DownloadURL: StringPtr("/d/out.mp4")})
	require.True(t, ok)

	got, _ := store.GetTask(task.ID)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	assert.Equal(t, float64(100), got.Progress.Percent)
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.Success)
	assert.Equal(t, "/d/out.mp4", *got.Result.DownloadURL)
}

func TestStore_CompleteTaskForcesSuccess(t *testing.T) {
	store := NewStore()
	task := store.CreateTask("video_compress", nil)
	events := store.Subscribe(context.Background(), task.ID)

	ok := store.CompleteTask(task.ID, Result{Message: StringPtr("done")})
	require.True(t, ok)

	got, _ := store.GetTask(task.ID)
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.Success)

	evs := collect(t, events, 2*time.Second)
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	require.Equal(t, EventComplete, last.Type)
	result, ok := last.Data.(Result)
	require.True(t, ok)
	assert.True(t, result.Success)
	assert.Equal(t, "done", *result.Message)
}

func TestStore_FailTask(t *testing.T) {
	store := NewStore()
	task := store.CreateTask("video_convert", nil)

	require.True(t, store.FailTask(task.ID, "ffmpeg exited with 1"))

	got, _ := store.GetTask(task.ID)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	require.NotNil(t, got.Result)
	assert.False(t, got.Result.Success)
	assert.Equal(t, "ffmpeg exited with 1", *got.Result.Error)
}

func TestStore_CancelTask(t *testing.T) {
	store := NewStore()
	task := store.CreateTask("video_convert", nil)
	signal, ok := store.CancelSignal(task.ID)
	require.True(t, ok)

	require.True(t, store.CancelTask(task.ID))

	got, _ := store.GetTask(task.ID)
	assert.Equal(t, model.TaskStatusCancelled, got.Status)
	require.NotNil(t, got.Result, "终态任务必须有 result")
	assert.False(t, got.Result.Success)

	select {
	case <-signal:
	default:
		t.Fatal("取消信号应该已关闭")
	}
}

func TestStore_UnknownID(t *testing.T) {
	store := NewStore()
	existing := store.CreateTask("noop", nil)

	// 场景 E
	assert.False(t, store.CancelTask("nonexistent"))
	assert.False(t, store.UpdateProgress("nonexistent", 10, "", ""))
	assert.False(t, store.CompleteTask("nonexistent", Result{Success: true}))
	assert.False(t, store.FailTask("nonexistent", "boom"))

	_, ok := store.GetTask("nonexistent")
	assert.False(t, ok)
	_, ok = store.CancelSignal("nonexistent")
	assert.False(t, ok)

	list := store.ListTasks()
	require.Len(t, list, 1)
	assert.Equal(t, existing.ID, list[0].ID)
	assert.Equal(t, model.TaskStatusPending, list[0].Status)
}

func TestStore_TerminalStatesAreFinal(t *testing.T) {
	store := NewStore()

	t.Run("completed", func(t *testing.T) {
		task := store.CreateTask("noop", nil)
		require.True(t, store.CompleteTask(task.ID, Result{Success: true}))

		assert.False(t, store.UpdateProgress(task.ID, 10, "late", "encoding"))
		assert.False(t, store.FailTask(task.ID, "late failure"))
		assert.False(t, store.CancelTask(task.ID))
		assert.False(t, store.CompleteTask(task.ID, Result{Success: true}))

		got, _ := store.GetTask(task.ID)
		assert.Equal(t, model.TaskStatusCompleted, got.Status)
		assert.Equal(t, float64(100), got.Progress.Percent)
	})

	t.Run("cancelled", func(t *testing.T) {
		task := store.CreateTask("noop", nil)
		require.True(t, store.CancelTask(task.ID))

		assert.False(t, store.UpdateProgress(task.ID, 50, "still running", "encoding"))
		assert.False(t, store.CompleteTask(task.ID, Result{Success: true}))

		got, _ := store.GetTask(task.ID)
		assert.Equal(t, model.TaskStatusCancelled, got.Status)
	})
}

func TestStore_UpdatedAtAdvances(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(WithClock(clock.Now))
	task := store.CreateTask("noop", nil)

	clock.Advance(time.Minute)
	store.UpdateProgress(task.ID, 10, "", "")

	got, _ := store.GetTask(task.ID)
	assert.Equal(t, task.CreatedAt.Add(time.Minute), got.UpdatedAt)
	assert.Equal(t, task.CreatedAt, got.CreatedAt)
}

func TestStore_CleanupOldTasks(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(WithClock(clock.Now), WithTTL(30*time.Minute))

	stalePending := store.CreateTask("noop", nil)
	staleDone := store.CreateTask("noop", nil)
	store.CompleteTask(staleDone.ID, Result{Success: true})
	staleProcessing := store.CreateTask("noop", nil)
	store.UpdateProgress(staleProcessing.ID, 10, "", "")

	clock.Advance(20 * time.Minute)
	fresh := store.CreateTask("noop", nil)
	freshDone := store.CreateTask("noop", nil)
	store.FailTask(freshDone.ID, "boom")

	clock.Advance(11 * time.Minute)
	signal, _ := store.CancelSignal(staleProcessing.ID)

	removed := store.CleanupOldTasks()
	assert.Equal(t, 3, removed)

	for _, id := range []string{stalePending.ID, staleDone.ID, staleProcessing.ID} {
		_, ok := store.GetTask(id)
		assert.False(t, ok, "过期任务应被删除: %s", id)
	}
	for _, id := range []string{fresh.ID, freshDone.ID} {
		_, ok := store.GetTask(id)
		assert.True(t, ok, "未过期任务应保留: %s", id)
	}

	select {
	case <-signal:
	default:
		t.Fatal("被回收任务的取消信号应关闭")
	}

	assert.Equal(t, 0, store.CleanupOldTasks())
}

func TestStore_ListTasksSorted(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(WithClock(clock.Now))

	first := store.CreateTask("a", nil)
	clock.Advance(time.Second)
	second := store.CreateTask("b", nil)
	clock.Advance(time.Second)
	third := store.CreateTask("c", nil)

	list := store.ListTasks()
	require.Len(t, list, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestStore_Publisher(t *testing.T) {
	clock := newFakeClock()
	pub := &recordingPublisher{}
	store := NewStore(WithClock(clock.Now), WithPublisher(pub), WithTTL(time.Minute))

	task := store.CreateTask("noop", nil)
	store.UpdateProgress(task.ID, 50, "", "")
	store.CompleteTask(task.ID, Result{Success: true})
	store.UpdateProgress(task.ID, 60, "", "") // 被拒绝，不发布

	clock.Advance(2 * time.Minute)
	store.CleanupOldTasks()

	assert.Equal(t, []ChangeKind{ChangeCreated, ChangeUpdated, ChangeUpdated, ChangeRemoved}, pub.kinds())

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, model.TaskStatusProcessing, pub.changes[1].Task.Status)
	assert.Equal(t, model.TaskStatusCompleted, pub.changes[2].Task.Status)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = store.CreateTask("noop", nil).ID
	}

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for p := 0; p <= 100; p += 10 {
				store.UpdateProgress(id, float64(p), "", "encoding")
			}
			store.CompleteTask(id, Result{Success: true})
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		got, ok := store.GetTask(id)
		require.True(t, ok)
		assert.Equal(t, model.TaskStatusCompleted, got.Status)
	}
}
