package asynqx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisConnOpt(t *testing.T) {
	opt, err := NewRedisConnOpt("redis://localhost:6379/6")
	require.NoError(t, err)

	client, ok := opt.(asynq.RedisClientOpt)
	require.True(t, ok)
	assert.Equal(t, "localhost:6379", client.Addr)
	assert.Equal(t, 6, client.DB)

	_, err = NewRedisConnOpt("localhost:6379")
	assert.Error(t, err)
}

func TestRunPayload(t *testing.T) {
	task, err := NewRunTask("abc-123")
	require.NoError(t, err)
	assert.Equal(t, TypeRunTask, task.Type())

	p, err := ParseRunPayload(task.Payload())
	require.NoError(t, err)
	assert.Equal(t, "abc-123", p.TaskID)

	_, err = NewRunTask("")
	assert.Error(t, err)

	_, err = ParseRunPayload([]byte(`{}`))
	assert.Error(t, err)
	_, err = ParseRunPayload([]byte(`not json`))
	assert.Error(t, err)
}

func TestEnqueueOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts := EnqueueOptions(EnqueueParams{})
		require.Len(t, opts, 2)
		assert.Equal(t, asynq.MaxRetryOpt, opts[0].Type())
		assert.Equal(t, 0, opts[0].Value())
		assert.Equal(t, asynq.QueueOpt, opts[1].Type())
		assert.Equal(t, DefaultQueue, opts[1].Value())
	})

	t.Run("all options", func(t *testing.T) {
		opts := EnqueueOptions(EnqueueParams{
			TaskID:    "t-1",
			Queue:     "taskstream:host-a",
			UniqueFor: time.Minute,
		})

		types := make([]asynq.OptionType, 0, len(opts))
		for _, o := range opts {
			types = append(types, o.Type())
		}
		assert.Equal(t, []asynq.OptionType{
			asynq.MaxRetryOpt,
			asynq.QueueOpt,
			asynq.TaskIDOpt,
			asynq.UniqueOpt,
		}, types)
		assert.Equal(t, 0, opts[0].Value())
		assert.Equal(t, "taskstream:host-a", opts[1].Value())
		assert.Equal(t, "t-1", opts[2].Value())
	})
}

func TestNewDispatcher_InstanceQueue(t *testing.T) {
	tests := []struct {
		name  string
		queue string
		want  string
	}{
		{"instance queue", "taskstream:host-a", "taskstream:host-a"},
		{"empty falls back", "", DefaultQueue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDispatcher("redis://localhost:6379/0", tt.queue, time.Hour)
			require.NoError(t, err)
			defer d.Close()
			assert.Equal(t, tt.want, d.queue)
		})
	}

	_, err := NewDispatcher("localhost:6379", "q", time.Hour)
	assert.Error(t, err)
}

type recordingExecutor struct {
	ids []string
	err error
}

func (e *recordingExecutor) Execute(ctx context.Context, taskID string) error {
	e.ids = append(e.ids, taskID)
	return e.err
}

func TestProcessor(t *testing.T) {
	exec := &recordingExecutor{}
	p := NewProcessor(exec)

	task, err := NewRunTask("t-9")
	require.NoError(t, err)
	require.NoError(t, p.ProcessTask(context.Background(), task))
	assert.Equal(t, []string{"t-9"}, exec.ids)

	exec.err = errors.New("job failed")
	err = p.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry, "业务失败不重试")

	err = p.ProcessTask(context.Background(), asynq.NewTask(TypeRunTask, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestServeMuxRoutesRunTask(t *testing.T) {
	exec := &recordingExecutor{}
	mux := NewServeMux(NewProcessor(exec))

	task, err := NewRunTask("t-7")
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.Equal(t, []string{"t-7"}, exec.ids)
}
