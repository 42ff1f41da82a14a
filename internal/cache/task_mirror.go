package cache

import (
	"context"
	"errors"
	"time"

	"github.com/azhengyongqin/taskstream/internal/tasks"
)

// kv TaskMirror 依赖的最小缓存接口，RedisCache 实现它
type kv interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, keys ...string) error
}

// TaskMirror 把任务快照镜像到 Redis，过期时间与内存保留时长一致。
// 进程重启或多副本部署时，状态查询可以从这里回退读取。
type TaskMirror struct {
	cache kv
	ttl   time.Duration
}

func NewTaskMirror(cache kv, ttl time.Duration) *TaskMirror {
	return &TaskMirror{cache: cache, ttl: ttl}
}

// TaskKey 任务快照的 key
func TaskKey(id string) string {
	return CacheKey("task", id)
}

func (m *TaskMirror) Name() string { return "redis" }

// Handle 写入或删除快照
func (m *TaskMirror) Handle(ctx context.Context, c tasks.Change) error {
	if c.Kind == tasks.ChangeRemoved {
		return m.cache.Delete(ctx, TaskKey(c.Task.ID))
	}
	return m.cache.Set(ctx, TaskKey(c.Task.ID), c.Task, m.ttl)
}

// Snapshot 读取镜像中的任务快照
func (m *TaskMirror) Snapshot(ctx context.Context, id string) (tasks.Task, bool, error) {
	var t tasks.Task
	if err := m.cache.Get(ctx, TaskKey(id), &t); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return tasks.Task{}, false, nil
		}
		return tasks.Task{}, false, err
	}
	return t, true, nil
}
