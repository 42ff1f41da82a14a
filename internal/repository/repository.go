package repository

import (
	"context"
	"errors"
)

// ErrNotFound 归档中不存在该任务
var ErrNotFound = errors.New("archived task not found")

// ListFilter 归档任务列表查询条件
type ListFilter struct {
	TaskType string
	Status   string
	Limit    int
	Offset   int
}

// normalize 限制分页参数
func (f ListFilter) normalize() ListFilter {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// TaskArchiveRepository 任务归档仓储接口
type TaskArchiveRepository interface {
	// Upsert 创建或覆盖一条归档记录（以 task_id 为键）
	Upsert(ctx context.Context, m TaskArchiveModel) error

	// Get 按 task_id 查询，不存在返回 ErrNotFound
	Get(ctx context.Context, taskID string) (*TaskArchiveModel, error)

	// List 按创建时间倒序分页查询
	List(ctx context.Context, f ListFilter) ([]TaskArchiveModel, int64, error)
}
