package repository

import (
	"context"
	"errors"

	"github.com/azhengyongqin/taskstream/internal/tasks"
)

// ArchiveSink 把任务的创建和最终结果写入归档；中间进度不落库
type ArchiveSink struct {
	repo TaskArchiveRepository
}

func NewArchiveSink(repo TaskArchiveRepository) *ArchiveSink {
	return &ArchiveSink{repo: repo}
}

func (s *ArchiveSink) Name() string { return "postgres" }

// ShouldArchive 判断该变更是否需要写库
func ShouldArchive(c tasks.Change) bool {
	switch c.Kind {
	case tasks.ChangeCreated:
		return true
	case tasks.ChangeUpdated:
		return c.Task.Status.IsTerminal()
	default:
		// 内存回收不影响归档
		return false
	}
}

func (s *ArchiveSink) Handle(ctx context.Context, c tasks.Change) error {
	if !ShouldArchive(c) {
		return nil
	}
	m, err := TaskToModel(c.Task)
	if err != nil {
		return err
	}
	return s.repo.Upsert(ctx, m)
}

// Snapshot 从归档读取任务快照
func (s *ArchiveSink) Snapshot(ctx context.Context, id string) (tasks.Task, bool, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return tasks.Task{}, false, nil
		}
		return tasks.Task{}, false, err
	}
	t, err := m.ToTask()
	if err != nil {
		return tasks.Task{}, false, err
	}
	return t, true, nil
}

// List 分页查询归档任务
func (s *ArchiveSink) List(ctx context.Context, f ListFilter) ([]tasks.Task, int64, error) {
	rows, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]tasks.Task, 0, len(rows))
	for i := range rows {
		t, err := rows[i].ToTask()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, nil
}
