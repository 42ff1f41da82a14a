package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskArchiveRepo 基于 GORM 的归档实现
type TaskArchiveRepo struct {
	db *gorm.DB
}

func NewTaskArchiveRepo(db *gorm.DB) *TaskArchiveRepo {
	return &TaskArchiveRepo{db: db}
}

func (r *TaskArchiveRepo) Upsert(ctx context.Context, m TaskArchiveModel) error {
	if m.TaskID == "" {
		return errors.New("task_id 不能为空")
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "task_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status",
				"progress_percent",
				"progress_message",
				"progress_stage",
				"result",
				"metadata",
				"updated_at",
				"finished_at",
			}),
		}).
		Create(&m).Error
	if err != nil {
		return fmt.Errorf("upsert task_archive: %w", err)
	}
	return nil
}

func (r *TaskArchiveRepo) Get(ctx context.Context, taskID string) (*TaskArchiveModel, error) {
	var m TaskArchiveModel
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task_archive: %w", err)
	}
	return &m, nil
}

func (r *TaskArchiveRepo) List(ctx context.Context, f ListFilter) ([]TaskArchiveModel, int64, error) {
	f = f.normalize()

	q := r.db.WithContext(ctx).Model(&TaskArchiveModel{})
	if f.TaskType != "" {
		q = q.Where("task_type = ?", f.TaskType)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count task_archive: %w", err)
	}

	var out []TaskArchiveModel
	if err := q.Order("created_at desc").Limit(f.Limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list task_archive: %w", err)
	}
	return out, total, nil
}
