package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/azhengyongqin/taskstream/internal/model"
	"github.com/azhengyongqin/taskstream/internal/tasks"
)

// TaskArchiveModel GORM 模型 - 对应 task_archive 表
type TaskArchiveModel struct {
	ID              int64           `gorm:"primaryKey;autoIncrement;column:id"`
	TaskID          string          `gorm:"column:task_id;uniqueIndex;type:text;not null"`
	TaskType        string          `gorm:"column:task_type;type:text;not null;index:idx_task_archive_type_created_at"`
	Status          string          `gorm:"column:status;type:text;not null;index:idx_task_archive_status_updated_at"`
	ProgressPercent float64         `gorm:"column:progress_percent;not null;default:0"`
	ProgressMessage string          `gorm:"column:progress_message;type:text;not null;default:''"`
	ProgressStage   string          `gorm:"column:progress_stage;type:text;not null;default:''"`
	Result          json.RawMessage `gorm:"column:result;type:jsonb"`
	Metadata        json.RawMessage `gorm:"column:metadata;type:jsonb;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;not null;index:idx_task_archive_type_created_at,sort:desc"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;not null;index:idx_task_archive_status_updated_at,sort:desc"`
	FinishedAt      *time.Time      `gorm:"column:finished_at"`
}

// TableName 指定表名
func (TaskArchiveModel) TableName() string { return "task_archive" }

// ToTask 转换为任务快照
func (m *TaskArchiveModel) ToTask() (tasks.Task, error) {
	t := tasks.Task{
		ID:       m.TaskID,
		TaskType: m.TaskType,
		Status:   model.TaskStatus(m.Status),
		Progress: tasks.Progress{
			Percent: m.ProgressPercent,
			Message: m.ProgressMessage,
			Stage:   m.ProgressStage,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if len(m.Result) > 0 && string(m.Result) != "null" {
		var r tasks.Result
		if err := json.Unmarshal(m.Result, &r); err != nil {
			return tasks.Task{}, fmt.Errorf("decode result: %w", err)
		}
		t.Result = &r
	}
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &t.Metadata); err != nil {
			return tasks.Task{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return t, nil
}

// TaskToModel 从任务快照创建模型
func TaskToModel(t tasks.Task) (TaskArchiveModel, error) {
	m := TaskArchiveModel{
		TaskID:          t.ID,
		TaskType:        t.TaskType,
		Status:          string(t.Status),
		ProgressPercent: t.Progress.Percent,
		ProgressMessage: t.Progress.Message,
		ProgressStage:   t.Progress.Stage,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}

	meta := t.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return TaskArchiveModel{}, fmt.Errorf("encode metadata: %w", err)
	}
	m.Metadata = b

	if t.Result != nil {
		if m.Result, err = json.Marshal(t.Result); err != nil {
			return TaskArchiveModel{}, fmt.Errorf("encode result: %w", err)
		}
	}
	if t.Status.IsTerminal() {
		finished := t.UpdatedAt
		m.FinishedAt = &finished
	}
	return m, nil
}
