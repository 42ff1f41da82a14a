package dto

import "github.com/azhengyongqin/taskstream/internal/tasks"

// CancelTaskResponse 取消任务响应
type CancelTaskResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Task cancelled"`
}

// ListTasksResponse 内存中任务列表（诊断用）
type ListTasksResponse struct {
	Count int          `json:"count" example:"1"`
	Tasks []tasks.Task `json:"tasks"`
}

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	TaskType string         `json:"task_type" binding:"required" example:"demo"`
	Metadata map[string]any `json:"metadata"`
}

// CreateTaskResponse 创建任务响应
type CreateTaskResponse struct {
	TaskID   string `json:"task_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	TaskType string `json:"task_type" example:"demo"`
	Status   string `json:"status" example:"pending"`
}

// TaskTypesResponse 可提交的任务类型
type TaskTypesResponse struct {
	TaskTypes []string `json:"task_types"`
}

// ArchiveListResponse 归档任务分页列表
type ArchiveListResponse struct {
	Total int64        `json:"total" example:"42"`
	Tasks []tasks.Task `json:"tasks"`
}
