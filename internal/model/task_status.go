package model

// TaskStatus 统一任务状态枚举（用于 API/快照/归档）。
// 约定：
// - pending: 已创建，尚未上报进度
// - processing: worker 正在处理并上报进度
// - completed: 成功结束
// - failed: worker 上报失败
// - cancelled: 被调用方取消（协作式，worker 需自行观察）
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal 是否为终态（completed/failed/cancelled）
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}
