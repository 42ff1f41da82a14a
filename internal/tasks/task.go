package tasks

import (
	"math"
	"time"

	"github.com/azhengyongqin/taskstream/internal/model"
)

// Progress 任务进度
type Progress struct {
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
	Stage   string  `json:"stage"`
}

// Result 任务结果
// success=true 时 Message 有意义，否则 Error 有意义；其余为作业自定义的可选字段。
type Result struct {
	Success          bool     `json:"success"`
	DownloadURL      *string  `json:"download_url"`
	Filename         *string  `json:"filename"`
	OriginalSize     *int64   `json:"original_size"`
	ProcessedSize    *int64   `json:"processed_size"`
	CompressionRatio *float64 `json:"compression_ratio"`
	Message          *string  `json:"message"`
	Error            *string  `json:"error"`
}

// Task 一个后台任务的快照。Store 持有唯一的规范副本，对外只返回拷贝。
type Task struct {
	ID        string           `json:"id"`
	TaskType  string           `json:"task_type"`
	Status    model.TaskStatus `json:"status"`
	Progress  Progress         `json:"progress"`
	Result    *Result          `json:"result"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// EventType SSE 事件类型
type EventType string

const (
	EventProgress  EventType = "progress"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
	EventCancelled EventType = "cancelled"
)

// IsTerminal 收到该事件后订阅流结束
func (t EventType) IsTerminal() bool {
	return t == EventComplete || t == EventError || t == EventCancelled
}

// MessageData error/cancelled 事件的载荷
type MessageData struct {
	Message string `json:"message"`
}

// Event 广播给订阅者的事件。Data 为 Progress、Result 或 MessageData。
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data"`
}

const (
	msgTaskNotFound  = "Task not found"
	msgTaskCancelled = "Task cancelled"
	msgTaskFailed    = "Task failed"
)

// ProgressEvent 构造 progress 事件
func ProgressEvent(p Progress) Event {
	return Event{Type: EventProgress, Data: p}
}

// NotFoundEvent 订阅未知任务时产生的 error 事件
func NotFoundEvent() Event {
	return Event{Type: EventError, Data: MessageData{Message: msgTaskNotFound}}
}

// TerminalEvent 返回终态任务对应的唯一事件；非终态返回 false。
func TerminalEvent(t Task) (Event, bool) {
	switch t.Status {
	case model.TaskStatusCompleted:
		r := Result{Success: true}
		if t.Result != nil {
			r = *t.Result
		}
		return Event{Type: EventComplete, Data: r}, true
	case model.TaskStatusFailed:
		msg := msgTaskFailed
		if t.Result != nil && t.Result.Error != nil {
			msg = *t.Result.Error
		}
		return Event{Type: EventError, Data: MessageData{Message: msg}}, true
	case model.TaskStatusCancelled:
		return Event{Type: EventCancelled, Data: MessageData{Message: msgTaskCancelled}}, true
	default:
		return Event{}, false
	}
}

// ChangeKind 变更类型（供持久化/消息 sink 使用，不出现在 SSE 上）
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

// Change Store 每次变更后对外发布的记录，Task 为变更后的快照。
type Change struct {
	Kind ChangeKind `json:"kind"`
	Task Task       `json:"task"`
	At   time.Time  `json:"at"`
}

// Publisher 接收变更；实现必须是非阻塞的（在 Store 锁内调用）。
type Publisher interface {
	Publish(Change)
}

// StringPtr 便于构造 Result 的可选字段
func StringPtr(s string) *string { return &s }

// Int64Ptr 便于构造 Result 的可选字段
func Int64Ptr(v int64) *int64 { return &v }

// Float64Ptr 便于构造 Result 的可选字段
func Float64Ptr(v float64) *float64 { return &v }

// clamp NaN 按下界处理
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	if r.DownloadURL != nil {
		out.DownloadURL = StringPtr(*r.DownloadURL)
	}
	if r.Filename != nil {
		out.Filename = StringPtr(*r.Filename)
	}
	if r.OriginalSize != nil {
		out.OriginalSize = Int64Ptr(*r.OriginalSize)
	}
	if r.ProcessedSize != nil {
		out.ProcessedSize = Int64Ptr(*r.ProcessedSize)
	}
	if r.CompressionRatio != nil {
		out.CompressionRatio = Float64Ptr(*r.CompressionRatio)
	}
	if r.Message != nil {
		out.Message = StringPtr(*r.Message)
	}
	if r.Error != nil {
		out.Error = StringPtr(*r.Error)
	}
	return &out
}

func (t *Task) clone() Task {
	out := *t
	out.Result = t.Result.clone()
	if t.Metadata != nil {
		out.Metadata = copyMetadata(t.Metadata)
	}
	return out
}

// copyMetadata 深拷贝 JSON 形态的元数据（嵌套的 map 与 slice）
func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return copyMetadata(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
