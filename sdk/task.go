package sdk

import (
	"encoding/json"
	"fmt"
	"time"
)

// Progress 任务进度
type Progress struct {
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
	Stage   string  `json:"stage"`
}

// Result 任务结果；可选字段为 nil 表示服务端未给出
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

// Task GET /tasks/{id}/status 返回的任务快照
type Task struct {
	ID        string         `json:"id"`
	TaskType  string         `json:"task_type"`
	Status    TaskStatus     `json:"status"`
	Progress  Progress       `json:"progress"`
	Result    *Result        `json:"result"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Event 从 SSE 流解析出的一个事件，按 Type 填充对应字段
type Event struct {
	Type     EventType
	Progress *Progress
	Result   *Result
	Message  string
}

type messageData struct {
	Message string `json:"message"`
}

// decodeEvent 按事件名解析 data 行
func decodeEvent(name string, data []byte) (Event, error) {
	ev := Event{Type: EventType(name)}
	switch ev.Type {
	case EventProgress:
		var p Progress
		if err := json.Unmarshal(data, &p); err != nil {
			return ev, fmt.Errorf("decode progress: %w", err)
		}
		ev.Progress = &p
	case EventComplete:
		var r Result
		if err := json.Unmarshal(data, &r); err != nil {
			return ev, fmt.Errorf("decode result: %w", err)
		}
		ev.Result = &r
	case EventError, EventCancelled:
		var m messageData
		if err := json.Unmarshal(data, &m); err != nil {
			return ev, fmt.Errorf("decode message: %w", err)
		}
		ev.Message = m.Message
	default:
		return ev, fmt.Errorf("unknown event %q", name)
	}
	return ev, nil
}
