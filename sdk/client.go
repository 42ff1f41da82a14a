package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrTaskNotFound 服务端返回 404
var ErrTaskNotFound = errors.New("task not found")

// APIError 非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// Client HTTP 客户端，用于与 taskstream 服务通信
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// StreamClient 用于 SSE 长连接，不能设置整体超时
	StreamClient *http.Client
	Logger       zerolog.Logger
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 替换普通请求使用的 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithLogger 设置日志器，默认不输出
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.Logger = l }
}

// NewClient 创建客户端；baseURL 为空时使用 DefaultBaseURL()
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL()
	}
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		StreamClient: &http.Client{},
		Logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitRequest 提交任务请求
type SubmitRequest struct {
	TaskType string         `json:"task_type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SubmitResponse 提交任务响应
type SubmitResponse struct {
	TaskID   string `json:"task_id"`
	TaskType string `json:"task_type"`
	Status   string `json:"status"`
}

// CancelResponse 取消任务响应
type CancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Submit 提交任务，返回任务 ID
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	var out SubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/tasks", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStatus 查询任务状态
func (c *Client) GetStatus(ctx context.Context, taskID string) (*Task, error) {
	var out Task
	if err := c.doJSON(ctx, http.MethodGet, taskPath(taskID, "status"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks 列出服务端内存中的任务
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var out struct {
		Count int    `json:"count"`
		Tasks []Task `json:"tasks"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Cancel 取消任务；任务已结束时返回 *APIError（400）
func (c *Client) Cancel(ctx context.Context, taskID string) (*CancelResponse, error) {
	var out CancelResponse
	if err := c.doJSON(ctx, http.MethodPost, taskPath(taskID, "cancel"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TaskTypes 服务端可执行的任务类型
func (c *Client) TaskTypes(ctx context.Context) ([]string, error) {
	var out struct {
		TaskTypes []string `json:"task_types"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/task-types", nil, &out); err != nil {
		return nil, err
	}
	return out.TaskTypes, nil
}

func taskPath(taskID, action string) string {
	return fmt.Sprintf("/api/v1/tasks/%s/%s", url.PathEscape(taskID), action)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrTaskNotFound
	}

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(b))
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
