package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/taskstream/internal/jobs"
	"github.com/azhengyongqin/taskstream/internal/logger"
	"github.com/azhengyongqin/taskstream/internal/middleware"
	"github.com/azhengyongqin/taskstream/internal/model"
	"github.com/azhengyongqin/taskstream/internal/server/dto"
	"github.com/azhengyongqin/taskstream/internal/tasks"
)

const (
	msgTaskNotFound     = "Task not found"
	msgTaskCancelled    = "Task cancelled"
	msgFailedToCancel   = "Failed to cancel task"
	msgDispatchDisabled = "task dispatcher not configured"
)

// SnapshotSource 内存中找不到任务时的回退读取源（Redis 镜像、Postgres 归档）
type SnapshotSource interface {
	Name() string
	Snapshot(ctx context.Context, id string) (tasks.Task, bool, error)
}

// TaskHandler 任务状态、SSE 订阅、取消、列表与提交
type TaskHandler struct {
	store      *tasks.Store
	registry   *jobs.Registry
	dispatcher jobs.Dispatcher
	fallbacks  []SnapshotSource
}

// NewTaskHandler 创建 TaskHandler；registry/dispatcher 为空时不支持提交任务
func NewTaskHandler(store *tasks.Store, registry *jobs.Registry, dispatcher jobs.Dispatcher, fallbacks ...SnapshotSource) *TaskHandler {
	return &TaskHandler{
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		fallbacks:  fallbacks,
	}
}

// lookup 先查内存，再依次查回退源
func (h *TaskHandler) lookup(ctx context.Context, id string) (tasks.Task, bool) {
	if t, ok := h.store.GetTask(id); ok {
		return t, true
	}
	return h.lookupFallback(ctx, id)
}

func (h *TaskHandler) lookupFallback(ctx context.Context, id string) (tasks.Task, bool) {
	for _, src := range h.fallbacks {
		t, ok, err := src.Snapshot(ctx, id)
		if err != nil {
			l := logger.WithTaskID(id)
			l.Warn().Err(err).Str("source", src.Name()).Msg("回退读取任务快照失败")
			continue
		}
		if ok {
			return t, true
		}
	}
	return tasks.Task{}, false
}

// GetTaskStatus godoc
// @Summary 查询任务状态
// @Description 返回任务当前快照（轮询方式）；内存中不存在时回退到 Redis 镜像或归档
// @Tags Tasks
// @Produce json
// @Param task_id path string true "任务 ID"
// @Success 200 {object} tasks.Task
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{task_id}/status [get]
func (h *TaskHandler) GetTaskStatus(c *gin.Context) {
	t, ok := h.lookup(c.Request.Context(), c.Param("task_id"))
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: msgTaskNotFound})
		return
	}
	c.JSON(http.StatusOK, t)
}

// StreamTask godoc
// @Summary 订阅任务进度（SSE）
// @Description 以 Server-Sent Events 推送 progress / complete / error / cancelled 事件，终态事件后连接关闭
// @Tags Tasks
// @Produce text/event-stream
// @Param task_id path string true "任务 ID"
// @Success 200 {string} string "event stream"
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{task_id}/stream [get]
func (h *TaskHandler) StreamTask(c *gin.Context) {
	id := c.Param("task_id")
	ctx := c.Request.Context()

	var events <-chan tasks.Event
	if _, ok := h.store.GetTask(id); ok {
		events = h.store.Subscribe(ctx, id)
	} else if t, ok := h.lookupFallback(ctx, id); ok {
		events = snapshotEvents(t)
	} else {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: msgTaskNotFound})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(string(ev.Type), ev.Data)
		return true
	})
}

// snapshotEvents 回退源中的任务没有订阅者可注册，只推送一次当前状态
func snapshotEvents(t tasks.Task) <-chan tasks.Event {
	ch := make(chan tasks.Event, 1)
	if ev, ok := tasks.TerminalEvent(t); ok {
		ch <- ev
	} else {
		ch <- tasks.ProgressEvent(t.Progress)
	}
	close(ch)
	return ch
}

// CancelTask godoc
// @Summary 取消任务
// @Description 协作式取消：修改任务状态并结束所有订阅流，执行中的作业收到取消信号后自行退出
// @Tags Tasks
// @Produce json
// @Param task_id path string true "任务 ID"
// @Success 200 {object} dto.CancelTaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{task_id}/cancel [post]
func (h *TaskHandler) CancelTask(c *gin.Context) {
	id := c.Param("task_id")

	if _, ok := h.store.GetTask(id); !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: msgTaskNotFound})
		return
	}
	if !h.store.CancelTask(id) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msgFailedToCancel})
		return
	}

	c.JSON(http.StatusOK, dto.CancelTaskResponse{Success: true, Message: msgTaskCancelled})
}

// ListTasks godoc
// @Summary 任务列表（诊断）
// @Description 返回内存中的全部任务，按创建时间排序
// @Tags Tasks
// @Produce json
// @Success 200 {object} dto.ListTasksResponse
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	list := h.store.ListTasks()
	c.JSON(http.StatusOK, dto.ListTasksResponse{Count: len(list), Tasks: list})
}

// CreateTask godoc
// @Summary 提交任务
// @Description 创建任务并交给执行器（进程内协程池或 asynq 队列）
// @Tags Tasks
// @Accept json
// @Produce json
// @Param request body dto.CreateTaskRequest true "任务提交请求"
// @Success 200 {object} dto.CreateTaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	if h.registry == nil || h.dispatcher == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: msgDispatchDisabled})
		return
	}

	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if !middleware.ValidateTaskType(req.TaskType) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "task_type 格式无效"})
		return
	}
	if _, ok := h.registry.Lookup(req.TaskType); !ok {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: fmt.Sprintf("unknown task type: %s", req.TaskType)})
		return
	}

	t := h.store.CreateTask(req.TaskType, req.Metadata)

	if err := h.dispatcher.Dispatch(c.Request.Context(), t.ID); err != nil {
		l := logger.WithTaskID(t.ID)
		l.Error().Err(err).Msg("任务分发失败")
		h.store.FailTask(t.ID, "dispatch failed: "+err.Error())
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "failed to dispatch task"})
		return
	}

	c.JSON(http.StatusOK, dto.CreateTaskResponse{
		TaskID:   t.ID,
		TaskType: t.TaskType,
		Status:   string(model.TaskStatusPending),
	})
}

// ListTaskTypes godoc
// @Summary 可提交的任务类型
// @Tags Tasks
// @Produce json
// @Success 200 {object} dto.TaskTypesResponse
// @Router /task-types [get]
func (h *TaskHandler) ListTaskTypes(c *gin.Context) {
	types := []string{}
	if h.registry != nil {
		types = h.registry.Types()
	}
	c.JSON(http.StatusOK, dto.TaskTypesResponse{TaskTypes: types})
}
