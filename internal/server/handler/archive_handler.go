package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/taskstream/internal/model"
	"github.com/azhengyongqin/taskstream/internal/repository"
	"github.com/azhengyongqin/taskstream/internal/server/dto"
	"github.com/azhengyongqin/taskstream/internal/tasks"
)

// ArchiveLister 归档查询（repository.ArchiveSink 实现）
type ArchiveLister interface {
	List(ctx context.Context, f repository.ListFilter) ([]tasks.Task, int64, error)
}

// ArchiveHandler 已归档任务查询
type ArchiveHandler struct {
	archive ArchiveLister
}

func NewArchiveHandler(archive ArchiveLister) *ArchiveHandler {
	return &ArchiveHandler{archive: archive}
}

// ListArchivedTasks godoc
// @Summary 归档任务列表
// @Description 分页查询 Postgres 中的任务归档（创建记录与最终结果），未配置 POSTGRES_DSN 时返回 503
// @Tags Archive
// @Produce json
// @Param task_type query string false "任务类型"
// @Param status query string false "任务状态"
// @Param limit query int false "分页大小（默认 50，最大 200）"
// @Param offset query int false "偏移量"
// @Success 200 {object} dto.ArchiveListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /archive/tasks [get]
func (h *ArchiveHandler) ListArchivedTasks(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "task archive not configured"})
		return
	}

	f := repository.ListFilter{
		TaskType: c.Query("task_type"),
		Status:   c.Query("status"),
	}
	if f.Status != "" && !model.TaskStatus(f.Status).Valid() {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "status 无效"})
		return
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, total, err := h.archive.List(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to list archived tasks"})
		return
	}

	c.JSON(http.StatusOK, dto.ArchiveListResponse{Total: total, Tasks: list})
}
