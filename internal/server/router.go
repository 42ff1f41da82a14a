package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/azhengyongqin/taskstream/internal/healthcheck"
	"github.com/azhengyongqin/taskstream/internal/jobs"
	"github.com/azhengyongqin/taskstream/internal/middleware"
	"github.com/azhengyongqin/taskstream/internal/server/handler"
	"github.com/azhengyongqin/taskstream/internal/tasks"
)

type Deps struct {
	Store *tasks.Store

	// Registry / Dispatcher 用于 POST /tasks；为空时提交接口返回 503
	Registry   *jobs.Registry
	Dispatcher jobs.Dispatcher

	// 可选：内存中找不到任务时的回退读取源
	Fallbacks []handler.SnapshotSource

	// 可选：Postgres 归档查询
	Archive handler.ArchiveLister

	// HealthChecker 健康检查器
	HealthChecker *healthcheck.HealthChecker
}

// NewRouter 提供 Gin HTTP API
// @title Taskstream API
// @version 1.0.0
// @description 后台任务进度跟踪与 SSE 推送 API
// @BasePath /api/v1
// @schemes http https
func NewRouter(deps Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	// 全局中间件
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.PrometheusMiddleware())
	r.Use(middleware.PayloadSizeLimit(middleware.MaxPayloadSize))
	r.Use(middleware.CORSMiddleware())

	healthHandler := handler.NewHealthHandler(deps.HealthChecker)
	taskHandler := handler.NewTaskHandler(deps.Store, deps.Registry, deps.Dispatcher, deps.Fallbacks...)
	archiveHandler := handler.NewArchiveHandler(deps.Archive)

	// 健康检查路由
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	// Prometheus metrics 端点
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger API 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	{
		tasksGroup := api.Group("/tasks")
		tasksGroup.GET("", taskHandler.ListTasks)
		tasksGroup.GET("/", taskHandler.ListTasks)
		tasksGroup.POST("", taskHandler.CreateTask)

		byID := tasksGroup.Group("/:task_id", middleware.ValidateTaskIDParam())
		byID.GET("/status", taskHandler.GetTaskStatus)
		byID.GET("/stream", taskHandler.StreamTask)
		byID.POST("/cancel", taskHandler.CancelTask)

		api.GET("/task-types", taskHandler.ListTaskTypes)
		api.GET("/archive/tasks", archiveHandler.ListArchivedTasks)
	}

	return r
}
