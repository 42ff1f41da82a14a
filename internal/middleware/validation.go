package middleware

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

const (
	// MaxPayloadSize 最大 payload 大小（2MB）
	MaxPayloadSize = 2 * 1024 * 1024
)

var (
	// TaskIDRegex TaskID 正则（字母数字连字符，1-128字符）
	TaskIDRegex = regexp.MustCompile(`^[a-zA-Z0-9-]{1,128}$`)

	// TaskTypeRegex 任务类型正则（字母数字下划线点连字符，1-64字符）
	TaskTypeRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)
)

// PayloadSizeLimit Payload 大小限制中间件
func PayloadSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("request body too large, max %d bytes", maxSize),
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// ValidateTaskID 验证 Task ID
func ValidateTaskID(taskID string) bool {
	return TaskIDRegex.MatchString(taskID)
}

// ValidateTaskType 验证任务类型
func ValidateTaskType(taskType string) bool {
	return TaskTypeRegex.MatchString(taskType)
}

// ValidateTaskIDParam Gin 中间件：验证路径参数中的 task_id。
// 格式非法的 id 不可能对应任何任务，按未找到处理。
func ValidateTaskIDParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ValidateTaskID(c.Param("task_id")) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error": "Task not found",
			})
			return
		}
		c.Next()
	}
}

// CORSMiddleware CORS 中间件，EventSource 跨域订阅需要
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Last-Event-ID, X-Request-ID")
		h.Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
