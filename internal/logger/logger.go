package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// L 全局 logger（未 Init 时为禁用状态，测试中不输出）
	L zerolog.Logger
)

// Init 初始化日志器
func Init(production bool) error {
	L = New(os.Stdout, production)

	// 设置全局日志级别
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	return nil
}

// New 构造 logger，production 为 true 时输出 JSON
func New(out io.Writer, production bool) zerolog.Logger {
	// 设置时间格式
	zerolog.TimeFieldFormat = time.RFC3339

	if production {
		// 生产环境：JSON 格式输出
		return zerolog.New(out).
			With().
			Timestamp().
			Caller().
			Logger()
	}

	// 开发环境：控制台友好格式
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		// 自定义字段输出顺序
		FieldsOrder: []string{
			"request_id",   // 1. 请求 ID
			"task_id",      // 2. 任务 ID
			"task_type",    // 3. 任务类型
			"status",       // 4. 状态码 / 任务状态
			"method",       // 5. HTTP 方法
			"path",         // 6. 请求路径
			"duration(ms)", // 7. 耗时
			"client_ip",    // 8. 客户端 IP
			"errors",       // 9. 错误信息
		},
	}
	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Sync zerolog 不需要显式 sync，保留接口兼容性
func Sync() {
	// zerolog 不需要显式 sync
}

// SetLevel 设置日志级别
func SetLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// WithRequestID 添加 request_id
func WithRequestID(requestID string) zerolog.Logger {
	return L.With().Str("request_id", requestID).Logger()
}

// WithTaskID 添加 task_id
func WithTaskID(taskID string) zerolog.Logger {
	return L.With().Str("task_id", taskID).Logger()
}

// WithComponent 添加 component（sink/janitor/queue 等后台组件）
func WithComponent(component string) zerolog.Logger {
	return L.With().Str("component", component).Logger()
}

// Debug 输出 debug 级别日志
func Debug() *zerolog.Event {
	return L.Debug()
}

// Info 输出 info 级别日志
func Info() *zerolog.Event {
	return L.Info()
}

// Warn 输出 warn 级别日志
func Warn() *zerolog.Event {
	return L.Warn()
}

// Error 输出 error 级别日志
func Error() *zerolog.Event {
	return L.Error()
}

// Fatal 输出 fatal 级别日志并退出
func Fatal() *zerolog.Event {
	return L.Fatal()
}
