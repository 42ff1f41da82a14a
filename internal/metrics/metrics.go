package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskstream_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskstream_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 任务指标
	TasksCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskstream_tasks_created_total",
			Help: "Total number of tasks created",
		},
		[]string{"task_type"},
	)

	TasksFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskstream_tasks_finished_total",
			Help: "Total number of tasks that reached a terminal state",
		},
		[]string{"task_type", "status"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskstream_task_duration_seconds",
			Help:    "Time from task creation to terminal state in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
		},
		[]string{"task_type", "status"},
	)

	TasksCleanedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskstream_tasks_cleaned_total",
			Help: "Total number of tasks removed by TTL cleanup",
		},
	)

	// 订阅/广播指标
	SubscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskstream_subscribers_active",
			Help: "Number of live task event subscriptions",
		},
	)

	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskstream_events_dropped_total",
			Help: "Broadcast events dropped because a subscriber buffer was full",
		},
		[]string{"event"},
	)

	// 作业执行指标
	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskstream_jobs_in_flight",
			Help: "Number of jobs currently executing",
		},
	)

	// 错误指标
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskstream_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "type"},
	)
)

// RecordHTTPRequest 记录 HTTP 请求
func RecordHTTPRequest(method, path string, status int, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordTaskCreated 记录任务创建
func RecordTaskCreated(taskType string) {
	TasksCreatedTotal.WithLabelValues(taskType).Inc()
}

// RecordTaskFinished 记录任务进入终态
func RecordTaskFinished(taskType, status string, duration float64) {
	TasksFinishedTotal.WithLabelValues(taskType, status).Inc()
	if duration > 0 {
		TaskDuration.WithLabelValues(taskType, status).Observe(duration)
	}
}

// RecordTasksCleaned 记录 TTL 回收数量
func RecordTasksCleaned(n int) {
	TasksCleanedTotal.Add(float64(n))
}

// SubscriberAdded 订阅数 +1
func SubscriberAdded() {
	SubscribersActive.Inc()
}

// SubscriberRemoved 订阅数 -1
func SubscriberRemoved() {
	SubscribersActive.Dec()
}

// RecordEventDropped 记录一次丢弃的广播
func RecordEventDropped(event string) {
	EventsDroppedTotal.WithLabelValues(event).Inc()
}

// JobStarted 作业开始
func JobStarted() {
	JobsInFlight.Inc()
}

// JobFinished 作业结束
func JobFinished() {
	JobsInFlight.Dec()
}

// RecordError 记录错误
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// statusClass 将 HTTP 状态码转为类别
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
