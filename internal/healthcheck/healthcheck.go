package healthcheck

import (
	"context"
	"sort"
	"time"
)

// checkTimeout 单个依赖检查超时
const checkTimeout = 2 * time.Second

// Pinger 可被探测的依赖（RedisCache、Postgres 等）
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc 把函数适配为 Pinger，例如 sql.DB.PingContext
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthChecker 健康检查器，依赖按名称注册；未启用的依赖不参与检查
type HealthChecker struct {
	deps    map[string]Pinger
	version string
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		deps:    map[string]Pinger{},
		version: version,
	}
}

// Register 注册一个依赖
func (h *HealthChecker) Register(name string, p Pinger) {
	if p == nil {
		return
	}
	h.deps[name] = p
}

// Dependencies 已注册依赖名（排序）
func (h *HealthChecker) Dependencies() []string {
	out := make([]string, 0, len(h.deps))
	for name := range h.deps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CheckResult 健康检查结果
type CheckResult struct {
	Status  string            `json:"status"` // "ok" or "error"
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// LivenessCheck 存活检查（快速返回，不检查依赖）
func (h *HealthChecker) LivenessCheck() CheckResult {
	return CheckResult{
		Status: "ok",
		Checks: map[string]string{
			"service": "running",
		},
		Version: h.version,
	}
}

// ReadinessCheck 就绪检查（检查所有已注册依赖）
func (h *HealthChecker) ReadinessCheck(ctx context.Context) CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	result := CheckResult{
		Status:  "ok",
		Checks:  map[string]string{"service": "running"},
		Version: h.version,
	}

	for _, name := range h.Dependencies() {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := h.deps[name].Ping(cctx)
		cancel()

		if err != nil {
			result.Checks[name] = "error: " + err.Error()
			result.Status = "error"
		} else {
			result.Checks[name] = "ok"
		}
	}
	return result
}
