package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/azhengyongqin/taskstream/internal/tasks"
)

// DemoTaskType 内置演示作业，用于联调 SSE 与取消流程
const DemoTaskType = "demo"

const (
	defaultDemoSteps      = 10
	defaultDemoIntervalMs = 500
	maxDemoSteps          = 10000
	maxDemoIntervalMs     = 60000
)

// demoParams 从 metadata 读取步数、步间隔和失败步，超出上限的值按上限处理
func demoParams(meta map[string]any) (steps int, interval time.Duration, failAt int) {
	steps = intMeta(meta, "steps", defaultDemoSteps, maxDemoSteps)
	interval = time.Duration(intMeta(meta, "interval_ms", defaultDemoIntervalMs, maxDemoIntervalMs)) * time.Millisecond
	failAt = intMeta(meta, "fail_at", 0, maxDemoSteps)
	return steps, interval, failAt
}

// Demo 按 metadata.steps / metadata.interval_ms 分步上报进度。
// metadata.fail_at 大于 0 时在该步返回错误，便于演示失败路径。
func Demo(ctx context.Context, rep Reporter, task tasks.Task) (tasks.Result, error) {
	steps, interval, failAt := demoParams(task.Metadata)

	if !rep.Report(0, "Analyzing input...", "analyzing") {
		return tasks.Result{}, ErrStopped
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return tasks.Result{}, ctx.Err()
		case <-timer.C:
		}

		if i == failAt {
			return tasks.Result{}, fmt.Errorf("demo step %d failed", i)
		}

		percent := float64(i) / float64(steps) * 99
		if !rep.Report(percent, fmt.Sprintf("Step %d/%d", i, steps), "encoding") {
			return tasks.Result{}, ErrStopped
		}
		timer.Reset(interval)
	}

	if !rep.Report(99, "Finalizing...", "finalizing") {
		return tasks.Result{}, ErrStopped
	}

	return tasks.Result{
		Message: tasks.StringPtr(fmt.Sprintf("Demo finished after %d steps", steps)),
	}, nil
}

// intMeta 读取 [0, limit] 内的整数 metadata（JSON 解码后数字为 float64）。
// 缺失、负数或非数字返回 def。
func intMeta(meta map[string]any, key string, def, limit int) int {
	switch v := meta[key].(type) {
	case int:
		if v >= 0 {
			return min(v, limit)
		}
	case int64:
		if v >= 0 {
			return int(min(v, int64(limit)))
		}
	case float64:
		if v >= 0 {
			return int(min(v, float64(limit)))
		}
	}
	return def
}
