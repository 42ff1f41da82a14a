package janitor

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/azhengyongqin/taskstream/internal/logger"
)

// DefaultSchedule 默认每 5 分钟清理一次
const DefaultSchedule = "@every 5m"

// Cleaner 可被定期清理的任务存储（tasks.Store 实现）
type Cleaner interface {
	CleanupOldTasks() int
}

// Janitor 按 cron 表达式定期回收过期任务
type Janitor struct {
	cron    *cron.Cron
	cleaner Cleaner
}

// New 校验 schedule 并注册清理作业
func New(cleaner Cleaner, schedule string) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	j := &Janitor{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		cleaner: cleaner,
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.RunOnce() }); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return j, nil
}

// RunOnce 立即执行一次清理，返回回收数量
func (j *Janitor) RunOnce() int {
	n := j.cleaner.CleanupOldTasks()
	if n > 0 {
		l := logger.WithComponent("janitor")
		l.Info().Int("removed", n).Msg("已回收过期任务")
	}
	return n
}

// Run 启动调度并阻塞到 ctx 结束，等待正在执行的清理完成后返回
func (j *Janitor) Run(ctx context.Context) error {
	j.cron.Start()
	l := logger.WithComponent("janitor")
	l.Info().Msg("任务清理调度已启动")

	<-ctx.Done()
	<-j.cron.Stop().Done()
	return nil
}
