package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/azhengyongqin/taskstream/internal/logger"
	"github.com/azhengyongqin/taskstream/sdk"
)

// 演示客户端：提交一个 demo 任务并通过 SSE 跟踪进度，可选中途取消。
//
//	go run ./cmd/example -steps 20 -interval 200
//	go run ./cmd/example -cancel-after 2s
func main() {
	var (
		baseURL     = flag.String("url", "", "服务地址，默认读取 TASKSTREAM_URL")
		steps       = flag.Int("steps", 10, "demo 作业步数")
		intervalMs  = flag.Int("interval", 300, "每步耗时（毫秒）")
		failAt      = flag.Int("fail-at", 0, "在第 N 步失败，0 表示不失败")
		cancelAfter = flag.Duration("cancel-after", 0, "提交后多久取消，0 表示不取消")
	)
	flag.Parse()

	_ = logger.Init(false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := sdk.NewClient(*baseURL, sdk.WithLogger(logger.WithComponent("sdk")))

	sub, err := client.SubmitWithRetry(ctx, sdk.SubmitRequest{
		TaskType: "demo",
		Metadata: map[string]any{
			"steps":       *steps,
			"interval_ms": *intervalMs,
			"fail_at":     *failAt,
		},
	}, sdk.DefaultRetryConfig())
	if err != nil {
		logger.L.Fatal().Err(err).Str("url", client.BaseURL).Msg("提交任务失败")
	}
	logger.L.Info().Str("task_id", sub.TaskID).Msg("任务已提交")

	if *cancelAfter > 0 {
		go func() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(*cancelAfter):
			}
			if _, err := client.Cancel(ctx, sub.TaskID); err != nil {
				logger.L.Warn().Err(err).Msg("取消任务失败")
				return
			}
			logger.L.Info().Str("task_id", sub.TaskID).Msg("已请求取消")
		}()
	}

	last, err := client.Watch(ctx, sub.TaskID, sdk.DefaultRetryConfig(), func(ev sdk.Event) error {
		if ev.Type == sdk.EventProgress {
			fmt.Printf("\r[%-50s] %5.1f%% %s", bar(ev.Progress.Percent), ev.Progress.Percent, ev.Progress.Message)
		}
		return nil
	})
	fmt.Println()
	if err != nil {
		logger.L.Error().Err(err).Msg("订阅中断")
		os.Exit(1)
	}

	switch last.Type {
	case sdk.EventComplete:
		msg := ""
		if last.Result.Message != nil {
			msg = *last.Result.Message
		}
		logger.L.Info().Str("message", msg).Msg("任务完成")
	default:
		logger.L.Warn().Str("event", string(last.Type)).Str("message", last.Message).Msg("任务未成功结束")
		os.Exit(1)
	}
}

func bar(percent float64) string {
	n := int(percent / 2)
	b := make([]byte, 50)
	for i := range b {
		if i < n {
			b[i] = '='
		} else {
			b[i] = ' '
		}
	}
	return string(b)
}
