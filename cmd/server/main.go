package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	_ "github.com/azhengyongqin/taskstream/docs" // Swagger docs
	"github.com/azhengyongqin/taskstream/internal/broker"
	"github.com/azhengyongqin/taskstream/internal/cache"
	"github.com/azhengyongqin/taskstream/internal/config"
	"github.com/azhengyongqin/taskstream/internal/healthcheck"
	"github.com/azhengyongqin/taskstream/internal/janitor"
	"github.com/azhengyongqin/taskstream/internal/jobs"
	"github.com/azhengyongqin/taskstream/internal/logger"
	asynqx "github.com/azhengyongqin/taskstream/internal/queue"
	"github.com/azhengyongqin/taskstream/internal/repository"
	httpserver "github.com/azhengyongqin/taskstream/internal/server"
	"github.com/azhengyongqin/taskstream/internal/server/handler"
	"github.com/azhengyongqin/taskstream/internal/sink"
	"github.com/azhengyongqin/taskstream/internal/storage/postgres"
	"github.com/azhengyongqin/taskstream/internal/tasks"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 10 * time.Second
	// asynq 去重窗口：同一任务 ID 在该时间内重复提交视为成功
	enqueueUniqueFor = time.Hour
)

// 说明：
// - 任务状态只保存在本进程内存中，asynq 模式下 worker 也运行在同一进程里，
//   每个实例只投递和消费自己的队列（QUEUE_NAME，默认按主机名生成）。
// - Redis / Postgres / Kafka 都是可选的，只接收变更副本，不参与状态判断。

func main() {
	if err := logger.Init(false); err != nil {
		logger.L.Fatal().Err(err).Msg("初始化日志失败")
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.L.Fatal().Err(err).Msg("加载配置失败")
	}
	if err := cfg.Validate(); err != nil {
		logger.L.Fatal().Err(err).Msg("配置验证失败")
	}
	if cfg.Log.Production {
		_ = logger.Init(true)
	}
	logger.SetLevel(cfg.Log.Level)

	logger.L.Info().
		Str("http", cfg.HTTP.Addr).
		Str("queue_backend", cfg.Queue.Backend).
		Dur("task_ttl", cfg.Tasks.TTL).
		Msg("服务启动")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthChecker := healthcheck.NewHealthChecker(version)

	var (
		sinks     []sink.Sink
		fallbacks []handler.SnapshotSource
		archive   handler.ArchiveLister
	)

	// Redis：任务快照镜像（进程重启后仍可查询终态）
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.L.Fatal().Err(err).Msg("连接 Redis 失败")
		}
		defer rc.Close()

		mirror := cache.NewTaskMirror(rc, cfg.Tasks.TTL)
		sinks = append(sinks, mirror)
		fallbacks = append(fallbacks, mirror)
		healthChecker.Register("redis", rc)
	}

	// Postgres：任务归档
	if cfg.Postgres.DSN != "" {
		if err := migrate(ctx, cfg); err != nil {
			logger.L.Fatal().Err(err).Msg("执行数据库迁移失败")
		}

		db, err := postgres.NewDB(ctx, cfg.Postgres.DSN, postgres.PoolConfig{
			MaxOpenConns:    int(cfg.DBPool.MaxConns),
			MaxIdleConns:    int(cfg.DBPool.MinConns),
			ConnMaxLifetime: cfg.DBPool.MaxConnLifetime,
			ConnMaxIdleTime: cfg.DBPool.MaxConnIdleTime,
		})
		if err != nil {
			logger.L.Fatal().Err(err).Msg("连接数据库失败")
		}
		defer db.Close()

		sqlDB, err := db.SqlDB()
		if err != nil {
			logger.L.Fatal().Err(err).Msg("获取 sql.DB 失败")
		}

		archiveSink := repository.NewArchiveSink(repository.NewTaskArchiveRepo(db.DB))
		sinks = append(sinks, archiveSink)
		fallbacks = append(fallbacks, archiveSink)
		archive = archiveSink
		healthChecker.Register("postgres", healthcheck.PingerFunc(sqlDB.PingContext))
	}

	// Kafka：任务事件流
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := broker.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logger.L.Fatal().Err(err).Msg("创建 Kafka 发布器失败")
		}
		defer kp.Close()
		sinks = append(sinks, kp)
	}

	storeOpts := []tasks.Option{
		tasks.WithTTL(cfg.Tasks.TTL),
		tasks.WithSubscriberBuffer(cfg.Tasks.SubscriberBuffer),
		tasks.WithKeepalive(cfg.Tasks.KeepaliveInterval),
	}
	var changes *sink.Dispatcher
	if len(sinks) > 0 {
		changes = sink.NewDispatcher(cfg.Sink.Buffer, sinks...)
		storeOpts = append(storeOpts, tasks.WithPublisher(changes))
	}
	store := tasks.NewStore(storeOpts...)

	registry := jobs.NewRegistry()
	registry.MustRegister(jobs.DemoTaskType, jobs.Demo)
	runner := jobs.NewRunner(store, registry)

	var (
		dispatcher jobs.Dispatcher
		local      *jobs.LocalDispatcher
		asynqSrv   *asynq.Server
	)
	switch cfg.Queue.Backend {
	case config.QueueBackendAsynq:
		qd, err := asynqx.NewDispatcher(cfg.Redis.Addr, cfg.Queue.Name, enqueueUniqueFor)
		if err != nil {
			logger.L.Fatal().Err(err).Msg("创建 asynq 客户端失败")
		}
		defer qd.Close()
		dispatcher = qd

		asynqSrv, err = asynqx.NewServer(cfg.Redis.Addr, cfg.Queue.Name, cfg.Queue.Concurrency)
		if err != nil {
			logger.L.Fatal().Err(err).Msg("创建 asynq server 失败")
		}
		if err := asynqSrv.Start(asynqx.NewServeMux(asynqx.NewProcessor(runner))); err != nil {
			logger.L.Fatal().Err(err).Msg("启动 asynq server 失败")
		}
		logger.L.Info().Str("queue", cfg.Queue.Name).Msg("asynq 队列就绪")
	default:
		local = jobs.NewLocalDispatcher(runner, cfg.Queue.LocalWorkers)
		dispatcher = local
	}

	cleaner, err := janitor.New(store, cfg.Tasks.CleanupSchedule)
	if err != nil {
		logger.L.Fatal().Err(err).Msg("创建清理调度失败")
	}

	deps := httpserver.Deps{
		Store:         store,
		Registry:      registry,
		Dispatcher:    dispatcher,
		Fallbacks:     fallbacks,
		Archive:       archive,
		HealthChecker: healthChecker,
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpserver.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		// 请求 context 派生自进程 context，收到退出信号时 SSE 流随之结束
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// sink 在所有生产者停止之后才关闭，保证最后的终态变更被投递
	sinkCtx, stopSink := context.WithCancel(context.Background())
	defer stopSink()

	g, gctx := errgroup.WithContext(ctx)

	if changes != nil {
		g.Go(func() error { return changes.Run(sinkCtx) })
	}

	g.Go(func() error { return cleaner.Run(gctx) })

	g.Go(func() error {
		logger.L.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP 服务监听")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.L.Warn().Err(err).Msg("HTTP 服务关闭超时")
		}
		if local != nil {
			if err := local.Shutdown(shutdownCtx); err != nil {
				logger.L.Warn().Err(err).Msg("等待作业结束超时，已取消剩余作业")
			}
		}
		if asynqSrv != nil {
			asynqSrv.Shutdown()
		}
		stopSink()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.L.Error().Err(err).Msg("服务异常退出")
		return
	}
	logger.L.Info().Msg("服务已优雅关闭")
}

// migrate 通过 pgx stdlib 连接执行 migrations 目录下的 SQL
func migrate(ctx context.Context, cfg *config.Config) error {
	sqlDB, err := postgres.OpenStdlib(cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return postgres.ApplyMigrationsFromDir(ctx, sqlDB, cfg.Postgres.MigrationsDir)
}
