package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	QueueBackendLocal = "local"
	QueueBackendAsynq = "asynq"
)

// Config 应用配置
type Config struct {
	HTTP     HTTPConfig
	Log      LogConfig
	Tasks    TasksConfig
	Queue    QueueConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	DBPool   DBPoolConfig
	Kafka    KafkaConfig
	Sink     SinkConfig
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr string
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	Production bool
}

// TasksConfig 任务存储配置
type TasksConfig struct {
	TTL               time.Duration // 最后一次更新后的保留时长
	SubscriberBuffer  int           // 每个订阅者的事件缓冲
	KeepaliveInterval time.Duration // SSE 空闲重发间隔
	CleanupSchedule   string        // cron 表达式
}

// QueueConfig 作业分发配置
type QueueConfig struct {
	Backend      string // local | asynq
	LocalWorkers int
	Concurrency  int    // asynq server 并发
	Name         string // asynq 队列名，每个实例独占一个
}

// RedisConfig Redis 配置（可选：快照镜像 + asynq）
type RedisConfig struct {
	Addr string // redis://host:port/db
}

// PostgresConfig PostgreSQL 配置（可选：任务归档）
type PostgresConfig struct {
	DSN           string
	MigrationsDir string
}

// DBPoolConfig 数据库连接池配置
type DBPoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// KafkaConfig Kafka 配置（可选：任务事件发布）
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// SinkConfig 变更分发配置
type SinkConfig struct {
	Buffer int
}

// Load 加载配置
func Load() (*Config, error) {
	v := viper.New()

	// 设置配置文件名和路径
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")

	// 允许从环境变量读取（优先级最高）
	v.AutomaticEnv()

	setDefaults(v)

	// 读取配置文件（如果存在）
	_ = v.ReadInConfig() // 忽略错误，因为可能只使用环境变量

	cfg := &Config{}

	cfg.HTTP.Addr = v.GetString("HTTP_ADDR")

	cfg.Log.Level = strings.ToLower(v.GetString("LOG_LEVEL"))
	cfg.Log.Production = v.GetBool("LOG_PRODUCTION")

	// 任务存储
	cfg.Tasks.TTL = v.GetDuration("TASK_TTL")
	cfg.Tasks.SubscriberBuffer = v.GetInt("SUBSCRIBER_BUFFER")
	cfg.Tasks.KeepaliveInterval = v.GetDuration("KEEPALIVE_INTERVAL")
	cfg.Tasks.CleanupSchedule = v.GetString("CLEANUP_SCHEDULE")

	// 作业分发
	cfg.Queue.Backend = strings.ToLower(v.GetString("QUEUE_BACKEND"))
	cfg.Queue.LocalWorkers = v.GetInt("LOCAL_WORKERS")
	cfg.Queue.Concurrency = v.GetInt("QUEUE_CONCURRENCY")
	cfg.Queue.Name = v.GetString("QUEUE_NAME")
	if cfg.Queue.Name == "" {
		host, _ := os.Hostname()
		cfg.Queue.Name = InstanceQueueName(host)
	}

	// 可选依赖
	cfg.Redis.Addr = normalizeRedisAddr(v.GetString("REDIS_ADDR"))
	cfg.Postgres.DSN = v.GetString("POSTGRES_DSN")
	cfg.Postgres.MigrationsDir = v.GetString("MIGRATIONS_DIR")

	// 数据库连接池配置
	cfg.DBPool.MaxConns = int32(v.GetInt("DB_MAX_CONNS"))
	cfg.DBPool.MinConns = int32(v.GetInt("DB_MIN_CONNS"))
	cfg.DBPool.MaxConnLifetime = v.GetDuration("DB_MAX_CONN_LIFETIME")
	cfg.DBPool.MaxConnIdleTime = v.GetDuration("DB_MAX_CONN_IDLE_TIME")

	cfg.Kafka.Brokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.Kafka.Topic = v.GetString("KAFKA_TOPIC")

	cfg.Sink.Buffer = v.GetInt("SINK_BUFFER")

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":28080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRODUCTION", false)
	v.SetDefault("TASK_TTL", 30*time.Minute)
	v.SetDefault("SUBSCRIBER_BUFFER", 100)
	v.SetDefault("KEEPALIVE_INTERVAL", 30*time.Second)
	v.SetDefault("CLEANUP_SCHEDULE", "@every 5m")
	v.SetDefault("QUEUE_BACKEND", QueueBackendLocal)
	v.SetDefault("LOCAL_WORKERS", 4)
	v.SetDefault("QUEUE_CONCURRENCY", 10)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_MAX_CONN_LIFETIME", 30*time.Minute)
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", 5*time.Minute)
	v.SetDefault("KAFKA_TOPIC", "taskstream.task-events")
	v.SetDefault("SINK_BUFFER", 1024)
}

// InstanceQueueName 按主机名生成本实例的 asynq 队列名。
// 任务状态只在创建它的进程内存中，别的实例取到任务也找不到它。
func InstanceQueueName(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		host = fmt.Sprintf("pid-%d", os.Getpid())
	}
	return "taskstream:" + host
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP address is required")
	}
	if c.Tasks.TTL <= 0 {
		return fmt.Errorf("TASK_TTL must be positive")
	}
	if c.Tasks.SubscriberBuffer <= 0 {
		return fmt.Errorf("SUBSCRIBER_BUFFER must be positive")
	}
	if c.Tasks.KeepaliveInterval <= 0 {
		return fmt.Errorf("KEEPALIVE_INTERVAL must be positive")
	}
	switch c.Queue.Backend {
	case QueueBackendLocal:
		if c.Queue.LocalWorkers <= 0 {
			return fmt.Errorf("LOCAL_WORKERS must be positive")
		}
	case QueueBackendAsynq:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when QUEUE_BACKEND=asynq")
		}
		if c.Queue.Name == "" {
			return fmt.Errorf("QUEUE_NAME is required when QUEUE_BACKEND=asynq")
		}
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", c.Queue.Backend)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// normalizeRedisAddr 确保 Redis 地址为 URI 格式
func normalizeRedisAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if !strings.HasPrefix(addr, "redis://") && !strings.HasPrefix(addr, "rediss://") {
		addr = "redis://" + addr + "/0"
	}
	return addr
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
