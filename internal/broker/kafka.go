package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/azhengyongqin/taskstream/internal/tasks"
)

// messageWriter kafka.Writer 的最小接口，便于测试
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TaskEvent 发布到 Kafka 的消息体
type TaskEvent struct {
	Kind tasks.ChangeKind `json:"kind"`
	At   time.Time        `json:"at"`
	Task tasks.Task       `json:"task"`
}

// KafkaPublisher 把任务变更发布到 Kafka，消息 key 为 task_id，保证同一任务分区内有序
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher 创建发布者
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		// Handle 逐条同步写入，单条成批避免每条变更都等满 BatchTimeout
		BatchSize:    1,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w, topic: topic}, nil
}

func (p *KafkaPublisher) Name() string { return "kafka" }

// Handle 把一条变更写入 topic
func (p *KafkaPublisher) Handle(ctx context.Context, c tasks.Change) error {
	msg, err := encode(c)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message to %s: %w", p.topic, err)
	}
	return nil
}

// Close 关闭底层 writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(c tasks.Change) (kafka.Message, error) {
	value, err := json.Marshal(TaskEvent{Kind: c.Kind, At: c.At, Task: c.Task})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal task event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(c.Task.ID),
		Value: value,
		Time:  c.At,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(c.Kind)},
			{Key: "task_type", Value: []byte(c.Task.TaskType)},
		},
	}, nil
}
