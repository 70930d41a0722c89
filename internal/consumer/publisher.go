package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	"github.com/dumeirei/lawconsult-backend/internal/common/metrics"
	"github.com/dumeirei/lawconsult-backend/internal/models"
)

// MessageWriter kafka.Writer 的最小接口
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 提现事件发布者，同一律师的事件写入同一分区
type KafkaPublisher struct {
	writer  MessageWriter
	topic   string
	metrics *metrics.Metrics
}

// NewKafkaPublisher 创建提现事件发布者
func NewKafkaPublisher(cfg *config.KafkaConfig, m *metrics.Metrics) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.WithdrawalEventTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafkaPublisher(writer, cfg.WithdrawalEventTopic, m)
}

func newKafkaPublisher(writer MessageWriter, topic string, m *metrics.Metrics) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, metrics: m}
}

// PublishWithdrawal 发布提现状态变更事件
func (p *KafkaPublisher) PublishWithdrawal(ctx context.Context, ev *models.WithdrawalEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal withdrawal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.LawyerID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(ev.Action)},
		},
	})

	result := "ok"
	if err != nil {
		result = "error"
	}
	if p.metrics != nil {
		p.metrics.RecordEvent(p.topic, directionOut, result)
	}
	if err != nil {
		return fmt.Errorf("kafka write error: %w", err)
	}
	return nil
}

// Close 关闭 writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher 未启用 Kafka 时使用，丢弃所有事件
type NopPublisher struct{}

// PublishWithdrawal 直接返回
func (NopPublisher) PublishWithdrawal(context.Context, *models.WithdrawalEvent) error {
	return nil
}
