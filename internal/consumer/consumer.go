// Package consumer 结算相关的 Kafka 消息收发
package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	appErrors "github.com/dumeirei/lawconsult-backend/internal/common/errors"
	"github.com/dumeirei/lawconsult-backend/internal/common/logger"
	"github.com/dumeirei/lawconsult-backend/internal/common/metrics"
	"github.com/dumeirei/lawconsult-backend/internal/models"
)

const (
	directionIn  = "in"
	directionOut = "out"

	defaultRetryDelay = time.Second
)

// MessageReader kafka.Reader 的最小接口
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// IncomeRecorder 根据已支付咨询生成收入记录
type IncomeRecorder interface {
	EnsureIncomeRecord(ctx context.Context, ev *models.ConsultationPaid) (*models.LawyerIncomeRecord, error)
}

// ConsultationPaidConsumer 消费咨询已支付事件
//
// 处理成功或消息本身无效时提交位点；数据库等基础设施错误原地重试，不提交也不跳过。
type ConsultationPaidConsumer struct {
	reader     MessageReader
	recorder   IncomeRecorder
	metrics    *metrics.Metrics
	topic      string
	retryDelay time.Duration
}

// NewConsultationPaidConsumer 创建咨询已支付事件消费者
func NewConsultationPaidConsumer(cfg *config.KafkaConfig, recorder IncomeRecorder, m *metrics.Metrics) *ConsultationPaidConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.ConsultationPaidTopic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsultationPaidConsumer(reader, cfg.ConsultationPaidTopic, recorder, m)
}

func newConsultationPaidConsumer(reader MessageReader, topic string, recorder IncomeRecorder, m *metrics.Metrics) *ConsultationPaidConsumer {
	return &ConsultationPaidConsumer{
		reader:     reader,
		recorder:   recorder,
		metrics:    m,
		topic:      topic,
		retryDelay: defaultRetryDelay,
	}
}

// Run 阻塞消费直到 ctx 取消
func (c *ConsultationPaidConsumer) Run(ctx context.Context) error {
	logger.Info("consultation paid consumer started", logger.String("topic", c.topic))
	defer logger.Info("consultation paid consumer stopped", logger.String("topic", c.topic))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("fetch kafka message failed", logger.String("topic", c.topic), logger.Err(err))
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		for !c.handle(ctx, msg) {
			if !c.sleep(ctx) {
				return nil
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Warn("commit kafka offset failed",
				logger.String("topic", c.topic),
				logger.Int64("offset", msg.Offset),
				logger.Err(err),
			)
		}
	}
}

// Close 关闭底层 reader
func (c *ConsultationPaidConsumer) Close() error {
	return c.reader.Close()
}

// handle 处理单条消息，返回 false 表示需要重试
func (c *ConsultationPaidConsumer) handle(ctx context.Context, msg kafka.Message) bool {
	var ev models.ConsultationPaid
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		logger.Error("invalid consultation paid payload",
			logger.String("topic", c.topic),
			logger.Int64("offset", msg.Offset),
			logger.Err(err),
		)
		c.record("invalid")
		return true
	}
	if ev.ConsultationID <= 0 || ev.LawyerID <= 0 {
		logger.Error("consultation paid event missing ids",
			logger.ConsultationID(ev.ConsultationID),
			logger.LawyerID(ev.LawyerID),
		)
		c.record("invalid")
		return true
	}

	record, err := c.recorder.EnsureIncomeRecord(ctx, &ev)
	if err != nil {
		if retryable(err) {
			logger.Warn("ensure income record failed, will retry",
				logger.ConsultationID(ev.ConsultationID),
				logger.LawyerID(ev.LawyerID),
				logger.Err(err),
			)
			c.record("retry")
			return false
		}
		logger.Error("consultation paid event rejected",
			logger.ConsultationID(ev.ConsultationID),
			logger.LawyerID(ev.LawyerID),
			logger.Err(err),
		)
		c.record("rejected")
		return true
	}

	if record == nil {
		c.record("skipped")
		return true
	}
	c.record("ok")
	return true
}

// retryable 基础设施错误可重试，业务校验错误不可重试
func retryable(err error) bool {
	if !appErrors.IsAppError(err) {
		return true
	}
	switch appErrors.KindOf(err) {
	case "database_error", "unknown":
		return true
	}
	return false
}

func (c *ConsultationPaidConsumer) record(result string) {
	if c.metrics != nil {
		c.metrics.RecordEvent(c.topic, directionIn, result)
	}
}

func (c *ConsultationPaidConsumer) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
