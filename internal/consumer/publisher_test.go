package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/lawconsult-backend/internal/common/metrics"
	"github.com/dumeirei/lawconsult-backend/internal/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_PublishWithdrawal(t *testing.T) {
	const topic = "lawyer.withdrawal"
	writer := &fakeWriter{}
	m := metrics.New("test", prometheus.NewRegistry())
	p := newKafkaPublisher(writer, topic, m)

	ev := &models.WithdrawalEvent{
		RequestNo:    "WD202603010001",
		WithdrawalID: 8,
		LawyerID:     42,
		Action:       "approve",
		Status:       models.WithdrawalStatusApproved,
		Amount:       "200.00",
		ActualAmount: "200.00",
		OccurredAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishWithdrawal(context.Background(), ev))

	require.Len(t, writer.msgs, 1)
	msg := writer.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, "approve", string(msg.Headers[0].Value))

	var got models.WithdrawalEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, *ev, got)
	assert.Equal(t, float64(1), promtest.ToFloat64(m.EventMessages().WithLabelValues(topic, directionOut, "ok")))

	writer.err = errors.New("broker unavailable")
	err := p.PublishWithdrawal(context.Background(), ev)
	assert.ErrorContains(t, err, "broker unavailable")
	assert.Equal(t, float64(1), promtest.ToFloat64(m.EventMessages().WithLabelValues(topic, directionOut, "error")))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishWithdrawal(context.Background(), &models.WithdrawalEvent{}))
}
