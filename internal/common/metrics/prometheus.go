// Package metrics 提供 Prometheus 指标收集
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标收集器
type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	incomeRecordsCreated  prometheus.Counter
	incomeRecordsSettled  prometheus.Counter
	withdrawalTransitions *prometheus.CounterVec
	withdrawalAmountCents *prometheus.CounterVec
	allocationFailures    prometheus.Counter
	reconcileDrift        prometheus.Counter
	walletsDrifted        prometheus.Gauge
	jobRuns               *prometheus.CounterVec
	eventMessages         *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	initOnce       sync.Once
)

// Init 使用默认注册表初始化指标收集器，重复调用返回同一实例
func Init(namespace string) *Metrics {
	initOnce.Do(func() {
		defaultMetrics = New(namespace, prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New 在指定注册表上创建指标收集器
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "lawconsult"
	}
	f := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		incomeRecordsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "income_records_created_total",
			Help:      "Lawyer income records created from paid consultations",
		}),
		incomeRecordsSettled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "income_records_settled_total",
			Help:      "Income records moved from pending to settled",
		}),
		withdrawalTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "withdrawal_transitions_total",
			Help:      "Withdrawal request state transitions",
		}, []string{"action"}),
		withdrawalAmountCents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "withdrawal_amount_cents_total",
			Help:      "Withdrawal amount in cents per transition",
		}, []string{"action"}),
		allocationFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "allocation_failures_total",
			Help:      "Completed withdrawals whose income allocation failed",
		}),
		reconcileDrift: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "reconcile_drift_total",
			Help:      "Wallets found with withdrawn total differing from allocated income",
		}),
		walletsDrifted: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "wallets_drifted",
			Help:      "Wallets with allocation drift in the last reconcile run",
		}),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job executions",
		}, []string{"job", "result"}),
		eventMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "messages_total",
			Help:      "Kafka messages consumed or published",
		}, []string{"topic", "direction", "result"}),
	}
}

// GetMetrics 获取默认指标收集器
func GetMetrics() *Metrics {
	return Init("")
}

// Middleware 返回 Gin 中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()

		c.Next()

		m.httpRequestsInFlight.Dec()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 Prometheus HTTP 处理器
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordIncomeCreated 记录收入记录创建
func (m *Metrics) RecordIncomeCreated() {
	m.incomeRecordsCreated.Inc()
}

// IncomeRecordsCreated 收入记录创建计数器
func (m *Metrics) IncomeRecordsCreated() prometheus.Counter {
	return m.incomeRecordsCreated
}

// RecordIncomeSettled 记录收入结算条数
func (m *Metrics) RecordIncomeSettled(n int) {
	m.incomeRecordsSettled.Add(float64(n))
}

// IncomeRecordsSettled 收入结算计数器
func (m *Metrics) IncomeRecordsSettled() prometheus.Counter {
	return m.incomeRecordsSettled
}

// RecordWithdrawal 记录提现状态流转
func (m *Metrics) RecordWithdrawal(action string, amountCents int64) {
	m.withdrawalTransitions.WithLabelValues(action).Inc()
	m.withdrawalAmountCents.WithLabelValues(action).Add(float64(amountCents))
}

// RecordAllocationFailure 记录收入分摊失败
func (m *Metrics) RecordAllocationFailure() {
	m.allocationFailures.Inc()
}

// AllocationFailures 分摊失败计数器
func (m *Metrics) AllocationFailures() prometheus.Counter {
	return m.allocationFailures
}

// RecordReconcile 记录一次对账结果
func (m *Metrics) RecordReconcile(drifted int) {
	m.reconcileDrift.Add(float64(drifted))
	m.walletsDrifted.Set(float64(drifted))
}

// WalletsDrifted 最近一次对账的异常钱包数
func (m *Metrics) WalletsDrifted() prometheus.Gauge {
	return m.walletsDrifted
}

// RecordJob 记录定时任务执行
func (m *Metrics) RecordJob(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
}

// JobRuns 定时任务计数器
func (m *Metrics) JobRuns() *prometheus.CounterVec {
	return m.jobRuns
}

// RecordEvent 记录消息收发
func (m *Metrics) RecordEvent(topic, direction, result string) {
	m.eventMessages.WithLabelValues(topic, direction, result).Inc()
}

// EventMessages 消息计数器
func (m *Metrics) EventMessages() *prometheus.CounterVec {
	return m.eventMessages
}
