package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditLog_WithdrawAction(t *testing.T) {
	m := testManager()
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(RequestID(), AdminAuth(m), AuditLog(zap.New(core)))
	r.POST("/api/v1/admin/withdrawals/:id/action", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0})
	})
	r.GET("/api/v1/admin/withdrawals", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0})
	})

	body := `{"action":"reject","reason":"账户信息有误","account_no":"6222333344445555"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/withdrawals/12/action", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, m, 9, "admin", "finance"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	entries := logs.FilterMessage("admin operation").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "withdraw_action", ctx["action"])
	assert.Equal(t, int64(9), ctx["admin_id"])
	assert.Equal(t, "12", ctx["target_id"])
	params, ok := ctx["params"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "reject", params["action"])
	assert.Equal(t, "***", params["account_no"])

	// 查询接口不记审计日志
	w = doRequest(r, http.MethodGet, "/api/v1/admin/withdrawals", map[string]string{
		"Authorization": bearer(t, m, 9, "admin", "finance"),
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("admin operation").Len())
}

func TestAuditLog_HandlerStillReadsBody(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(AuditLog(zap.New(core)))
	r.POST("/api/v1/admin/settlement/settle", func(c *gin.Context) {
		var req struct {
			Limit int `json:"limit"`
		}
		require.NoError(t, c.ShouldBindJSON(&req))
		c.JSON(http.StatusOK, gin.H{"limit": req.Limit})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/settlement/settle", strings.NewReader(`{"limit":3}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"limit":3}`, w.Body.String())
}

func TestMaskSensitive(t *testing.T) {
	in := map[string]interface{}{
		"remark": "ok",
		"accounts": []interface{}{
			map[string]interface{}{"Account_No": "1", "bank_name": "工商银行"},
		},
	}
	out := maskSensitive(in).(map[string]interface{})
	assert.Equal(t, "ok", out["remark"])
	account := out["accounts"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "***", account["Account_No"])
	assert.Equal(t, "工商银行", account["bank_name"])
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var traceID string
	r := gin.New()
	r.Use(Tracing(&TracingConfig{ServiceName: "test", SkipPaths: []string{"/health"}}))
	r.GET("/api/v1/lawyer/withdrawals/:id", func(c *gin.Context) {
		traceID = GetTraceID(c)
		c.Status(http.StatusOK)
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	doRequest(r, http.MethodGet, "/api/v1/lawyer/withdrawals/5", nil)
	doRequest(r, http.MethodGet, "/health", nil)

	require.Eventually(t, func() bool { return len(recorder.Ended()) == 1 }, time.Second, 10*time.Millisecond)
	spans := recorder.Ended()
	assert.Equal(t, "GET /api/v1/lawyer/withdrawals/:id", spans[0].Name())
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), traceID)
}
