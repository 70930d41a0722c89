package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuditConfig 审计操作配置
type AuditConfig struct {
	Module     string
	Action     string
	TargetType string
}

// auditRoutes 需要审计的管理端路由
var auditRoutes = map[string]AuditConfig{
	"POST /api/v1/admin/withdrawals/:id/action": {
		Module:     "settlement",
		Action:     "withdraw_action",
		TargetType: "withdrawal",
	},
	"POST /api/v1/admin/settlement/settle": {
		Module: "settlement",
		Action: "settle_income",
	},
	"GET /api/v1/admin/settlement/reconcile/:lawyer_id": {
		Module:     "settlement",
		Action:     "reconcile",
		TargetType: "lawyer",
	},
}

// sensitiveFields 审计日志中需要脱敏的字段
var sensitiveFields = []string{
	"password", "token", "secret",
	"account_no", "account_holder", "id_card",
}

// AuditLog 记录管理员对结算数据的操作
// 未在审计路由表中的请求直接放行
func AuditLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		c.Next()

		fields := []zap.Field{
			zap.String("module", cfg.Module),
			zap.String("action", cfg.Action),
			zap.Int64("admin_id", GetAdminID(c)),
			zap.String("request_id", GetRequestID(c)),
			zap.String("ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
		}
		if cfg.TargetType != "" {
			fields = append(fields, zap.String("target_type", cfg.TargetType))
			if target := targetParam(c); target != "" {
				fields = append(fields, zap.String("target_id", target))
			}
		}
		if len(body) > 0 {
			var data interface{}
			if err := json.Unmarshal(body, &data); err == nil {
				fields = append(fields, zap.Any("params", maskSensitive(data)))
			}
		}

		logger.Info("admin operation", fields...)
	}
}

func targetParam(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.Param("lawyer_id")
}

// maskSensitive 递归替换敏感字段值
func maskSensitive(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitiveKey(key) {
				result[key] = "***"
				continue
			}
			result[key] = maskSensitive(value)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = maskSensitive(item)
		}
		return result
	default:
		return data
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sf := range sensitiveFields {
		if strings.Contains(lower, sf) {
			return true
		}
	}
	return false
}
