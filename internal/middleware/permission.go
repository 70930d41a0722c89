package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/lawconsult-backend/internal/common/response"
)

// RequireRole 要求当前令牌属于指定角色之一，必须放在认证中间件之后
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role := GetRole(c)
		if role == "" {
			response.Forbidden(c, "权限不足")
			c.Abort()
			return
		}
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "权限不足")
			c.Abort()
			return
		}
		c.Next()
	}
}
