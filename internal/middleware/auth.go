// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/lawconsult-backend/internal/common/jwt"
	"github.com/dumeirei/lawconsult-backend/internal/common/response"
)

// 上下文键
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUserType = "user_type"
	ContextKeyRole     = "role"
	ContextKeyClaims   = "claims"
)

// Auth 认证中间件，userType 为空时不限制用户类型
func Auth(manager *jwt.Manager, userType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		claims, err := manager.ParseToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.Unauthorized(c, "登录已过期，请重新登录")
			} else {
				response.Unauthorized(c, "无效的令牌")
			}
			c.Abort()
			return
		}

		if userType != "" && claims.UserType != userType {
			response.Forbidden(c, "无权访问")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUserType, claims.UserType)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// UserAuth 律师端认证
func UserAuth(manager *jwt.Manager) gin.HandlerFunc {
	return Auth(manager, jwt.UserTypeUser)
}

// AdminAuth 管理端认证
func AdminAuth(manager *jwt.Manager) gin.HandlerFunc {
	return Auth(manager, jwt.UserTypeAdmin)
}

// extractToken 从 Authorization 头提取 Bearer 令牌
func extractToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) int64 {
	return c.GetInt64(ContextKeyUserID)
}

// GetAdminID 从上下文获取管理员 ID，非管理员令牌返回 0
func GetAdminID(c *gin.Context) int64 {
	if c.GetString(ContextKeyUserType) != jwt.UserTypeAdmin {
		return 0
	}
	return c.GetInt64(ContextKeyUserID)
}

// GetRole 从上下文获取角色
func GetRole(c *gin.Context) string {
	return c.GetString(ContextKeyRole)
}
