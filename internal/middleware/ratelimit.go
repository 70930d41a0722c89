package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/dumeirei/lawconsult-backend/internal/common/response"
)

// UserRateLimit 按登录用户和路由限流，固定窗口计数
//
// client 为 nil 或 Redis 出错时放行。
func UserRateLimit(client redis.UniversalClient, prefix string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if userID := GetUserID(c); userID > 0 {
			subject = "user:" + strconv.FormatInt(userID, 10)
		}
		key := fmt.Sprintf("%s%s:%s", prefix, subject, c.FullPath())

		ctx := c.Request.Context()
		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			client.Expire(ctx, key, window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if int(count) > limit {
			ttl, _ := client.TTL(ctx, key).Result()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			response.TooManyRequests(c, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
		c.Next()
	}
}
