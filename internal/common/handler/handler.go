// Package handler 提供 API Handler 的通用辅助函数
// 统一错误处理、认证检查和参数解析
package handler

import (
	stderrors "errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/lawconsult-backend/internal/common/errors"
	"github.com/dumeirei/lawconsult-backend/internal/common/logger"
	"github.com/dumeirei/lawconsult-backend/internal/common/response"
	"github.com/dumeirei/lawconsult-backend/internal/common/utils"
	"github.com/dumeirei/lawconsult-backend/internal/middleware"
)

// HandleError 处理错误并发送响应
// err 为 nil 时返回 false；否则发送错误响应并返回 true，调用方应该 return
//
// 使用示例:
//
//	result, err := service.DoSomething()
//	if HandleError(c, err) {
//	    return
//	}
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		logger.Error("unhandled handler error",
			logger.RequestID(middleware.GetRequestID(c)),
			logger.Path(c.Request.URL.Path),
			logger.Err(err),
		)
		response.InternalError(c, "服务器内部错误")
		return true
	}

	// 数据库等基础设施错误不向客户端暴露细节
	if appErr.Err != nil {
		logger.Error("request failed",
			logger.RequestID(middleware.GetRequestID(c)),
			logger.Path(c.Request.URL.Path),
			logger.Int("code", appErr.Code),
			logger.Err(appErr.Err),
		)
	}
	response.ErrorWithKind(c, appErr.Code, errors.KindOf(appErr), appErr.Message)
	return true
}

// MustSucceed 有错误时返回错误响应，否则返回成功响应
//
//	result, err := service.GetData()
//	MustSucceed(c, err, result)
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Success(c, data)
}

// MustSucceedPage 分页响应版本
func MustSucceedPage(c *gin.Context, err error, list interface{}, total int64, p utils.Pagination) {
	if HandleError(c, err) {
		return
	}
	response.SuccessPage(c, list, total, p.Page, p.PageSize)
}

// RequireUserID 获取当前用户ID，未登录时返回 401
func RequireUserID(c *gin.Context) (int64, bool) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return 0, false
	}
	return userID, true
}

// RequireAdminID 获取当前管理员ID，未登录时返回 401
func RequireAdminID(c *gin.Context) (int64, bool) {
	adminID := middleware.GetAdminID(c)
	if adminID == 0 {
		response.Unauthorized(c, "请先登录")
		return 0, false
	}
	return adminID, true
}

// ParseID 解析路径参数 "id"
//
//	id, ok := handler.ParseID(c, "提现申请")
//	if !ok {
//	    return
//	}
func ParseID(c *gin.Context, resourceName string) (int64, bool) {
	return ParseParamID(c, "id", resourceName)
}

// ParseParamID 解析指定路径参数为正整数 ID
func ParseParamID(c *gin.Context, paramName, resourceName string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(paramName), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return 0, false
	}
	return id, true
}

// ParseQueryID 解析查询参数中的可选 ID，参数为空时返回 (0, true)
func ParseQueryID(c *gin.Context, paramName, resourceName string) (int64, bool) {
	idStr := c.Query(paramName)
	if idStr == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return 0, false
	}
	return id, true
}

// DateFormat 日期格式
const DateFormat = "2006-01-02"

// ParseQueryDateRange 从查询参数解析日期范围（start_date, end_date）
// 结束日期调整为当天结束时间；解析失败时已发送 400 响应
func ParseQueryDateRange(c *gin.Context) (*time.Time, *time.Time, bool) {
	var start, end *time.Time

	if s := c.Query("start_date"); s != "" {
		t, err := time.ParseInLocation(DateFormat, s, time.Local)
		if err != nil {
			response.BadRequest(c, "无效的开始日期格式")
			return nil, nil, false
		}
		start = &t
	}

	if s := c.Query("end_date"); s != "" {
		t, err := time.ParseInLocation(DateFormat, s, time.Local)
		if err != nil {
			response.BadRequest(c, "无效的结束日期格式")
			return nil, nil, false
		}
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		end = &endOfDay
	}

	if start != nil && end != nil && end.Before(*start) {
		response.BadRequest(c, "结束日期不能早于开始日期")
		return nil, nil, false
	}
	return start, end, true
}

// BindPagination 从查询参数绑定并规范化分页参数
// 默认 page=1, page_size=10, 最大 page_size=100
func BindPagination(c *gin.Context) utils.Pagination {
	var p utils.Pagination
	p.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	p.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "10"))
	p.Normalize()
	return p
}
