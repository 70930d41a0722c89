// Package errors 定义业务错误码和错误处理
package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码匹配，WithMessage/WithError 派生出的错误仍与原错误相等
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 创建新的应用错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown         = New(1000, "未知错误")
	ErrInvalidParams   = New(1001, "参数错误")
	ErrNotFound        = New(1002, "资源不存在")
	ErrAlreadyExists   = New(1003, "资源已存在")
	ErrDatabaseError   = New(1004, "数据库错误")
	ErrCacheError      = New(1005, "缓存错误")
	ErrInternalError   = New(1006, "内部错误")
	ErrExternalService = New(1007, "外部服务错误")
	ErrRateLimitExceed = New(1008, "请求过于频繁")
	ErrOperationFailed = New(1009, "操作失败")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = New(2000, "未登录")
	ErrTokenExpired     = New(2001, "登录已过期")
	ErrTokenInvalid     = New(2002, "无效的令牌")
	ErrPermissionDenied = New(2004, "权限不足")
)

// 律师结算错误码 (10000-10999)
var (
	ErrAmountOutOfRange          = New(10000, "提现金额超出允许范围")
	ErrInsufficientBalance       = New(10001, "可提现余额不足")
	ErrBankAccountNotFound       = New(10002, "收款账户不存在或已停用")
	ErrUnsupportedWithdrawMethod = New(10003, "不支持的提现方式")
	ErrInvalidStateForAction     = New(10004, "提现申请当前状态不允许该操作")
	ErrWithdrawalNotFound        = New(10005, "提现申请不存在")
	ErrLawyerNotFound            = New(10006, "律师信息不存在")
	ErrInvalidWithdrawAction     = New(10007, "无效的审核操作")
	ErrInvalidAmount             = New(10008, "无效的金额")
	ErrTooManyPendingWithdrawals = New(10009, "待处理的提现申请过多")
	ErrWithdrawInProgress        = New(10010, "提现申请处理中，请稍后重试")
)

var kinds = map[int]string{
	ErrInvalidParams.Code:             "invalid_params",
	ErrNotFound.Code:                  "not_found",
	ErrDatabaseError.Code:             "database_error",
	ErrUnauthorized.Code:              "unauthorized",
	ErrPermissionDenied.Code:          "permission_denied",
	ErrAmountOutOfRange.Code:          "amount_out_of_range",
	ErrInsufficientBalance.Code:       "insufficient_balance",
	ErrBankAccountNotFound.Code:       "bank_account_not_found",
	ErrUnsupportedWithdrawMethod.Code: "unsupported_withdraw_method",
	ErrInvalidStateForAction.Code:     "invalid_state_for_action",
	ErrWithdrawalNotFound.Code:        "not_found",
	ErrLawyerNotFound.Code:            "not_found",
	ErrInvalidWithdrawAction.Code:     "invalid_action",
	ErrInvalidAmount.Code:             "invalid_amount",
	ErrTooManyPendingWithdrawals.Code: "too_many_pending",
	ErrWithdrawInProgress.Code:        "withdraw_in_progress",
}

// KindOf 返回错误的稳定类别标识，未知错误返回 "unknown"
func KindOf(err error) string {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return "unknown"
	}
	if k, ok := kinds[appErr.Code]; ok {
		return k
	}
	return "unknown"
}

// IsNotFound 判断是否为资源不存在类错误
func IsNotFound(err error) bool {
	return KindOf(err) == "not_found"
}

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}
