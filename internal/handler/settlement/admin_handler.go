package settlement

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/lawconsult-backend/internal/common/handler"
	"github.com/dumeirei/lawconsult-backend/internal/common/response"
	settlementService "github.com/dumeirei/lawconsult-backend/internal/service/settlement"
)

// AdminHandler 管理端结算接口
type AdminHandler struct {
	withdrawals *settlementService.WithdrawalService
	income      *settlementService.IncomeService
	reconcile   *settlementService.ReconcileService
}

// NewAdminHandler 创建管理端结算处理器
func NewAdminHandler(
	withdrawals *settlementService.WithdrawalService,
	income *settlementService.IncomeService,
	reconcile *settlementService.ReconcileService,
) *AdminHandler {
	return &AdminHandler{
		withdrawals: withdrawals,
		income:      income,
		reconcile:   reconcile,
	}
}

// ListWithdrawals 获取提现申请列表
// @Summary 获取提现申请列表
// @Tags 管理-提现审核
// @Produce json
// @Security Bearer
// @Param lawyer_id query int false "律师ID"
// @Param status query string false "状态"
// @Param withdraw_method query string false "提现方式"
// @Param request_no query string false "申请单号"
// @Param start_date query string false "开始日期 YYYY-MM-DD"
// @Param end_date query string false "结束日期 YYYY-MM-DD"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/withdrawals [get]
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	lawyerID, ok := handler.ParseQueryID(c, "lawyer_id", "律师")
	if !ok {
		return
	}
	start, end, ok := handler.ParseQueryDateRange(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	filter := &settlementService.WithdrawalFilter{
		LawyerID:  lawyerID,
		Status:    c.Query("status"),
		Method:    c.Query("withdraw_method"),
		RequestNo: c.Query("request_no"),
		StartTime: start,
		EndTime:   end,
	}
	list, total, err := h.withdrawals.List(c.Request.Context(), filter, p.Page, p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p)
}

// GetWithdrawal 获取提现详情
// @Summary 获取提现详情
// @Tags 管理-提现审核
// @Produce json
// @Security Bearer
// @Param id path int true "提现申请ID"
// @Success 200 {object} response.Response{data=settlementService.WithdrawalView}
// @Router /api/v1/admin/withdrawals/{id} [get]
func (h *AdminHandler) GetWithdrawal(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	id, ok := handler.ParseID(c, "提现申请")
	if !ok {
		return
	}

	view, err := h.withdrawals.Detail(c.Request.Context(), id, 0)
	handler.MustSucceed(c, err, view)
}

// GetWithdrawalStats 全部提现统计
// @Summary 提现统计
// @Tags 管理-提现审核
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=settlementService.WithdrawalStats}
// @Router /api/v1/admin/withdrawals/stats [get]
func (h *AdminHandler) GetWithdrawalStats(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	stats, err := h.withdrawals.Stats(c.Request.Context(), 0)
	handler.MustSucceed(c, err, stats)
}

// WithdrawAction 审核或打款
// @Summary 处理提现申请
// @Tags 管理-提现审核
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "提现申请ID"
// @Param request body settlementService.AdminActionRequest true "操作 approve/reject/complete/fail"
// @Success 200 {object} response.Response{data=settlementService.WithdrawalView}
// @Router /api/v1/admin/withdrawals/{id}/action [post]
func (h *AdminHandler) WithdrawAction(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "提现申请")
	if !ok {
		return
	}

	var req settlementService.AdminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.WithdrawalID = id
	req.AdminID = adminID

	withdrawal, err := h.withdrawals.AdminAction(c.Request.Context(), &req)
	if handler.HandleError(c, err) {
		return
	}
	response.Success(c, h.withdrawals.View(withdrawal))
}

// SettleIncome 手动触发收入结算
// @Summary 手动结算到期收入
// @Tags 管理-结算
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=settlementService.SettleResult}
// @Router /api/v1/admin/settlement/settle [post]
func (h *AdminHandler) SettleIncome(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	result, err := h.income.SettleDueRecords(c.Request.Context(), time.Now())
	handler.MustSucceed(c, err, result)
}

// ReconcileWallet 单个律师钱包对账
// @Summary 钱包对账
// @Tags 管理-结算
// @Produce json
// @Security Bearer
// @Param lawyer_id path int true "律师ID"
// @Success 200 {object} response.Response{data=settlementService.ReconcileReport}
// @Router /api/v1/admin/settlement/reconcile/{lawyer_id} [get]
func (h *AdminHandler) ReconcileWallet(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	lawyerID, ok := handler.ParseParamID(c, "lawyer_id", "律师")
	if !ok {
		return
	}

	report, err := h.reconcile.ReconcileWallet(c.Request.Context(), lawyerID)
	handler.MustSucceed(c, err, report)
}

// RegisterRoutes 注册管理端路由，actionGuard 作用于资金变动类操作
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, actionGuard ...gin.HandlerFunc) {
	withdrawals := r.Group("/withdrawals")
	{
		withdrawals.GET("", h.ListWithdrawals)
		withdrawals.GET("/stats", h.GetWithdrawalStats)
		withdrawals.GET("/:id", h.GetWithdrawal)
		withdrawals.POST("/:id/action", withGuards(actionGuard, h.WithdrawAction)...)
	}

	settlement := r.Group("/settlement")
	{
		settlement.POST("/settle", withGuards(actionGuard, h.SettleIncome)...)
		settlement.GET("/reconcile/:lawyer_id", h.ReconcileWallet)
	}
}

func withGuards(guards []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	handlers := make([]gin.HandlerFunc, 0, len(guards)+1)
	return append(append(handlers, guards...), h)
}
