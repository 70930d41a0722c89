// Package settlement 律师结算 HTTP Handler
package settlement

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/lawconsult-backend/internal/common/handler"
	"github.com/dumeirei/lawconsult-backend/internal/common/response"
	settlementService "github.com/dumeirei/lawconsult-backend/internal/service/settlement"
)

// LawyerHandler 律师端结算接口
type LawyerHandler struct {
	lawyers     *settlementService.LawyerService
	wallets     *settlementService.WalletService
	income      *settlementService.IncomeService
	banks       *settlementService.BankAccountService
	withdrawals *settlementService.WithdrawalService
}

// NewLawyerHandler 创建律师端结算处理器
func NewLawyerHandler(
	lawyers *settlementService.LawyerService,
	wallets *settlementService.WalletService,
	income *settlementService.IncomeService,
	banks *settlementService.BankAccountService,
	withdrawals *settlementService.WithdrawalService,
) *LawyerHandler {
	return &LawyerHandler{
		lawyers:     lawyers,
		wallets:     wallets,
		income:      income,
		banks:       banks,
		withdrawals: withdrawals,
	}
}

// requireLawyer 解析当前登录用户对应的律师 ID
func (h *LawyerHandler) requireLawyer(c *gin.Context) (int64, bool) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return 0, false
	}
	lawyer, err := h.lawyers.ResolveByUserID(c.Request.Context(), userID)
	if handler.HandleError(c, err) {
		return 0, false
	}
	return lawyer.ID, true
}

// GetWallet 获取钱包余额
// @Summary 获取律师钱包
// @Tags 律师-结算
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=settlementService.WalletView}
// @Router /api/v1/lawyer/wallet [get]
func (h *LawyerHandler) GetWallet(c *gin.Context) {
	lawyerID, ok := h.requireLawyer(c)
	if !ok {
		return
	}

	view, err := h.wallets.GetView(c.Request.Context(), lawyerID)
	handler.MustSucceed(c, err, view)
}

// ListIncomeRecords 获取收入记录
// @Summary 获取收入记录
// @Tags 律师-结算
// @Produce json
// @Security Bearer
// @Param status query string false "状态 pending/settled/withdrawn"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/lawyer/income-records [get]
func (h *LawyerHandler) ListIncomeRecords(c *gin.Context) {
	lawyerID, ok := h.requireLawyer(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	list, total, err := h.income.ListIncomeRecords(c.Request.Context(), lawyerID, c.Query("status"), p.Page, p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p)
}

// GetIncomeSummary 按状态汇总收入
// @Summary 收入汇总
// @Tags 律师-结算
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=settlementService.IncomeSummary}
// @Router /api/v1/lawyer/income-records/summary [get]
func (h *LawyerHandler) GetIncomeSummary(c *gin.Context) {
	lawyerID, ok := h.requireLawyer(c)
	if !ok {
		return
	}

	summary, err := h.income.Summary(c.Request.Context(), lawyerID)
	handler.MustSucceed(c, err, summary)
}

// ListBankAccounts 获取收款账户
// @Summary 获取收款账户列表
// @Tags 律师-收款账户
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=[]settlementService.BankAccountView}
// @Router /api/v1/lawyer/bank-accounts [get]
func (h *LawyerHandler) ListBankAccounts(c *gin.Context) {
	lawyerID, ok := h.requireLawyer(c)
	if !ok {
		return
	}

	list, err := h.banks.List(c.Request.Context(), lawyerID)
	handler.MustSucceed(c, err, list)
}

// CreateBankAccount 新增收款账户
// @Summary 新增收款账户
// @Tags 律师-收款账户
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body settlementService.BankAccountRequest true "账户信息"
// @Success 200 {object} response.Response{data=settlementService.BankAccountView}
// @Router /api/v1/lawyer/bank-accounts [post]
func (h *LawyerHandler) CreateBankAccount(c *gin.Context) {
	lawyerID, ok := h.requireLawyer(c)
	if !ok {
		return
	}

	var req settlementService.BankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	view, err := h.banks.Create(c.Request.Context(), lawyerID, &req)
	handler.MustSucceed(c, err, view)
}

// UpdateBankAccount 修改收款账户
// @Summary 修改收款账户
// @Tags 律师-收款账户
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "账户ID"
// @Param request body settlementService.BankAccountRequest true "账户信息"
// @Success 200 {object} response.Response{data=settlementService.BankAccountView}
// @Router /api/v1/lawyer/bank-accounts/{id} [put]
func (h *LawyerHandler) UpdateBankAccount(c *gin.Context) {
	lawyerID, ok := h.requireLawyer(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "账户")
	if !ok {
		return
	}

	var req settlementService.BankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	view, err := h.banks.Update(c.Request.Context(), lawyerID, id, &req)
	handler.MustSucceed(c, err, view)
}

// SetDefaultBankAccount 设为默认收款账户
// @Summary 设为默认收款账户
// @Tags 律师-收款账户
// @Produce json
// @Security Bearer
// @Param id path int true "账户ID"
// @Success 200 {object} response.Response
// @Router /api/v1/lawyer/bank-accounts/{id}/default [post]
func (h *LawyerHandler) SetDefaultBankAccount(c *gin.Context) {
	lawyerID, ok := h.requireLawyer(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "账户")
	if !ok {
		return
	}

	if err := h.banks.SetDefault(c.Request.Context(), lawyerID, id); handler.HandleError(c, err) {
		return
	}
	response.SuccessWithMessage(c, "已设为默认账户", nil)
}

// DisableBankAccount 停用收款账户
// @Summary 停用收款账户
// @Tags 律师-收款账户
// @Produce json
// @Security Bearer
// @Param id path int true "账户ID"
// @Success 200 {object} response.Response
// @Router /api/v1/lawyer/bank-accounts/{id} [delete]
func (h *LawyerHandler) DisableBankAccount(c *gin.Context) {
	lawyerID, ok := h.requireLawyer(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "账户")
	if !ok {
		return
	}

	if err := h.banks.Disable(c.Request.Context(), lawyerID, id); handler.HandleError(c, err) {
		return
	}
	response.SuccessWithMessage(c, "账户已停用", nil)
}

// CreateWithdrawal 发起提现
// @Summary 发起提现申请
// @Tags 律师-提现
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body settlementService.CreateWithdrawalRequest true "提现信息"
// @Success 200 {object} response.Response{data=settlementService.WithdrawalView}
// @Router /api/v1/lawyer/withdrawals [post]
func (h *LawyerHandler) CreateWithdrawal(c *gin.Context) {
	lawyerID, ok := h.requireLawyer(c)
	if !ok {
		return
	}

	var req settlementService.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.LawyerID = lawyerID

	withdrawal, err := h.withdrawals.Create(c.Request.Context(), &req)
	if handler.HandleError(c, err) {
		return
	}
	response.Success(c, h.withdrawals.View(withdrawal))
}

// ListWithdrawals 获取本人提现申请
// @Summary 获取提现申请列表
// @Tags 律师-提现
// @Produce json
// @Security Bearer
// @Param status query string false "状态"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/lawyer/withdrawals [get]
func (h *LawyerHandler) ListWithdrawals(c *gin.Context) {
	lawyerID, ok := h.requireLawyer(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	filter := &settlementService.WithdrawalFilter{
		LawyerID: lawyerID,
		Status:   c.Query("status"),
	}
	list, total, err := h.withdrawals.List(c.Request.Context(), filter, p.Page, p.PageSize)
	handler.MustSucceedPage(c, err, list, total, p)
}

// GetWithdrawal 获取提现详情
// @Summary 获取提现详情
// @Tags 律师-提现
// @Produce json
// @Security Bearer
// @Param id path int true "提现申请ID"
// @Success 200 {object} response.Response{data=settlementService.WithdrawalView}
// @Router /api/v1/lawyer/withdrawals/{id} [get]
func (h *LawyerHandler) GetWithdrawal(c *gin.Context) {
	lawyerID, ok := h.requireLawyer(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "提现申请")
	if !ok {
		return
	}

	view, err := h.withdrawals.Detail(c.Request.Context(), id, lawyerID)
	handler.MustSucceed(c, err, view)
}

// GetWithdrawalStats 本人提现统计
// @Summary 提现统计
// @Tags 律师-提现
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=settlementService.WithdrawalStats}
// @Router /api/v1/lawyer/withdrawals/stats [get]
func (h *LawyerHandler) GetWithdrawalStats(c *gin.Context) {
	lawyerID, ok := h.requireLawyer(c)
	if !ok {
		return
	}

	stats, err := h.withdrawals.Stats(c.Request.Context(), lawyerID)
	handler.MustSucceed(c, err, stats)
}

// RegisterRoutes 注册律师端路由，withdrawGuard 作用于发起提现
func (h *LawyerHandler) RegisterRoutes(r *gin.RouterGroup, withdrawGuard ...gin.HandlerFunc) {
	lawyer := r.Group("/lawyer")
	{
		lawyer.GET("/wallet", h.GetWallet)
		lawyer.GET("/income-records", h.ListIncomeRecords)
		lawyer.GET("/income-records/summary", h.GetIncomeSummary)

		lawyer.GET("/bank-accounts", h.ListBankAccounts)
		lawyer.POST("/bank-accounts", h.CreateBankAccount)
		lawyer.PUT("/bank-accounts/:id", h.UpdateBankAccount)
		lawyer.POST("/bank-accounts/:id/default", h.SetDefaultBankAccount)
		lawyer.DELETE("/bank-accounts/:id", h.DisableBankAccount)

		lawyer.GET("/withdrawals", h.ListWithdrawals)
		lawyer.POST("/withdrawals", withGuards(withdrawGuard, h.CreateWithdrawal)...)
		lawyer.GET("/withdrawals/stats", h.GetWithdrawalStats)
		lawyer.GET("/withdrawals/:id", h.GetWithdrawal)
	}
}
