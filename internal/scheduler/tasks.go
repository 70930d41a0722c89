package scheduler

import (
	"context"
	"time"

	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	"github.com/dumeirei/lawconsult-backend/internal/common/logger"
	settlementService "github.com/dumeirei/lawconsult-backend/internal/service/settlement"
)

// 任务名称
const (
	TaskSettleDueIncome  = "settle_due_income"
	TaskReconcileWallets = "reconcile_wallets"
)

// TaskHandler 结算定时任务
type TaskHandler struct {
	income    *settlementService.IncomeService
	reconcile *settlementService.ReconcileService
	now       func() time.Time
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(income *settlementService.IncomeService, reconcile *settlementService.ReconcileService) *TaskHandler {
	return &TaskHandler{
		income:    income,
		reconcile: reconcile,
		now:       time.Now,
	}
}

// SettleDueIncome 结算冻结期已满的收入记录
func (h *TaskHandler) SettleDueIncome(ctx context.Context) error {
	result, err := h.income.SettleDueRecords(ctx, h.now())
	if err != nil {
		return err
	}
	if result.Settled > 0 {
		logger.Info("due income settled", logger.Int("count", result.Settled))
	}
	return nil
}

// ReconcileWallets 全量钱包对账，漂移只告警不修复
func (h *TaskHandler) ReconcileWallets(ctx context.Context) error {
	summary, err := h.reconcile.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	if len(summary.Drifted) > 0 {
		logger.Warn("wallet reconciliation found drift",
			logger.Int("checked", summary.Checked),
			logger.Any("lawyer_ids", summary.Drifted),
		)
	}
	return nil
}

// RegisterTasks 按配置注册结算任务
func RegisterTasks(s *Scheduler, h *TaskHandler, cfg *config.SettlementConfig) error {
	settleSpec := cfg.SettleCron
	if settleSpec == "" {
		settleSpec = "@every 1h"
	}
	if err := s.AddTask(TaskSettleDueIncome, settleSpec, h.SettleDueIncome); err != nil {
		return err
	}

	reconcileSpec := cfg.ReconcileCron
	if reconcileSpec == "" {
		reconcileSpec = "@daily"
	}
	return s.AddTask(TaskReconcileWallets, reconcileSpec, h.ReconcileWallets)
}
