// Package scheduler 提供定时任务调度
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dumeirei/lawconsult-backend/internal/common/cache"
	"github.com/dumeirei/lawconsult-backend/internal/common/logger"
	"github.com/dumeirei/lawconsult-backend/internal/common/metrics"
)

const defaultTaskTimeout = 10 * time.Minute

// Scheduler 定时任务调度器
//
// 多实例部署时同一任务通过 Redis 锁保证同一时刻只有一个实例执行。
type Scheduler struct {
	cron    *cron.Cron
	tasks   []*Task
	locker  *cache.Locker
	metrics *metrics.Metrics
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

// Task 定时任务
type Task struct {
	Name    string
	Spec    string
	Handler func(ctx context.Context) error
}

// NewScheduler 创建调度器，locker 为 nil 时不做跨实例互斥
func NewScheduler(locker *cache.Locker, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		tasks:   make([]*Task, 0),
		locker:  locker,
		metrics: m,
		timeout: defaultTaskTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddTask 添加任务，spec 为标准 cron 表达式或 @every 写法
func (s *Scheduler) AddTask(name, spec string, handler func(ctx context.Context) error) error {
	task := &Task{Name: name, Spec: spec, Handler: handler}
	if _, err := s.cron.AddFunc(spec, func() { s.executeTask(task) }); err != nil {
		return err
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
	return nil
}

// Tasks 已注册的任务
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// RunNow 立即执行指定任务，任务不存在时返回 false
func (s *Scheduler) RunNow(name string) bool {
	for _, task := range s.Tasks() {
		if task.Name == name {
			s.executeTask(task)
			return true
		}
	}
	return false
}

// Start 启动调度器
func (s *Scheduler) Start() {
	logger.Info("scheduler starting", logger.Int("tasks", len(s.Tasks())))
	s.cron.Start()
}

// Stop 停止调度器，等待执行中的任务结束
func (s *Scheduler) Stop() {
	logger.Info("scheduler stopping")
	s.cancel()
	<-s.cron.Stop().Done()
	logger.Info("scheduler stopped")
}

// executeTask 执行任务
func (s *Scheduler) executeTask(task *Task) {
	lock, err := s.locker.TryAcquire(s.ctx, cache.BuildKey(cache.KeyPrefixScheduler, task.Name), s.timeout)
	switch {
	case errors.Is(err, cache.ErrLockNotAcquired):
		logger.Debug("scheduler task skipped, running on another instance", logger.String("task", task.Name))
		return
	case err != nil:
		logger.Warn("scheduler lock unavailable", logger.String("task", task.Name), logger.Err(err))
	default:
		defer func() { _ = lock.Release(context.WithoutCancel(s.ctx)) }()
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err = task.Handler(ctx)
	if s.metrics != nil {
		s.metrics.RecordJob(task.Name, err)
	}
	if err != nil {
		logger.Error("scheduler task failed",
			logger.String("task", task.Name),
			logger.Duration("elapsed", time.Since(start)),
			logger.Err(err),
		)
		return
	}
	logger.Info("scheduler task completed",
		logger.String("task", task.Name),
		logger.Duration("elapsed", time.Since(start)),
	)
}
