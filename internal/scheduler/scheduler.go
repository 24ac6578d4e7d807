// Package scheduler 定时触发停用与通知扫描。
// 多实例部署时通过分布式锁保证同一扫描同一时刻只有一个进程执行。
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"library-lending/config"
	"library-lending/internal/service"
)

// Locker 分布式锁（pkg/redis.Client 实现）
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, name, token string) error
}

// Job 周期任务
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler 周期任务调度器
type Scheduler struct {
	locker  Locker
	lockTTL time.Duration
	logger  *zap.Logger
	jobs    []Job
	wg      sync.WaitGroup
}

// New 创建调度器；locker 为 nil 时不加锁直接执行
func New(locker Locker, lockTTL time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{locker: locker, lockTTL: lockTTL, logger: logger}
}

// Add 注册任务，Interval <= 0 的任务被忽略
func (s *Scheduler) Add(job Job) {
	if job.Interval <= 0 {
		s.logger.Warn("任务间隔无效，已忽略", zap.String("job", job.Name))
		return
	}
	s.jobs = append(s.jobs, job)
}

// Start 每个任务一个 goroutine，ctx 取消后退出
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	s.logger.Info("定时任务已启动", zap.Int("jobs", len(s.jobs)))
}

// Wait 等待所有任务 goroutine 退出
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx, job); err != nil {
				s.logger.Error("定时任务执行失败", zap.String("job", job.Name), zap.Error(err))
			}
		}
	}
}

// RunOnce 获取锁后执行一次任务；锁被占用时返回 (false, nil)
func (s *Scheduler) RunOnce(ctx context.Context, job Job) (bool, error) {
	if s.locker == nil {
		return true, job.Run(ctx)
	}

	token, ok, err := s.locker.TryLock(ctx, job.Name, s.lockTTL)
	if err != nil {
		return false, err
	}
	if !ok {
		s.logger.Debug("其他实例正在执行，跳过", zap.String("job", job.Name))
		return false, nil
	}
	defer func() {
		// 任务 ctx 可能已取消，解锁使用独立超时
		unlockCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.locker.Unlock(unlockCtx, job.Name, token); err != nil {
			s.logger.Warn("释放任务锁失败", zap.String("job", job.Name), zap.Error(err))
		}
	}()

	start := time.Now()
	err = job.Run(ctx)
	s.logger.Info("定时任务完成", zap.String("job", job.Name), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	return true, err
}

// LendingJobs 停用扫描与逾期通知扫描
func LendingJobs(svc *service.Service, sweep *config.SweepConfig, thresholdCents int64) []Job {
	return []Job{
		{
			Name:     "suspension-sweep",
			Interval: sweep.SuspensionInterval,
			Run: func(ctx context.Context) error {
				_, err := svc.Suspension.SuspendOverThreshold(ctx, thresholdCents)
				return err
			},
		},
		{
			Name:     "notification-sweep",
			Interval: sweep.NotificationInterval,
			Run: func(ctx context.Context) error {
				_, err := svc.Notification.SendOverdueNotifications(ctx)
				return err
			},
		},
	}
}
