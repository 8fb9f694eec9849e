package services

import (
	"context"
	"sync"
	"time"

	"campuslink/internal/repository"
	"campuslink/internal/utils"

	"go.uber.org/zap"
)

const (
	repairQueueSize = 1000
	repairBatchSize = 50
	// reconcileWindow 每日对账只看最近活跃的帖子
	reconcileWindow = 7 * 24 * time.Hour
)

// CounterScheduler queues a post whose comment counter needs a recount.
type CounterScheduler interface {
	Schedule(postID int64)
}

// CounterRepairService 重新统计帖子的 active 评论数并修正 comment_count
type CounterRepairService struct {
	posts    repository.PostRepository
	locker   utils.Locker
	cache    ListCache
	log      *zap.Logger

	queue    chan int64 // 待修正的帖子 ID 队列
	pending  map[int64]bool
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
}

func NewCounterRepairService(posts repository.PostRepository, locker utils.Locker, cache ListCache, log *zap.Logger) *CounterRepairService {
	return &CounterRepairService{
		posts:    posts,
		locker:   locker,
		cache:    cache,
		log:      log,
		queue:    make(chan int64, repairQueueSize),
		pending:  make(map[int64]bool),
		interval: 500 * time.Millisecond,
		now:      time.Now,
	}
}

// Start 启动后台 worker，ctx 取消后退出
func (s *CounterRepairService) Start(ctx context.Context) {
	go s.worker(ctx)
}

// Schedule 将帖子加入修正队列（异步）
// 已在队列中的帖子不会重复加入
func (s *CounterRepairService) Schedule(postID int64) {
	s.mu.Lock()
	if s.pending[postID] {
		s.mu.Unlock()
		return
	}
	s.pending[postID] = true
	s.mu.Unlock()

	select {
	case s.queue <- postID:
	default:
		// 队列满了，移除 pending 标记，留给每日对账
		s.mu.Lock()
		delete(s.pending, postID)
		s.mu.Unlock()
		counterRepairsTotal.WithLabelValues("dropped").Inc()
		s.log.Warn("counter repair queue full, dropping post", zap.Int64("post_id", postID))
	}
}

func (s *CounterRepairService) worker(ctx context.Context) {
	batch := make([]int64, 0, repairBatchSize)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case postID := <-s.queue:
			batch = append(batch, postID)
			if len(batch) >= repairBatchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *CounterRepairService) processBatch(ctx context.Context, postIDs []int64) {
	for _, postID := range postIDs {
		if _, err := s.RecountNow(ctx, postID); err != nil {
			s.log.Warn("comment counter repair failed", zap.Int64("post_id", postID), zap.Error(err))
		}

		s.mu.Lock()
		delete(s.pending, postID)
		s.mu.Unlock()
	}
}

// RecountNow 同步重算帖子的评论数，返回修正后的值
// 与评论写入持有同一把锁，重算期间不会有新的计数变更
func (s *CounterRepairService) RecountNow(ctx context.Context, postID int64) (int, error) {
	unlock, err := acquire(ctx, s.locker, "recount comments", commentCountLockKey(postID))
	if err != nil {
		counterRepairsTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	defer unlock()

	previous, count, err := s.posts.RecountComments(ctx, postID)
	if err != nil {
		counterRepairsTotal.WithLabelValues("error").Inc()
		return 0, wrapStoreErr("recount comments", err)
	}
	if count == previous {
		counterRepairsTotal.WithLabelValues("unchanged").Inc()
		return count, nil
	}

	counterRepairsTotal.WithLabelValues("fixed").Inc()
	purge(s.cache)
	s.log.Info("comment counter fixed",
		zap.Int64("post_id", postID),
		zap.Int("was", previous),
		zap.Int("now", count),
	)
	return count, nil
}

// ReconcileRecent 重算最近 7 天活跃帖子的评论数，返回处理的帖子数
func (s *CounterRepairService) ReconcileRecent(ctx context.Context) (int, error) {
	ids, err := s.posts.RecentlyActivePostIDs(ctx, s.now().Add(-reconcileWindow))
	if err != nil {
		return 0, wrapStoreErr("reconcile comment counters", err)
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if _, err := s.RecountNow(ctx, id); err != nil {
			s.log.Warn("comment counter repair failed", zap.Int64("post_id", id), zap.Error(err))
		}
	}
	return len(ids), nil
}

// StartScheduled 启动每日对账任务（每天 hour 点执行）
func (s *CounterRepairService) StartScheduled(ctx context.Context, hour int) {
	go func() {
		for {
			timer := time.NewTimer(time.Until(nextRun(s.now(), hour)))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			s.log.Info("starting comment counter reconciliation")
			n, err := s.ReconcileRecent(ctx)
			if err != nil {
				s.log.Error("comment counter reconciliation failed", zap.Error(err))
				continue
			}
			s.log.Info("comment counter reconciliation finished", zap.Int("posts", n))
		}
	}()
}

// nextRun returns the next time at hour:00 strictly after now.
func nextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
