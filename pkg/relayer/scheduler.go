package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainsafe/bridge-relayer/internal/metrics"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

// TickSource delivers scheduler ticks
type TickSource interface {
	C() <-chan time.Time
	Stop()
}

type tickerSource struct {
	ticker *time.Ticker
}

// NewTicker returns a wall clock tick source
func NewTicker(interval time.Duration) TickSource {
	return &tickerSource{ticker: time.NewTicker(interval)}
}

func (t *tickerSource) C() <-chan time.Time { return t.ticker.C }
func (t *tickerSource) Stop() { t.ticker.Stop() }

// ManualTicks is a tick source driven by the caller
type ManualTicks struct {
	ch chan time.Time
}

// NewManualTicks creates a manual tick source
func NewManualTicks() *ManualTicks {
	return &ManualTicks{ch: make(chan time.Time)}
}

// Tick delivers one tick and blocks until the scheduler receives it
func (m *ManualTicks) Tick(t time.Time) {
	m.ch <- t
}

func (m *ManualTicks) C() <-chan time.Time { return m.ch }
func (m *ManualTicks) Stop() {}

// SchedulerConfig holds dispatch settings
type SchedulerConfig struct {
	Workers       int
	BatchSize     int
	LeaseDuration time.Duration
}

// TickSummary counts what one tick did
type TickSummary struct {
	Created       int
	Due           int
	Completed     int
	Retried       int
	Failed        int
	Skipped       int
	Errors        int
	WatcherErrors int
}

func (s *TickSummary) add(r Result) {
	switch r {
	case ResultCompleted:
		s.Completed++
	case ResultRetried:
		s.Retried++
	case ResultFailed:
		s.Failed++
	case ResultError:
		s.Errors++
	default:
		s.Skipped++
	}
}

// Scheduler drives watchers and dispatches due jobs. It holds no job state of its own.
type Scheduler struct {
	store     queue.Store
	watchers  []*Watcher
	factories map[queue.Direction]*JobFactory
	pipeline  *Pipeline
	config    SchedulerConfig
	owner     string
	logger    *zap.Logger
	now       func() time.Time

	ready atomic.Bool
}

// NewScheduler creates a scheduler. Each process gets its own lease owner id.
func NewScheduler(store queue.Store, watchers []*Watcher, pipeline *Pipeline, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}
	factories := make(map[queue.Direction]*JobFactory, len(watchers))
	for _, w := range watchers {
		factories[w.Direction()] = w.factory
	}
	return &Scheduler{
		store:     store,
		watchers:  watchers,
		factories: factories,
		pipeline:  pipeline,
		config:    cfg,
		owner:     "relayer-" + uuid.NewString(),
		logger:    logger,
		now:       time.Now,
	}
}

// Owner returns the lease owner id of this process
func (s *Scheduler) Owner() string {
	return s.owner
}

// Ready reports whether a tick has completed since start
func (s *Scheduler) Ready() bool {
	return s.ready.Load()
}

// Run ticks until ctx is cancelled. The first tick runs immediately.
func (s *Scheduler) Run(ctx context.Context, ticks TickSource) error {
	defer ticks.Stop()
	s.logger.Info("Scheduler started", zap.String("owner", s.owner), zap.Int("workers", s.config.Workers))

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return nil
		case <-ticks.C():
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	summary, err := s.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("Tick failed", zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues("scheduler", "tick").Inc()
		}
		return
	}
	if summary.Created+summary.Due > 0 {
		s.logger.Info("Tick finished",
			zap.Int("created", summary.Created),
			zap.Int("due", summary.Due),
			zap.Int("completed", summary.Completed),
			zap.Int("retried", summary.Retried),
			zap.Int("failed", summary.Failed))
	}
}

// RunOnce polls every watcher, then evaluates the due jobs on a bounded worker pool
func (s *Scheduler) RunOnce(ctx context.Context) (TickSummary, error) {
	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	var summary TickSummary
	for _, w := range s.watchers {
		n, err := w.Poll(ctx)
		summary.Created += n
		if err != nil {
			summary.WatcherErrors++
			metrics.ErrorsTotal.WithLabelValues("watcher_"+w.Name(), "poll").Inc()
			s.logger.Warn("Watcher poll failed, retrying next tick", zap.String("watcher", w.Name()), zap.Error(err))
		}
	}

	jobs, err := s.store.ListDueJobs(ctx, s.now(), s.config.BatchSize)
	if err != nil {
		return summary, fmt.Errorf("failed to list due jobs: %w", err)
	}
	summary.Due = len(jobs)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			res := s.process(gctx, job)
			mu.Lock()
			summary.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.ready.Store(true)
	return summary, nil
}

func (s *Scheduler) process(ctx context.Context, job *queue.Job) Result {
	logger := s.logger.With(zap.String("job_id", job.ID), zap.String("direction", string(job.Direction)))

	if job.Status == queue.StatusPending {
		if f, ok := s.factories[job.Direction]; ok {
			if err := f.Validate(job); err != nil {
				return s.reject(ctx, job, err, logger)
			}
		}
	}

	now := s.now()
	claimed, err := s.store.ClaimJob(ctx, job.ID, s.owner, now, now.Add(s.config.LeaseDuration))
	if errors.Is(err, queue.ErrLeaseHeld) {
		logger.Debug("Job claimed elsewhere or no longer due")
		return ResultSkipped
	}
	if err != nil {
		logger.Error("Failed to claim job", zap.Error(err))
		return ResultError
	}
	if job.Status == queue.StatusProcessing {
		logger.Warn("Recovering job with stale lease",
			zap.String("previous_owner", job.LeaseOwner),
			zap.String("submitted_tx_ref", job.SubmittedTxRef))
	}

	res, err := s.pipeline.Run(ctx, claimed, s.owner, false)
	if err != nil {
		logger.Error("Job evaluation failed", zap.Error(err))
	}
	return res
}

// reject fails a pending job that can never succeed without it entering processing
func (s *Scheduler) reject(ctx context.Context, job *queue.Job, cause error, logger *zap.Logger) Result {
	if err := s.store.FailPending(ctx, job.ID, cause.Error(), s.now()); err != nil {
		logger.Error("Failed to reject job", zap.Error(err))
		return ResultError
	}
	metrics.JobsFinished.WithLabelValues(string(job.Direction), string(queue.StatusFailed), "").Inc()
	logger.Error("Job rejected before processing", zap.Bool("alert", true), zap.Error(cause))
	return ResultFailed
}
