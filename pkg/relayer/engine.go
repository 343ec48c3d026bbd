package relayer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/bridge-relayer/pkg/config"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

// SourceChain is everything the engine needs from the source chain client
type SourceChain interface {
	LockScanner
	UnlockClient
}

// DestinationChain is everything the engine needs from the destination chain client
type DestinationChain interface {
	BurnScanner
	MintClient
}

// Engine wires watchers, reconciliation, execution and scheduling for both directions
type Engine struct {
	config    *config.Config
	store     queue.Store
	watchers  []*Watcher
	scheduler *Scheduler
	monitor   *Monitor
	rescuer   *Rescuer
	auditor   *Auditor
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a relayer engine
func NewEngine(cfg *config.Config, store queue.Store, source SourceChain, destination DestinationChain, logger *zap.Logger) (*Engine, error) {
	schedule, err := NewSchedule(cfg.Relayer.Backoff)
	if err != nil {
		return nil, err
	}
	bounds, err := NewBounds(cfg.Relayer.MinTransferAmount, cfg.Relayer.MaxTransferAmount)
	if err != nil {
		return nil, err
	}

	mint := NewMintTarget(destination, logger.Named("mint"))
	unlock := NewUnlockTarget(source)
	targets := []Target{mint, unlock}

	watchers := []*Watcher{
		NewWatcher(NewLockSource(source, &cfg.Source),
			NewJobFactory(mint, cfg.Source.Decimals, cfg.Destination.Decimals, bounds), store, logger),
		NewWatcher(NewBurnSource(destination, &cfg.Destination),
			NewJobFactory(unlock, cfg.Destination.Decimals, cfg.Source.Decimals, bounds), store, logger),
	}

	reconciler := NewReconciler(store, targets, HeuristicConfig{
		Enabled:   cfg.Relayer.HeuristicOn(),
		Window:    cfg.Relayer.HeuristicWindow,
		Tolerance: cfg.Relayer.HeuristicTolerance,
	}, logger.Named("reconciler"))
	executor := NewExecutor(store, targets, ExecutorConfig{
		RPCTimeout:          cfg.Relayer.RPCTimeout,
		ConfirmationTimeout: cfg.Relayer.ConfirmationTimeout,
	}, logger.Named("executor"))
	pipeline := NewPipeline(store, reconciler, executor, schedule, logger)

	scheduler := NewScheduler(store, watchers, pipeline, SchedulerConfig{
		Workers:       cfg.Relayer.Workers,
		BatchSize:     cfg.Relayer.BatchSize,
		LeaseDuration: cfg.Relayer.LeaseDuration,
	}, logger.Named("scheduler"))

	monitor := NewMonitor(store, watchers, []BalanceWatch{
		{Target: unlock, Threshold: cfg.Relayer.SourceLowBalance},
		{Target: mint, Threshold: cfg.Relayer.DestinationLowBalance},
	}, logger.Named("monitor"))

	return &Engine{
		config:    cfg,
		store:     store,
		watchers:  watchers,
		scheduler: scheduler,
		monitor:   monitor,
		rescuer:   NewRescuer(store, reconciler, pipeline, scheduler.Owner(), cfg.Relayer.LeaseDuration, logger.Named("rescue")),
		auditor:   NewAuditor(store, watchers, reconciler),
		logger:    logger,
	}, nil
}

// Start runs the scheduler and the monitor refresh until Stop is called or ctx ends
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.logger.Info("Starting relayer engine",
		zap.Duration("tick_interval", e.config.Relayer.TickInterval),
		zap.Bool("heuristic", e.config.Relayer.HeuristicOn()))

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		if err := e.scheduler.Run(ctx, NewTicker(e.config.Relayer.TickInterval)); err != nil {
			e.logger.Error("Scheduler stopped with error", zap.Error(err))
		}
	}()
	go func() {
		defer e.wg.Done()
		e.refreshMonitor(ctx)
	}()
}

// Stop stops the engine and waits for in-flight work
func (e *Engine) Stop() {
	e.logger.Info("Stopping relayer engine")
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.logger.Info("Relayer engine stopped")
}

// Ready reports whether the scheduler has completed a tick
func (e *Engine) Ready() bool {
	return e.scheduler.Ready()
}

// Scheduler returns the scheduler
func (e *Engine) Scheduler() *Scheduler { return e.scheduler }

// Monitor returns the monitor
func (e *Engine) Monitor() *Monitor { return e.monitor }

// Rescuer returns the operator rescue surface
func (e *Engine) Rescuer() *Rescuer { return e.rescuer }

// Auditor returns the auditor
func (e *Engine) Auditor() *Auditor { return e.auditor }

// Store returns the queue store
func (e *Engine) Store() queue.Store { return e.store }

func (e *Engine) refreshMonitor(ctx context.Context) {
	interval := e.config.Relayer.TickInterval
	if interval < 30*time.Second {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := e.monitor.Snapshot(ctx)
			if err != nil {
				e.logger.Warn("Monitor snapshot failed", zap.Error(err))
				continue
			}
			if snap.Alert {
				e.logger.Warn("Relayer alert", zap.Strings("reasons", snap.AlertReasons), zap.Bool("alert", true))
			}
		}
	}
}

