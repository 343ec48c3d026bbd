package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/chainsafe/bridge-relayer/internal/metrics"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

var errStillPending = errors.New("transaction still pending")

// ExecutorConfig holds executor timeouts
type ExecutorConfig struct {
	RPCTimeout          time.Duration
	ConfirmationTimeout time.Duration
	// PollInterval is the first delay between confirmation checks
	PollInterval time.Duration
}

// Executor performs destination actions. Every action is persisted on the job before it is
// broadcast so that a restarted relayer checks it instead of sending a second one.
type Executor struct {
	store   queue.Store
	targets map[queue.Direction]Target
	locks   map[queue.Direction]*sync.Mutex
	config  ExecutorConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewExecutor creates an executor over the given targets
func NewExecutor(store queue.Store, targets []Target, cfg ExecutorConfig, logger *zap.Logger) *Executor {
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = 30 * time.Second
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	e := &Executor{
		store:   store,
		targets: make(map[queue.Direction]Target, len(targets)),
		locks:   make(map[queue.Direction]*sync.Mutex, len(targets)),
		config:  cfg,
		logger:  logger,
		now:     time.Now,
	}
	for _, t := range targets {
		e.targets[t.Direction()] = t
		e.locks[t.Direction()] = &sync.Mutex{}
	}
	return e
}

// Target returns the target executing direction
func (e *Executor) Target(direction queue.Direction) (Target, bool) {
	t, ok := e.targets[direction]
	return t, ok
}

// Execute makes sure the job's destination action exists and is confirmed, returning its
// reference. The caller must hold the job's lease as owner.
func (e *Executor) Execute(ctx context.Context, job *queue.Job, owner string) (string, error) {
	target, ok := e.targets[job.Direction]
	if !ok {
		return "", Permanent("no_target", fmt.Errorf("no target for direction %s", job.Direction))
	}
	logger := e.logger.With(zap.String("job_id", job.ID), zap.String("direction", string(job.Direction)))

	if job.SubmittedTxRef != "" {
		ref, done, err := e.resume(ctx, target, job, owner, logger)
		if done {
			return ref, err
		}
	}

	tx, err := e.submit(ctx, target, job, owner, logger)
	if err != nil {
		return "", err
	}
	return e.await(ctx, target, job, owner, tx.Ref, tx.Expiry, logger)
}

// resume handles a submission persisted by an earlier attempt. done is false only when the
// earlier action can no longer land and a new one may be sent.
func (e *Executor) resume(ctx context.Context, target Target, job *queue.Job, owner string, logger *zap.Logger) (string, bool, error) {
	ref := job.SubmittedTxRef
	res, err := e.status(ctx, target, ref, job.SubmittedExpiry)
	if err != nil {
		return "", true, Transient("status_unknown", fmt.Errorf("failed to check earlier submission %s: %w", ref, err))
	}

	logger.Info("Found earlier submission", zap.String("tx_ref", ref), zap.String("state", res.State.String()))
	switch res.State {
	case TxConfirmed:
		return ref, true, nil
	case TxPending:
		ref, err := e.await(ctx, target, job, owner, ref, job.SubmittedExpiry, logger)
		return ref, true, err
	case TxFailed:
		if err := e.clear(ctx, job, owner); err != nil {
			return "", true, err
		}
		return "", true, failureReason(ref, res)
	default:
		if err := e.clear(ctx, job, owner); err != nil {
			return "", true, err
		}
		return "", false, nil
	}
}

func (e *Executor) submit(ctx context.Context, target Target, job *queue.Job, owner string, logger *zap.Logger) (*PreparedTx, error) {
	lock := e.locks[job.Direction]
	lock.Lock()
	defer lock.Unlock()

	rpcCtx, cancel := context.WithTimeout(ctx, e.config.RPCTimeout)
	defer cancel()

	tx, err := target.Prepare(rpcCtx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare action: %w", err)
	}
	if err := e.store.RecordSubmission(ctx, job.ID, owner, tx.Ref, tx.Expiry, e.now()); err != nil {
		return nil, Transient("store_error", fmt.Errorf("failed to persist submission: %w", err))
	}

	if err := target.Broadcast(rpcCtx, tx); err != nil {
		metrics.TransactionsSent.WithLabelValues(target.Chain(), "error").Inc()
		if class, _ := Classify(err); class == ClassPermanent {
			// rejected before reaching the chain
			if cerr := e.clear(ctx, job, owner); cerr != nil {
				logger.Warn("Failed to clear rejected submission", zap.Error(cerr))
			}
		}
		return nil, fmt.Errorf("failed to broadcast %s: %w", tx.Ref, err)
	}

	metrics.TransactionsSent.WithLabelValues(target.Chain(), "sent").Inc()
	logger.Info("Action broadcast",
		zap.String("tx_ref", tx.Ref),
		zap.String("amount", job.Amount),
		zap.String("recipient", job.Recipient),
		zap.Int("attempt", job.Attempts+1))
	return tx, nil
}

func (e *Executor) await(ctx context.Context, target Target, job *queue.Job, owner, ref string, expiry uint64, logger *zap.Logger) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.config.PollInterval
	b.MaxInterval = 8 * e.config.PollInterval
	b.MaxElapsedTime = e.config.ConfirmationTimeout

	var result *TxResult
	err := backoff.Retry(func() error {
		res, err := e.status(ctx, target, ref, expiry)
		if err != nil {
			if class, _ := Classify(err); class == ClassPermanent {
				return backoff.Permanent(err)
			}
			logger.Debug("Status check failed", zap.String("tx_ref", ref), zap.Error(err))
			return err
		}
		if res.State == TxPending {
			return errStillPending
		}
		result = res
		return nil
	}, backoff.WithContext(b, ctx))

	if result == nil {
		if err == nil {
			err = errStillPending
		}
		return "", Transient("confirmation_timeout",
			fmt.Errorf("%s not confirmed within %s: %w", ref, e.config.ConfirmationTimeout, err))
	}

	switch result.State {
	case TxConfirmed:
		metrics.TransactionsSent.WithLabelValues(target.Chain(), "confirmed").Inc()
		logger.Info("Action confirmed", zap.String("tx_ref", ref))
		return ref, nil
	case TxFailed:
		metrics.TransactionsSent.WithLabelValues(target.Chain(), "failed").Inc()
		if err := e.clear(ctx, job, owner); err != nil {
			return "", err
		}
		return "", failureReason(ref, result)
	default:
		metrics.TransactionsSent.WithLabelValues(target.Chain(), "dropped").Inc()
		if err := e.clear(ctx, job, owner); err != nil {
			return "", err
		}
		return "", Transient("tx_dropped", fmt.Errorf("%s was dropped before landing", ref))
	}
}

func (e *Executor) status(ctx context.Context, target Target, ref string, expiry uint64) (*TxResult, error) {
	rpcCtx, cancel := context.WithTimeout(ctx, e.config.RPCTimeout)
	defer cancel()
	return target.Status(rpcCtx, ref, expiry)
}

func (e *Executor) clear(ctx context.Context, job *queue.Job, owner string) error {
	if err := e.store.ClearSubmission(ctx, job.ID, owner, e.now()); err != nil {
		return Transient("store_error", fmt.Errorf("failed to clear submission: %w", err))
	}
	return nil
}

func failureReason(ref string, res *TxResult) error {
	if res.Reason != nil {
		return fmt.Errorf("%s failed on chain: %w", ref, res.Reason)
	}
	return Permanent("tx_failed", fmt.Errorf("%s failed on chain", ref))
}
