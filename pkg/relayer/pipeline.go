package relayer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/bridge-relayer/internal/metrics"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

// Result is what happened to a job during one evaluation
type Result int

const (
	ResultSkipped Result = iota
	ResultCompleted
	ResultRetried
	ResultFailed
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultCompleted:
		return "completed"
	case ResultRetried:
		return "retried"
	case ResultFailed:
		return "failed"
	case ResultError:
		return "error"
	default:
		return "skipped"
	}
}

// defaultRecordTimeout bounds the store write of a job outcome
const defaultRecordTimeout = 10 * time.Second

// Pipeline runs a claimed job through reconciliation and execution and records the outcome
type Pipeline struct {
	store         queue.Store
	reconciler    *Reconciler
	executor      *Executor
	schedule      Schedule
	recordTimeout time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewPipeline creates a pipeline
func NewPipeline(store queue.Store, reconciler *Reconciler, executor *Executor, schedule Schedule, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:         store,
		reconciler:    reconciler,
		executor:      executor,
		schedule:      schedule,
		recordTimeout: defaultRecordTimeout,
		logger:        logger,
		now:           time.Now,
	}
}

// recordCtx detaches the outcome write from ctx. Once work was attempted its result is
// stored even if the caller stopped waiting, so the job does not sit under a live lease.
func (p *Pipeline) recordCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.recordTimeout)
}

// Run evaluates a job leased by owner. In rescue mode a transient failure fails the job
// again instead of scheduling a retry.
func (p *Pipeline) Run(ctx context.Context, job *queue.Job, owner string, rescue bool) (Result, error) {
	v, err := p.reconciler.Verify(ctx, job)
	if err != nil {
		return p.failure(ctx, job, owner, fmt.Errorf("reconciliation failed: %w", err), rescue)
	}
	if v.Satisfied() {
		return p.complete(ctx, job, owner, v)
	}

	ref, err := p.executor.Execute(ctx, job, owner)
	if err == nil {
		return p.complete(ctx, job, owner, Verification{
			Outcome:    OutcomeVerifiedByLedger,
			Confidence: 1,
			Evidence:   EvidenceSubmission,
			TxRef:      ref,
		})
	}

	if class, _ := Classify(err); class == ClassPermanent {
		// a rejection may mean the action was settled elsewhere
		again, verr := p.reconciler.Verify(ctx, job)
		if verr == nil && again.Satisfied() {
			p.logger.Info("Rejected action already settled",
				zap.String("job_id", job.ID),
				zap.String("evidence", again.Evidence),
				zap.Error(err))
			return p.complete(ctx, job, owner, again)
		}
	}
	return p.failure(ctx, job, owner, err, rescue)
}

func (p *Pipeline) complete(ctx context.Context, job *queue.Job, owner string, v Verification) (Result, error) {
	ctx, cancel := p.recordCtx(ctx)
	defer cancel()

	now := p.now()
	verifiedBy := v.VerifiedBy()
	if err := p.store.CompleteJob(ctx, job.ID, owner, v.TxRef, verifiedBy, now); err != nil {
		return ResultError, fmt.Errorf("failed to complete job %s: %w", job.ID, err)
	}

	metrics.JobsFinished.WithLabelValues(string(job.Direction), string(queue.StatusCompleted), string(verifiedBy)).Inc()
	metrics.JobDuration.WithLabelValues(string(job.Direction)).Observe(now.Sub(job.CreatedAt).Seconds())

	fields := []zap.Field{
		zap.String("job_id", job.ID),
		zap.String("direction", string(job.Direction)),
		zap.String("tx_ref", v.TxRef),
		zap.String("verified_by", string(verifiedBy)),
	}
	if v.Outcome == OutcomeVerifiedByHeuristic {
		p.logger.Warn("Job completed on heuristic evidence without submitting",
			append(fields, zap.Float64("confidence", v.Confidence))...)
	} else {
		p.logger.Info("Job completed", fields...)
	}
	return ResultCompleted, nil
}

func (p *Pipeline) failure(ctx context.Context, job *queue.Job, owner string, cause error, rescue bool) (Result, error) {
	ctx, cancel := p.recordCtx(ctx)
	defer cancel()

	now := p.now()
	class, kind := Classify(cause)
	metrics.ErrorsTotal.WithLabelValues("pipeline", kind).Inc()
	logger := p.logger.With(
		zap.String("job_id", job.ID),
		zap.String("direction", string(job.Direction)),
		zap.String("source_ref", job.SourceTxHash))

	if class == ClassTransient && !rescue {
		attempts := job.Attempts + 1
		if delay, ok := p.schedule.Next(attempts); ok {
			next := now.Add(delay)
			if err := p.store.RetryJob(ctx, job.ID, owner, attempts, next, cause.Error(), now); err != nil {
				return ResultError, fmt.Errorf("failed to schedule retry for %s: %w", job.ID, err)
			}
			metrics.JobRetries.WithLabelValues(string(job.Direction)).Inc()
			logger.Warn("Job attempt failed, retry scheduled",
				zap.Int("attempt", attempts),
				zap.Time("next_attempt_at", next),
				zap.Error(cause))
			return ResultRetried, nil
		}
		cause = fmt.Errorf("retry budget exhausted after %d attempts: %w", attempts, cause)
	}

	if err := p.store.FailJob(ctx, job.ID, owner, cause.Error(), now); err != nil {
		return ResultError, fmt.Errorf("failed to mark job %s failed: %w", job.ID, err)
	}
	metrics.JobsFinished.WithLabelValues(string(job.Direction), string(queue.StatusFailed), "").Inc()
	logger.Error("Job failed, operator action required",
		zap.String("class", class.String()),
		zap.String("kind", kind),
		zap.Bool("alert", true),
		zap.Error(cause))
	return ResultFailed, nil
}
