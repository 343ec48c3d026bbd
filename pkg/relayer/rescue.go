package relayer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

// RescueResult reports the outcome of an operator action on a failed job
type RescueResult struct {
	Job          *queue.Job    `json:"job"`
	Verification *Verification `json:"verification,omitempty"`
	Result       string        `json:"result"`
}

// Rescuer implements the operator actions on stuck jobs. They bypass the schedule but not
// reconciliation, so at-most-once still holds.
type Rescuer struct {
	store      queue.Store
	reconciler *Reconciler
	pipeline   *Pipeline
	owner      string
	lease      time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewRescuer creates a rescuer that leases jobs as owner
func NewRescuer(store queue.Store, reconciler *Reconciler, pipeline *Pipeline, owner string, lease time.Duration, logger *zap.Logger) *Rescuer {
	return &Rescuer{
		store:      store,
		reconciler: reconciler,
		pipeline:   pipeline,
		owner:      owner,
		lease:      lease,
		logger:     logger,
		now:        time.Now,
	}
}

// Reverify runs reconciliation for a failed job and completes it when the destination
// action is found. Otherwise the job stays failed.
func (r *Rescuer) Reverify(ctx context.Context, id string) (*RescueResult, error) {
	job, err := r.failedJob(ctx, id)
	if err != nil {
		return nil, err
	}

	v, err := r.reconciler.Verify(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("reconciliation failed: %w", err)
	}
	r.logger.Info("Operator reverify",
		zap.String("job_id", id),
		zap.String("outcome", string(v.Outcome)),
		zap.Float64("confidence", v.Confidence))

	if !v.Satisfied() {
		return &RescueResult{Job: job, Verification: &v, Result: ResultSkipped.String()}, nil
	}

	ctx, cancel := r.detach(ctx)
	defer cancel()

	now := r.now()
	if _, err := r.store.ClaimForRescue(ctx, id, r.owner, now, now.Add(r.lease)); err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if err := r.store.CompleteJob(ctx, id, r.owner, v.TxRef, v.VerifiedBy(), now); err != nil {
		return nil, fmt.Errorf("failed to complete job: %w", err)
	}
	job, err = r.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RescueResult{Job: job, Verification: &v, Result: ResultCompleted.String()}, nil
}

// ForceExecute runs a failed job through the normal pipeline once. A failure leaves it
// failed with the new error. The run is not tied to ctx: a caller that stops waiting
// cannot leave the job leased mid-execution.
func (r *Rescuer) ForceExecute(ctx context.Context, id string) (*RescueResult, error) {
	if _, err := r.failedJob(ctx, id); err != nil {
		return nil, err
	}

	ctx, cancel := r.detach(ctx)
	defer cancel()

	now := r.now()
	claimed, err := r.store.ClaimForRescue(ctx, id, r.owner, now, now.Add(r.lease))
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	r.logger.Warn("Operator force execute", zap.String("job_id", id))

	res, err := r.pipeline.Run(ctx, claimed, r.owner, true)
	if err != nil {
		return nil, err
	}
	job, err := r.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RescueResult{Job: job, Result: res.String()}, nil
}

// MarkFailed cancels a job that is not currently leased
func (r *Rescuer) MarkFailed(ctx context.Context, id, reason string) (*queue.Job, error) {
	if reason == "" {
		reason = "cancelled by operator"
	}
	if err := r.store.MarkFailed(ctx, id, reason, r.now()); err != nil {
		return nil, err
	}
	r.logger.Warn("Operator marked job failed", zap.String("job_id", id), zap.String("reason", reason))
	return r.store.GetJob(ctx, id)
}

// detach returns a context that survives cancellation of ctx but ends with the lease
func (r *Rescuer) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.lease)
}

func (r *Rescuer) failedJob(ctx context.Context, id string) (*queue.Job, error) {
	job, err := r.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != queue.StatusFailed {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotFailed, id, job.Status)
	}
	return job, nil
}
