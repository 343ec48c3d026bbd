// Package queue is the durable record of transfer jobs, the processed-id ledger and the
// watcher scan positions. It is the only place relayer state lives.
package queue

import (
	"context"
	"errors"
	"time"
)

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrLeaseHeld           = errors.New("job is leased by another worker or not due")
	ErrInvalidTransition   = errors.New("invalid job status transition")
	ErrScanPositionMissing = errors.New("scan position not found")
)

// Store is the persistence contract used by watchers, the scheduler and the operator surface.
// Every mutation of a processing job is conditioned on the caller's lease owner id.
type Store interface {
	// CreateJob inserts job unless a job with the same direction and source event key exists.
	CreateJob(ctx context.Context, job *Job) (bool, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, filter Filter) ([]*Job, error)
	// ListDueJobs returns pending jobs whose next attempt is due and processing jobs whose lease expired.
	ListDueJobs(ctx context.Context, now time.Time, limit int) ([]*Job, error)

	ClaimJob(ctx context.Context, id, owner string, now, leaseUntil time.Time) (*Job, error)
	ClaimForRescue(ctx context.Context, id, owner string, now, leaseUntil time.Time) (*Job, error)
	RecordSubmission(ctx context.Context, id, owner, txRef string, expiry uint64, now time.Time) error
	ClearSubmission(ctx context.Context, id, owner string, now time.Time) error
	CompleteJob(ctx context.Context, id, owner, destTxRef string, verifiedBy VerifiedBy, now time.Time) error
	RetryJob(ctx context.Context, id, owner string, attempts int, nextAttemptAt time.Time, lastErr string, now time.Time) error
	FailJob(ctx context.Context, id, owner, reason string, now time.Time) error
	// FailPending fails a pending job without it ever entering processing.
	FailPending(ctx context.Context, id, reason string, now time.Time) error
	// MarkFailed is the operator cancellation; it is refused while a live lease exists.
	MarkFailed(ctx context.Context, id, reason string, now time.Time) error

	LookupLedger(ctx context.Context, direction Direction, eventKey string) (*LedgerEntry, error)

	GetScanPosition(ctx context.Context, watcher string) (uint64, error)
	SetScanPosition(ctx context.Context, watcher string, position uint64, now time.Time) error

	Stats(ctx context.Context, now time.Time) (*Stats, error)
}
