// Package operator exposes the relayer's read-only stats and the rescue actions for failed
// jobs to operators.
package operator

import (
	"context"
	"errors"

	apperrors "github.com/chainsafe/bridge-relayer/pkg/app/errors"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
	"github.com/chainsafe/bridge-relayer/pkg/relayer"
)

const (
	// DefaultListLimit applies when a listing does not ask for a limit
	DefaultListLimit = 100
	// MaxListLimit caps a single listing
	MaxListLimit = 1000
)

//go:generate mockery --name Service --output ./mocks --outpkg mocks --with-expecter

// Service is the operator surface of a running relayer
type Service interface {
	Stats(ctx context.Context) (*relayer.Snapshot, error)
	ListJobs(ctx context.Context, filter queue.Filter) ([]*queue.Job, error)
	GetJob(ctx context.Context, id string) (*queue.Job, error)
	Reverify(ctx context.Context, id string) (*relayer.RescueResult, error)
	ForceExecute(ctx context.Context, id string) (*relayer.RescueResult, error)
	MarkFailed(ctx context.Context, id, reason string) (*queue.Job, error)
}

// Snapshotter produces the monitor view
type Snapshotter interface {
	Snapshot(ctx context.Context) (*relayer.Snapshot, error)
}

// JobReader is the read side of the queue used by the listing endpoints
type JobReader interface {
	GetJob(ctx context.Context, id string) (*queue.Job, error)
	ListJobs(ctx context.Context, filter queue.Filter) ([]*queue.Job, error)
}

// Rescuer performs the rescue actions
type Rescuer interface {
	Reverify(ctx context.Context, id string) (*relayer.RescueResult, error)
	ForceExecute(ctx context.Context, id string) (*relayer.RescueResult, error)
	MarkFailed(ctx context.Context, id, reason string) (*queue.Job, error)
}

type service struct {
	monitor Snapshotter
	jobs    JobReader
	rescuer Rescuer
}

// NewService creates the operator service
func NewService(monitor Snapshotter, jobs JobReader, rescuer Rescuer) Service {
	return &service{
		monitor: monitor,
		jobs:    jobs,
		rescuer: rescuer,
	}
}

// NewEngineService wires the service to a running engine
func NewEngineService(e *relayer.Engine) Service {
	return NewService(e.Monitor(), e.Store(), e.Rescuer())
}

func (s *service) Stats(ctx context.Context) (*relayer.Snapshot, error) {
	snap, err := s.monitor.Snapshot(ctx)
	if err != nil {
		return nil, apperrors.DependencyError(err, "failed to load stats")
	}
	return snap, nil
}

func (s *service) ListJobs(ctx context.Context, filter queue.Filter) ([]*queue.Job, error) {
	if filter.Status != "" && !validStatus(filter.Status) {
		return nil, apperrors.BadRequestError(nil, "unknown status "+string(filter.Status))
	}
	if filter.Direction != "" && !filter.Direction.Valid() {
		return nil, apperrors.BadRequestError(nil, "unknown direction "+string(filter.Direction))
	}
	switch {
	case filter.Limit < 0 || filter.Limit > MaxListLimit:
		return nil, apperrors.BadRequestError(nil, "limit out of range")
	case filter.Limit == 0:
		filter.Limit = DefaultListLimit
	}

	jobs, err := s.jobs.ListJobs(ctx, filter)
	if err != nil {
		return nil, apperrors.DependencyError(err, "failed to list jobs")
	}
	if jobs == nil {
		jobs = []*queue.Job{}
	}
	return jobs, nil
}

func (s *service) GetJob(ctx context.Context, id string) (*queue.Job, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return job, nil
}

func (s *service) Reverify(ctx context.Context, id string) (*relayer.RescueResult, error) {
	res, err := s.rescuer.Reverify(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

func (s *service) ForceExecute(ctx context.Context, id string) (*relayer.RescueResult, error) {
	res, err := s.rescuer.ForceExecute(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

func (s *service) MarkFailed(ctx context.Context, id, reason string) (*queue.Job, error) {
	job, err := s.rescuer.MarkFailed(ctx, id, reason)
	if err != nil {
		return nil, mapError(err)
	}
	return job, nil
}

func validStatus(st queue.Status) bool {
	for _, s := range queue.AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// mapError turns store and rescue errors into service errors. Anything unrecognised
// came from a chain endpoint or the database.
func mapError(err error) error {
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		return apperrors.ResourceNotFoundError(err, "job not found")
	case errors.Is(err, relayer.ErrNotFailed):
		return apperrors.ConflictError(err, "job is not failed")
	case errors.Is(err, queue.ErrLeaseHeld):
		return apperrors.ConflictError(err, "job is leased by a worker")
	case errors.Is(err, queue.ErrInvalidTransition):
		return apperrors.ConflictError(err, "job is already in a terminal state")
	default:
		return apperrors.DependencyError(err, "operation failed")
	}
}
