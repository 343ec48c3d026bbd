package relayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/bridge-relayer/internal/metrics"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

// Watcher turns confirmed events of one source into jobs and remembers how far it scanned
type Watcher struct {
	source  EventSource
	factory *JobFactory
	store   queue.Store
	logger  *zap.Logger
	now     func() time.Time
}

// NewWatcher creates a watcher for source
func NewWatcher(source EventSource, factory *JobFactory, store queue.Store, logger *zap.Logger) *Watcher {
	return &Watcher{
		source:  source,
		factory: factory,
		store:   store,
		logger:  logger.With(zap.String("watcher", source.Name())),
		now:     time.Now,
	}
}

// Name returns the source name, also the scan position key
func (w *Watcher) Name() string {
	return w.source.Name()
}

// Direction returns the direction of the jobs this watcher creates
func (w *Watcher) Direction() queue.Direction {
	return w.source.Direction()
}

// Position returns the last fully scanned block or slot
func (w *Watcher) Position(ctx context.Context) (uint64, error) {
	pos, err := w.store.GetScanPosition(ctx, w.source.Name())
	if errors.Is(err, queue.ErrScanPositionMissing) {
		if start := w.source.StartPosition(); start > 0 {
			return start - 1, nil
		}
		return 0, nil
	}
	return pos, err
}

// Poll scans everything between the stored position and the confirmed head. The position
// only moves after every job in a chunk has been stored. It returns the number of new jobs.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	last, err := w.Position(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load scan position: %w", err)
	}
	head, err := w.source.Head(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get head: %w", err)
	}
	depth := w.source.ConfirmationDepth()
	if head < depth {
		return 0, nil
	}
	safe := head - depth

	created := 0
	for last < safe {
		to := safe
		if span := w.source.MaxRange(); span > 0 && to-last > span {
			to = last + span
		}

		events, err := w.source.FetchEvents(ctx, last+1, to)
		if err != nil {
			return created, fmt.Errorf("failed to fetch events [%d, %d]: %w", last+1, to, err)
		}
		n, err := w.ingest(ctx, events)
		created += n
		if err != nil {
			return created, err
		}

		if err := w.store.SetScanPosition(ctx, w.source.Name(), to, w.now()); err != nil {
			return created, fmt.Errorf("failed to save scan position: %w", err)
		}
		metrics.LastScannedPosition.WithLabelValues(w.source.Name()).Set(float64(to))
		w.logger.Debug("Scanned range",
			zap.Uint64("from", last+1),
			zap.Uint64("to", to),
			zap.Int("events", len(events)))
		last = to
	}
	return created, nil
}

// ScanRange returns the events in [from, to] without creating jobs or moving the position
func (w *Watcher) ScanRange(ctx context.Context, from, to uint64) ([]*Event, error) {
	if to < from {
		return nil, fmt.Errorf("invalid range [%d, %d]", from, to)
	}
	var all []*Event
	for start := from; ; {
		end := to
		if span := w.source.MaxRange(); span > 0 && end-start >= span {
			end = start + span - 1
		}
		events, err := w.source.FetchEvents(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch events [%d, %d]: %w", start, end, err)
		}
		all = append(all, events...)
		if end == to {
			return all, nil
		}
		start = end + 1
	}
}

func (w *Watcher) ingest(ctx context.Context, events []*Event) (int, error) {
	created := 0
	for _, ev := range events {
		metrics.EventsDetected.WithLabelValues(w.source.Name()).Inc()

		job := w.factory.Build(ev, w.now().UTC())
		ok, err := w.store.CreateJob(ctx, job)
		if err != nil {
			return created, fmt.Errorf("failed to create job %s: %w", job.ID, err)
		}
		if !ok {
			w.logger.Debug("Job already exists", zap.String("job_id", job.ID))
			continue
		}
		created++
		metrics.JobsCreated.WithLabelValues(string(job.Direction), string(job.Status)).Inc()

		fields := []zap.Field{
			zap.String("job_id", job.ID),
			zap.String("source_ref", job.SourceTxHash),
			zap.String("amount", job.Amount),
			zap.String("recipient", job.Recipient),
		}
		if job.Status == queue.StatusFailed {
			w.logger.Error("Job rejected at creation",
				append(fields, zap.String("error", job.LastError), zap.Bool("alert", true))...)
			metrics.JobsFinished.WithLabelValues(string(job.Direction), string(job.Status), "").Inc()
			continue
		}
		if dust := w.factory.Dust(ev.Amount); dust.Sign() > 0 {
			w.logger.Warn("Job created, sub-unit amount not bridged",
				append(fields, zap.String("dust", dust.String()))...)
			continue
		}
		w.logger.Info("Job created", fields...)
	}
	return created, nil
}
