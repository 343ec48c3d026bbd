package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

type ledgerKey struct {
	direction Direction
	eventKey  string
}

// MemoryStore is an in-process Store. It keeps the same transition rules as the SQL store
// and is used by tests and by dry-run audits.
type MemoryStore struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	byEvent   map[ledgerKey]string
	ledger    map[ledgerKey]*LedgerEntry
	positions map[string]uint64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*Job),
		byEvent:   make(map[ledgerKey]string),
		ledger:    make(map[ledgerKey]*LedgerEntry),
		positions: make(map[string]uint64),
	}
}

func (s *MemoryStore) CreateJob(_ context.Context, job *Job) (bool, error) {
	if err := checkStorable(job); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ledgerKey{job.Direction, job.SourceEventKey}
	if _, ok := s.byEvent[key]; ok {
		return false, nil
	}
	if _, ok := s.jobs[job.ID]; ok {
		return false, nil
	}
	c := job.Clone()
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	s.jobs[c.ID] = c
	s.byEvent[key] = c.ID
	return true, nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.Clone(), nil
}

func (s *MemoryStore) ListJobs(_ context.Context, filter Filter) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Job
	for _, j := range s.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.Direction != "" && j.Direction != filter.Direction {
			continue
		}
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ListDueJobs(_ context.Context, now time.Time, limit int) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Job
	for _, j := range s.jobs {
		if isDue(j, now) {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func isDue(j *Job, now time.Time) bool {
	switch j.Status {
	case StatusPending:
		return !j.NextAttemptAt.After(now)
	case StatusProcessing:
		return !j.LeaseLive(now)
	default:
		return false
	}
}

func (s *MemoryStore) ClaimJob(_ context.Context, id, owner string, now, leaseUntil time.Time) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if !isDue(j, now) {
		return nil, ErrLeaseHeld
	}
	lease := leaseUntil
	j.Status = StatusProcessing
	j.LeaseOwner = owner
	j.LeaseExpiresAt = &lease
	j.UpdatedAt = now
	return j.Clone(), nil
}

func (s *MemoryStore) ClaimForRescue(_ context.Context, id, owner string, now, leaseUntil time.Time) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if j.Status != StatusFailed {
		return nil, ErrInvalidTransition
	}
	lease := leaseUntil
	rescued := now
	j.Status = StatusProcessing
	j.LeaseOwner = owner
	j.LeaseExpiresAt = &lease
	j.RescuedAt = &rescued
	j.FailedAt = nil
	j.UpdatedAt = now
	return j.Clone(), nil
}

// owned returns the job if owner holds it in processing
func (s *MemoryStore) owned(id, owner string) (*Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if j.Status != StatusProcessing || j.LeaseOwner != owner {
		return nil, ErrLeaseHeld
	}
	return j, nil
}

func (s *MemoryStore) RecordSubmission(_ context.Context, id, owner, txRef string, expiry uint64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.owned(id, owner)
	if err != nil {
		return err
	}
	j.SubmittedTxRef = txRef
	j.SubmittedExpiry = expiry
	j.UpdatedAt = now
	return nil
}

func (s *MemoryStore) ClearSubmission(_ context.Context, id, owner string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.owned(id, owner)
	if err != nil {
		return err
	}
	j.SubmittedTxRef = ""
	j.SubmittedExpiry = 0
	j.UpdatedAt = now
	return nil
}

func (s *MemoryStore) CompleteJob(_ context.Context, id, owner, destTxRef string, verifiedBy VerifiedBy, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.owned(id, owner)
	if err != nil {
		return err
	}
	completed := now
	j.Status = StatusCompleted
	j.DestinationTxRef = destTxRef
	j.VerifiedBy = verifiedBy
	j.CompletedAt = &completed
	j.LeaseOwner = ""
	j.LeaseExpiresAt = nil
	j.LastError = ""
	j.UpdatedAt = now

	key := ledgerKey{j.Direction, j.SourceEventKey}
	if _, ok := s.ledger[key]; !ok {
		s.ledger[key] = &LedgerEntry{
			Direction:        j.Direction,
			SourceEventKey:   j.SourceEventKey,
			JobID:            j.ID,
			DestinationTxRef: destTxRef,
			RecordedAt:       now,
		}
	}
	return nil
}

func (s *MemoryStore) RetryJob(_ context.Context, id, owner string, attempts int, nextAttemptAt time.Time, lastErr string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.owned(id, owner)
	if err != nil {
		return err
	}
	j.Status = StatusPending
	j.Attempts = attempts
	j.NextAttemptAt = nextAttemptAt
	j.LastError = lastErr
	j.LeaseOwner = ""
	j.LeaseExpiresAt = nil
	j.UpdatedAt = now
	return nil
}

func (s *MemoryStore) FailJob(_ context.Context, id, owner, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.owned(id, owner)
	if err != nil {
		return err
	}
	fail(j, reason, now)
	return nil
}

func (s *MemoryStore) FailPending(_ context.Context, id, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status != StatusPending {
		return ErrInvalidTransition
	}
	fail(j, reason, now)
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status.Terminal() {
		return ErrInvalidTransition
	}
	if j.LeaseLive(now) {
		return ErrLeaseHeld
	}
	fail(j, reason, now)
	return nil
}

func fail(j *Job, reason string, now time.Time) {
	failed := now
	j.Status = StatusFailed
	j.LastError = reason
	j.FailedAt = &failed
	j.LeaseOwner = ""
	j.LeaseExpiresAt = nil
	j.UpdatedAt = now
}

func (s *MemoryStore) LookupLedger(_ context.Context, direction Direction, eventKey string) (*LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.ledger[ledgerKey{direction, eventKey}]
	if !ok {
		return nil, nil
	}
	c := *e
	return &c, nil
}

func (s *MemoryStore) GetScanPosition(_ context.Context, watcher string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[watcher]
	if !ok {
		return 0, ErrScanPositionMissing
	}
	return pos, nil
}

func (s *MemoryStore) SetScanPosition(_ context.Context, watcher string, position uint64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[watcher] = position
	return nil
}

func (s *MemoryStore) Stats(_ context.Context, _ time.Time) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Stats{Counts: make(map[Status]int, len(AllStatuses))}
	for _, status := range AllStatuses {
		st.Counts[status] = 0
	}
	for _, j := range s.jobs {
		st.Counts[j.Status]++
		if j.Status != StatusPending {
			continue
		}
		if st.OldestPendingAt == nil || j.CreatedAt.Before(*st.OldestPendingAt) {
			t := j.CreatedAt
			st.OldestPendingAt = &t
		}
		if st.NextRetryAt == nil || j.NextAttemptAt.Before(*st.NextRetryAt) {
			t := j.NextAttemptAt
			st.NextRetryAt = &t
		}
	}
	return st, nil
}
