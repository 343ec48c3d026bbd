package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type sqlStore struct {
	db *bun.DB
}

// NewStore creates a Store backed by a bun database (postgres or sqlite)
func NewStore(db *bun.DB) *sqlStore {
	return &sqlStore{db: db}
}

// ts normalises timestamps so both dialects compare them the same way
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (s *sqlStore) CreateJob(ctx context.Context, job *Job) (bool, error) {
	if err := checkStorable(job); err != nil {
		return false, err
	}
	dao := toJobDao(job)
	dao.CreatedAt = ts(dao.CreatedAt)
	dao.NextAttemptAt = ts(dao.NextAttemptAt)
	if dao.UpdatedAt.IsZero() {
		dao.UpdatedAt = dao.CreatedAt
	}
	dao.UpdatedAt = ts(dao.UpdatedAt)

	res, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to create job %s: %w", job.ID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows == 1, nil
}

func (s *sqlStore) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.getJob(ctx, s.db, id)
}

func (s *sqlStore) getJob(ctx context.Context, db bun.IDB, id string) (*Job, error) {
	dao := new(JobDao)
	err := db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return toJob(dao), nil
}

func (s *sqlStore) ListJobs(ctx context.Context, filter Filter) ([]*Job, error) {
	var daos []JobDao
	query := s.db.NewSelect().Model(&daos)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Direction != "" {
		query = query.Where("direction = ?", filter.Direction)
	}
	query = query.Order("created_at DESC", "id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return toJobs(daos), nil
}

// dueCondition selects pending jobs whose retry time has passed and processing
// jobs whose lease has expired.
func dueCondition(now time.Time) func(q *bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("status = ?", StatusPending).Where("next_attempt_at <= ?", now)
			}).
			WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("status = ?", StatusProcessing).
					Where("(lease_expires_at IS NULL OR lease_expires_at <= ?)", now)
			})
	}
}

func (s *sqlStore) ListDueJobs(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	var daos []JobDao
	query := s.db.NewSelect().
		Model(&daos).
		WhereGroup(" AND ", dueCondition(ts(now))).
		Order("created_at ASC", "id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list due jobs: %w", err)
	}
	return toJobs(daos), nil
}

func (s *sqlStore) ClaimJob(ctx context.Context, id, owner string, now, leaseUntil time.Time) (*Job, error) {
	now = ts(now)
	res, err := s.db.NewUpdate().
		Model((*JobDao)(nil)).
		Set("status = ?", StatusProcessing).
		Set("lease_owner = ?", owner).
		Set("lease_expires_at = ?", ts(leaseUntil)).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.
				WhereGroup(" OR ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
					return q.Where("status = ?", StatusPending).Where("next_attempt_at <= ?", now)
				}).
				WhereGroup(" OR ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
					return q.Where("status = ?", StatusProcessing).
						Where("(lease_expires_at IS NULL OR lease_expires_at <= ?)", now)
				})
		}).
		Exec(ctx)
	if err := s.checkUpdated(ctx, s.db, id, res, err, ErrLeaseHeld); err != nil {
		return nil, err
	}
	return s.GetJob(ctx, id)
}

func (s *sqlStore) ClaimForRescue(ctx context.Context, id, owner string, now, leaseUntil time.Time) (*Job, error) {
	now = ts(now)
	res, err := s.db.NewUpdate().
		Model((*JobDao)(nil)).
		Set("status = ?", StatusProcessing).
		Set("lease_owner = ?", owner).
		Set("lease_expires_at = ?", ts(leaseUntil)).
		Set("rescued_at = ?", now).
		Set("failed_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", StatusFailed).
		Exec(ctx)
	if err := s.checkUpdated(ctx, s.db, id, res, err, ErrInvalidTransition); err != nil {
		return nil, err
	}
	return s.GetJob(ctx, id)
}

// checkUpdated turns a zero-row conditional update into ErrJobNotFound or conflict.
func (s *sqlStore) checkUpdated(ctx context.Context, db bun.IDB, id string, res sql.Result, err error, conflict error) error {
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}
	if _, err := s.getJob(ctx, db, id); err != nil {
		return err
	}
	return conflict
}

// updateOwned applies set to a job only while owner holds its processing lease.
func (s *sqlStore) updateOwned(ctx context.Context, db bun.IDB, id, owner string, set func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	q := db.NewUpdate().
		Model((*JobDao)(nil)).
		Where("id = ?", id).
		Where("status = ?", StatusProcessing).
		Where("lease_owner = ?", owner)
	res, err := set(q).Exec(ctx)
	return s.checkUpdated(ctx, db, id, res, err, ErrLeaseHeld)
}

func (s *sqlStore) RecordSubmission(ctx context.Context, id, owner, txRef string, expiry uint64, now time.Time) error {
	return s.updateOwned(ctx, s.db, id, owner, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("submitted_tx_ref = ?", txRef).
			Set("submitted_expiry = ?", int64(expiry)).
			Set("updated_at = ?", ts(now))
	})
}

func (s *sqlStore) ClearSubmission(ctx context.Context, id, owner string, now time.Time) error {
	return s.updateOwned(ctx, s.db, id, owner, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("submitted_tx_ref = NULL").
			Set("submitted_expiry = 0").
			Set("updated_at = ?", ts(now))
	})
}

func (s *sqlStore) CompleteJob(ctx context.Context, id, owner, destTxRef string, verifiedBy VerifiedBy, now time.Time) error {
	now = ts(now)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		job, err := s.getJob(ctx, tx, id)
		if err != nil {
			return err
		}
		err = s.updateOwned(ctx, tx, id, owner, func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.
				Set("status = ?", StatusCompleted).
				Set("destination_tx_ref = ?", destTxRef).
				Set("verified_by = ?", verifiedBy).
				Set("completed_at = ?", now).
				Set("lease_owner = NULL").
				Set("lease_expires_at = NULL").
				Set("last_error = NULL").
				Set("updated_at = ?", now)
		})
		if err != nil {
			return err
		}

		_, err = tx.NewInsert().
			Model(&LedgerDao{
				Direction:        string(job.Direction),
				SourceEventKey:   job.SourceEventKey,
				JobID:            job.ID,
				DestinationTxRef: destTxRef,
				RecordedAt:       now,
			}).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to record processed event for job %s: %w", id, err)
		}
		return nil
	})
}

func (s *sqlStore) RetryJob(ctx context.Context, id, owner string, attempts int, nextAttemptAt time.Time, lastErr string, now time.Time) error {
	return s.updateOwned(ctx, s.db, id, owner, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("status = ?", StatusPending).
			Set("attempts = ?", attempts).
			Set("next_attempt_at = ?", ts(nextAttemptAt)).
			Set("last_error = ?", lastErr).
			Set("lease_owner = NULL").
			Set("lease_expires_at = NULL").
			Set("updated_at = ?", ts(now))
	})
}

func failSet(reason string, now time.Time) func(q *bun.UpdateQuery) *bun.UpdateQuery {
	return func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("status = ?", StatusFailed).
			Set("last_error = ?", reason).
			Set("failed_at = ?", now).
			Set("lease_owner = NULL").
			Set("lease_expires_at = NULL").
			Set("updated_at = ?", now)
	}
}

func (s *sqlStore) FailJob(ctx context.Context, id, owner, reason string, now time.Time) error {
	return s.updateOwned(ctx, s.db, id, owner, failSet(reason, ts(now)))
}

func (s *sqlStore) FailPending(ctx context.Context, id, reason string, now time.Time) error {
	q := s.db.NewUpdate().
		Model((*JobDao)(nil)).
		Where("id = ?", id).
		Where("status = ?", StatusPending)
	res, err := failSet(reason, ts(now))(q).Exec(ctx)
	return s.checkUpdated(ctx, s.db, id, res, err, ErrInvalidTransition)
}

func (s *sqlStore) MarkFailed(ctx context.Context, id, reason string, now time.Time) error {
	now = ts(now)
	q := s.db.NewUpdate().
		Model((*JobDao)(nil)).
		Where("id = ?", id).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.
				Where("status = ?", StatusPending).
				WhereGroup(" OR ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
					return q.Where("status = ?", StatusProcessing).
						Where("(lease_expires_at IS NULL OR lease_expires_at <= ?)", now)
				})
		})
	res, err := failSet(reason, now)(q).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrInvalidTransition
	}
	return ErrLeaseHeld
}

func (s *sqlStore) LookupLedger(ctx context.Context, direction Direction, eventKey string) (*LedgerEntry, error) {
	dao := new(LedgerDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("direction = ?", direction).
		Where("source_event_key = ?", eventKey).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up processed event %s/%s: %w", direction, eventKey, err)
	}
	return toLedgerEntry(dao), nil
}

func (s *sqlStore) GetScanPosition(ctx context.Context, watcher string) (uint64, error) {
	dao := new(ScanPositionDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("watcher = ?", watcher).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrScanPositionMissing
		}
		return 0, fmt.Errorf("failed to get scan position for %s: %w", watcher, err)
	}
	return uint64(dao.Position), nil
}

func (s *sqlStore) SetScanPosition(ctx context.Context, watcher string, position uint64, now time.Time) error {
	_, err := s.db.NewInsert().
		Model(&ScanPositionDao{
			Watcher:   watcher,
			Position:  int64(position),
			UpdatedAt: ts(now),
		}).
		On("CONFLICT (watcher) DO UPDATE").
		Set("position = EXCLUDED.position").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set scan position for %s: %w", watcher, err)
	}
	return nil
}

func (s *sqlStore) Stats(ctx context.Context, _ time.Time) (*Stats, error) {
	var rows []struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}
	err := s.db.NewSelect().
		Model((*JobDao)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	st := &Stats{Counts: make(map[Status]int, len(AllStatuses))}
	for _, status := range AllStatuses {
		st.Counts[status] = 0
	}
	for _, r := range rows {
		st.Counts[Status(r.Status)] = r.Count
	}

	oldest, err := s.firstPending(ctx, "created_at")
	if err != nil {
		return nil, err
	}
	if oldest != nil {
		t := oldest.CreatedAt.UTC()
		st.OldestPendingAt = &t
	}
	next, err := s.firstPending(ctx, "next_attempt_at")
	if err != nil {
		return nil, err
	}
	if next != nil {
		t := next.NextAttemptAt.UTC()
		st.NextRetryAt = &t
	}
	return st, nil
}

func (s *sqlStore) firstPending(ctx context.Context, orderBy string) (*JobDao, error) {
	dao := new(JobDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("status = ?", StatusPending).
		OrderExpr("? ASC", bun.Ident(orderBy)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}
	return dao, nil
}

func toJobs(daos []JobDao) []*Job {
	jobs := make([]*Job, len(daos))
	for i := range daos {
		jobs[i] = toJob(&daos[i])
	}
	return jobs
}
