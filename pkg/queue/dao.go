package queue

import (
	"time"

	"github.com/uptrace/bun"
)

// JobDao maps directly to the 'transfer_jobs' table.
type JobDao struct {
	bun.BaseModel    `bun:"table:transfer_jobs"`
	ID               string     `bun:"id,pk,type:varchar(160)"`
	Direction        string     `bun:"direction,notnull,unique:uq_transfer_jobs_event,type:varchar(32)"`
	SourceTxHash     string     `bun:"source_tx_hash,notnull,type:varchar(128)"`
	SourceEventKey   string     `bun:"source_event_key,notnull,unique:uq_transfer_jobs_event,type:varchar(128)"`
	SourcePosition   int64      `bun:"source_position,notnull"`
	SourceAmount     string     `bun:"source_amount,notnull,type:varchar(80)"`
	Amount           string     `bun:"amount,notnull,type:varchar(80)"`
	Sender           string     `bun:"sender,notnull,type:varchar(128)"`
	Recipient        string     `bun:"recipient,notnull,type:text"`
	Status           string     `bun:"status,notnull,type:varchar(20)"`
	Attempts         int        `bun:"attempts,notnull,default:0"`
	NextAttemptAt    time.Time  `bun:"next_attempt_at,notnull"`
	LastError        *string    `bun:"last_error,type:text"`
	LeaseOwner       *string    `bun:"lease_owner,type:varchar(64)"`
	LeaseExpiresAt   *time.Time `bun:"lease_expires_at"`
	SubmittedTxRef   *string    `bun:"submitted_tx_ref,type:varchar(128)"`
	SubmittedExpiry  int64      `bun:"submitted_expiry,notnull,default:0"`
	DestinationTxRef *string    `bun:"destination_tx_ref,type:varchar(128)"`
	VerifiedBy       *string    `bun:"verified_by,type:varchar(20)"`
	CreatedAt        time.Time  `bun:"created_at,notnull"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull"`
	CompletedAt      *time.Time `bun:"completed_at"`
	FailedAt         *time.Time `bun:"failed_at"`
	RescuedAt        *time.Time `bun:"rescued_at"`
}

// LedgerDao maps directly to the 'processed_events' table.
type LedgerDao struct {
	bun.BaseModel    `bun:"table:processed_events"`
	Direction        string    `bun:"direction,pk,type:varchar(32)"`
	SourceEventKey   string    `bun:"source_event_key,pk,type:varchar(128)"`
	JobID            string    `bun:"job_id,notnull,type:varchar(160)"`
	DestinationTxRef string    `bun:"destination_tx_ref,notnull,type:varchar(128)"`
	RecordedAt       time.Time `bun:"recorded_at,notnull"`
}

// ScanPositionDao maps directly to the 'scan_positions' table.
type ScanPositionDao struct {
	bun.BaseModel `bun:"table:scan_positions"`
	Watcher       string    `bun:"watcher,pk,type:varchar(64)"`
	Position      int64     `bun:"position,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// toJobDao converts a Job to JobDao.
func toJobDao(j *Job) *JobDao {
	return &JobDao{
		ID:               j.ID,
		Direction:        string(j.Direction),
		SourceTxHash:     j.SourceTxHash,
		SourceEventKey:   j.SourceEventKey,
		SourcePosition:   int64(j.SourcePosition),
		SourceAmount:     j.SourceAmount,
		Amount:           j.Amount,
		Sender:           j.Sender,
		Recipient:        j.Recipient,
		Status:           string(j.Status),
		Attempts:         j.Attempts,
		NextAttemptAt:    j.NextAttemptAt.UTC(),
		LastError:        strPtr(j.LastError),
		LeaseOwner:       strPtr(j.LeaseOwner),
		LeaseExpiresAt:   utcPtr(j.LeaseExpiresAt),
		SubmittedTxRef:   strPtr(j.SubmittedTxRef),
		SubmittedExpiry:  int64(j.SubmittedExpiry),
		DestinationTxRef: strPtr(j.DestinationTxRef),
		VerifiedBy:       strPtr(string(j.VerifiedBy)),
		CreatedAt:        j.CreatedAt.UTC(),
		UpdatedAt:        j.UpdatedAt.UTC(),
		CompletedAt:      utcPtr(j.CompletedAt),
		FailedAt:         utcPtr(j.FailedAt),
		RescuedAt:        utcPtr(j.RescuedAt),
	}
}

// toJob converts a JobDao to Job.
func toJob(dao *JobDao) *Job {
	return &Job{
		ID:               dao.ID,
		Direction:        Direction(dao.Direction),
		SourceTxHash:     dao.SourceTxHash,
		SourceEventKey:   dao.SourceEventKey,
		SourcePosition:   uint64(dao.SourcePosition),
		SourceAmount:     dao.SourceAmount,
		Amount:           dao.Amount,
		Sender:           dao.Sender,
		Recipient:        dao.Recipient,
		Status:           Status(dao.Status),
		Attempts:         dao.Attempts,
		NextAttemptAt:    dao.NextAttemptAt.UTC(),
		LastError:        strVal(dao.LastError),
		LeaseOwner:       strVal(dao.LeaseOwner),
		LeaseExpiresAt:   utcPtr(dao.LeaseExpiresAt),
		SubmittedTxRef:   strVal(dao.SubmittedTxRef),
		SubmittedExpiry:  uint64(dao.SubmittedExpiry),
		DestinationTxRef: strVal(dao.DestinationTxRef),
		VerifiedBy:       VerifiedBy(strVal(dao.VerifiedBy)),
		CreatedAt:        dao.CreatedAt.UTC(),
		UpdatedAt:        dao.UpdatedAt.UTC(),
		CompletedAt:      utcPtr(dao.CompletedAt),
		FailedAt:         utcPtr(dao.FailedAt),
		RescuedAt:        utcPtr(dao.RescuedAt),
	}
}

func toLedgerEntry(dao *LedgerDao) *LedgerEntry {
	return &LedgerEntry{
		Direction:        Direction(dao.Direction),
		SourceEventKey:   dao.SourceEventKey,
		JobID:            dao.JobID,
		DestinationTxRef: dao.DestinationTxRef,
		RecordedAt:       dao.RecordedAt.UTC(),
	}
}
