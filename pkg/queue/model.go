package queue

import (
	"fmt"
	"time"
)

// Direction indicates which half of the bridge a job settles
type Direction string

const (
	DirectionSourceToDestination Direction = "source_to_destination"
	DirectionDestinationToSource Direction = "destination_to_source"
)

// Valid reports whether d is a known direction
func (d Direction) Valid() bool {
	return d == DirectionSourceToDestination || d == DirectionDestinationToSource
}

// Short returns the compact form used in job ids
func (d Direction) Short() string {
	switch d {
	case DirectionSourceToDestination:
		return "s2d"
	case DirectionDestinationToSource:
		return "d2s"
	default:
		return string(d)
	}
}

// ParseDirection accepts either the long or the short form
func ParseDirection(s string) (Direction, error) {
	switch s {
	case string(DirectionSourceToDestination), "s2d":
		return DirectionSourceToDestination, nil
	case string(DirectionDestinationToSource), "d2s":
		return DirectionDestinationToSource, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Status represents the current state of a transfer job
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// Terminal reports whether no automatic transition leaves s
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// VerifiedBy records what established that a job's destination action exists
type VerifiedBy string

const (
	VerifiedByExecutor  VerifiedBy = "executor"
	VerifiedByLedger    VerifiedBy = "ledger"
	VerifiedByChain     VerifiedBy = "chain"
	VerifiedByHeuristic VerifiedBy = "heuristic"
)

// Job is a single cross-chain transfer that the relayer has to settle exactly once.
// Amount is expressed in the smallest unit of the chain the action is executed on and
// is fixed when the job is created.
type Job struct {
	ID             string    `json:"id"`
	Direction      Direction `json:"direction"`
	SourceTxHash   string    `json:"source_tx_hash"`
	SourceEventKey string    `json:"source_event_key"`
	SourcePosition uint64    `json:"source_position"`
	SourceAmount   string    `json:"source_amount"`
	Amount         string    `json:"amount"`
	Sender         string    `json:"sender"`
	Recipient      string    `json:"recipient"`
	Status         Status    `json:"status"`

	Attempts      int       `json:"attempts"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	LastError     string    `json:"last_error,omitempty"`

	LeaseOwner     string     `json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`

	SubmittedTxRef  string `json:"submitted_tx_ref,omitempty"`
	SubmittedExpiry uint64 `json:"submitted_expiry,omitempty"`

	DestinationTxRef string     `json:"destination_tx_ref,omitempty"`
	VerifiedBy       VerifiedBy `json:"verified_by,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
	RescuedAt   *time.Time `json:"rescued_at,omitempty"`
}

// JobID derives the stable job identifier for a source event
func JobID(direction Direction, eventKey string) string {
	return direction.Short() + ":" + eventKey
}

// Clone returns a deep copy of the job
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.LeaseExpiresAt = cloneTime(j.LeaseExpiresAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	c.FailedAt = cloneTime(j.FailedAt)
	c.RescuedAt = cloneTime(j.RescuedAt)
	return &c
}

// LeaseLive reports whether a processing lease is still held at now
func (j *Job) LeaseLive(now time.Time) bool {
	return j.Status == StatusProcessing && j.LeaseExpiresAt != nil && j.LeaseExpiresAt.After(now)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// LedgerEntry marks a source event as fully handled by this relayer
type LedgerEntry struct {
	Direction        Direction `json:"direction"`
	SourceEventKey   string    `json:"source_event_key"`
	JobID            string    `json:"job_id"`
	DestinationTxRef string    `json:"destination_tx_ref"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// Filter narrows ListJobs results. Zero values mean "any".
type Filter struct {
	Status    Status
	Direction Direction
	Limit     int
}

// Stats is an aggregate view of the queue
type Stats struct {
	Counts          map[Status]int `json:"counts"`
	OldestPendingAt *time.Time     `json:"oldest_pending_at,omitempty"`
	NextRetryAt     *time.Time     `json:"next_retry_at,omitempty"`
}
