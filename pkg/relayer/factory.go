package relayer

import (
	"fmt"
	"math/big"
	"time"

	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

// JobFactory turns events into jobs. Amounts are converted to the executing chain's
// precision here and never again.
type JobFactory struct {
	direction    queue.Direction
	fromDecimals int32
	toDecimals   int32
	bounds       Bounds
	target       Target
}

// NewJobFactory creates a factory for events whose actions run on target
func NewJobFactory(target Target, fromDecimals, toDecimals int32, bounds Bounds) *JobFactory {
	return &JobFactory{
		direction:    target.Direction(),
		fromDecimals: fromDecimals,
		toDecimals:   toDecimals,
		bounds:       bounds,
		target:       target,
	}
}

// Build creates the job for ev. Jobs that can never succeed are created failed, and the
// recipient is stored in sanitized form so a hostile value cannot block the insert.
func (f *JobFactory) Build(ev *Event, now time.Time) *queue.Job {
	job := &queue.Job{
		ID:             queue.JobID(f.direction, ev.Key),
		Direction:      f.direction,
		SourceTxHash:   ev.TxRef,
		SourceEventKey: ev.Key,
		SourcePosition: ev.Position,
		Sender:         ev.Sender,
		Recipient:      queue.SanitizeRecipient(ev.Recipient),
		Status:         queue.StatusPending,
		NextAttemptAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	raw := ev.Amount
	if raw == nil {
		raw = new(big.Int)
	}
	job.SourceAmount = raw.String()
	converted, _ := ConvertAmount(raw, f.fromDecimals, f.toDecimals)
	job.Amount = converted.String()

	err := f.validate(ev.Recipient, raw, converted)
	if job.Recipient != ev.Recipient {
		err = fmt.Errorf("%w: %d bytes that are not a printable address", errInvalidRecipient, len(ev.Recipient))
	}
	if err != nil {
		job.Status = queue.StatusFailed
		job.LastError = err.Error()
		job.FailedAt = &now
	}
	return job
}

// Dust returns the part of amount, in source units, that conversion drops
func (f *JobFactory) Dust(amount *big.Int) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	_, dust := ConvertAmount(amount, f.fromDecimals, f.toDecimals)
	return dust
}

// Validate re-checks an existing job before it is claimed
func (f *JobFactory) Validate(job *queue.Job) error {
	raw, ok := new(big.Int).SetString(job.SourceAmount, 10)
	if !ok {
		return fmt.Errorf("%w: source amount %q", errInvalidAmount, job.SourceAmount)
	}
	amount, ok := new(big.Int).SetString(job.Amount, 10)
	if !ok {
		return fmt.Errorf("%w: %q", errInvalidAmount, job.Amount)
	}
	return f.validate(job.Recipient, raw, amount)
}

func (f *JobFactory) validate(recipient string, raw, converted *big.Int) error {
	if err := f.target.ValidateRecipient(recipient); err != nil {
		return fmt.Errorf("%w %q: %v", errInvalidRecipient, recipient, err)
	}
	if converted.Sign() <= 0 {
		return fmt.Errorf("%w: %s converts to zero", errInvalidAmount, raw)
	}
	if err := f.bounds.Check(raw, f.fromDecimals); err != nil {
		return fmt.Errorf("%w: %v", errInvalidAmount, err)
	}
	return nil
}
