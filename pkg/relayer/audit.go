package relayer

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

// Audit flags
const (
	FlagNoJob               = "no_job"
	FlagMissingEvidence     = "completed_without_chain_evidence"
	FlagFailedWithEvidence  = "failed_but_settled"
	FlagPendingWithEvidence = "pending_but_settled"
)

// AuditEntry describes one source event and what the relayer knows about it
type AuditEntry struct {
	EventKey   string       `json:"event_key"`
	JobID      string       `json:"job_id"`
	SourceRef  string       `json:"source_ref"`
	Position   uint64       `json:"position"`
	Amount     string       `json:"amount"`
	Recipient  string       `json:"recipient"`
	JobStatus  queue.Status `json:"job_status,omitempty"`
	InLedger   bool         `json:"in_ledger"`
	Outcome    Outcome      `json:"outcome,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
	Evidence   string       `json:"evidence,omitempty"`
	Flags      []string     `json:"flags,omitempty"`
}

// AuditReport is the result of a one-shot audit over a range
type AuditReport struct {
	Direction queue.Direction `json:"direction"`
	From      uint64          `json:"from"`
	To        uint64          `json:"to"`
	Entries   []*AuditEntry   `json:"entries"`
	Flagged   int             `json:"flagged"`
}

// Auditor compares source events with jobs, the ledger and destination chain state
type Auditor struct {
	store      queue.Store
	watchers   map[queue.Direction]*Watcher
	reconciler *Reconciler
}

// NewAuditor creates an auditor
func NewAuditor(store queue.Store, watchers []*Watcher, reconciler *Reconciler) *Auditor {
	byDir := make(map[queue.Direction]*Watcher, len(watchers))
	for _, w := range watchers {
		byDir[w.Direction()] = w
	}
	return &Auditor{store: store, watchers: byDir, reconciler: reconciler}
}

// Audit scans [from, to] of the direction's source chain. Nothing is written.
func (a *Auditor) Audit(ctx context.Context, direction queue.Direction, from, to uint64) (*AuditReport, error) {
	w, ok := a.watchers[direction]
	if !ok {
		return nil, fmt.Errorf("no watcher for direction %s", direction)
	}
	events, err := w.ScanRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{Direction: direction, From: from, To: to}
	for _, ev := range events {
		entry, err := a.inspect(ctx, direction, ev)
		if err != nil {
			return nil, err
		}
		if len(entry.Flags) > 0 {
			report.Flagged++
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}

func (a *Auditor) inspect(ctx context.Context, direction queue.Direction, ev *Event) (*AuditEntry, error) {
	entry := &AuditEntry{
		EventKey:  ev.Key,
		JobID:     queue.JobID(direction, ev.Key),
		SourceRef: ev.TxRef,
		Position:  ev.Position,
		Recipient: ev.Recipient,
	}
	if ev.Amount != nil {
		entry.Amount = ev.Amount.String()
	}

	ledger, err := a.store.LookupLedger(ctx, direction, ev.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up ledger for %s: %w", ev.Key, err)
	}
	entry.InLedger = ledger != nil

	job, err := a.store.GetJob(ctx, entry.JobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		entry.Flags = append(entry.Flags, FlagNoJob)
		return entry, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", entry.JobID, err)
	}
	entry.JobStatus = job.Status
	entry.Amount = job.Amount

	v, err := a.reconciler.VerifyOnChain(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to verify %s: %w", job.ID, err)
	}
	entry.Outcome = v.Outcome
	entry.Confidence = v.Confidence
	entry.Evidence = v.Evidence

	switch {
	case job.Status == queue.StatusCompleted && !v.Satisfied():
		entry.Flags = append(entry.Flags, FlagMissingEvidence)
	case job.Status == queue.StatusFailed && v.Satisfied():
		entry.Flags = append(entry.Flags, FlagFailedWithEvidence)
	case job.Status == queue.StatusPending && v.Satisfied():
		entry.Flags = append(entry.Flags, FlagPendingWithEvidence)
	}
	return entry, nil
}
