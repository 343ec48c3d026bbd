package relayer

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"go.uber.org/zap"

	"github.com/chainsafe/bridge-relayer/internal/metrics"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

// Outcome is the answer to "has the destination action already happened?"
type Outcome string

const (
	OutcomeNotFound            Outcome = "not_found"
	OutcomeVerifiedByLedger    Outcome = "verified_by_ledger"
	OutcomeVerifiedByHeuristic Outcome = "verified_by_heuristic"
)

// Evidence names what a verification rests on
const (
	EvidenceLedger         = "ledger"
	EvidenceSubmission     = "submission"
	EvidenceDestinationTx  = "destination_tx"
	EvidenceSourceContract = "source_contract"
	EvidenceHistory        = "history"
)

// maxAmountOnlyConfidence caps heuristic matches that carry no memo naming the job
const maxAmountOnlyConfidence = 0.9

// Verification is a tagged reconciliation result. Heuristic results carry a confidence
// below or equal to 1 and deserve more caution than ledger results.
type Verification struct {
	Outcome    Outcome `json:"outcome"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
	TxRef      string  `json:"tx_ref,omitempty"`
}

// Satisfied reports whether the job needs no further action
func (v Verification) Satisfied() bool {
	return v.Outcome != OutcomeNotFound
}

// VerifiedBy maps the evidence to the value recorded on the completed job
func (v Verification) VerifiedBy() queue.VerifiedBy {
	switch v.Evidence {
	case EvidenceLedger:
		return queue.VerifiedByLedger
	case EvidenceSubmission, EvidenceDestinationTx:
		return queue.VerifiedByExecutor
	case EvidenceSourceContract:
		return queue.VerifiedByChain
	default:
		return queue.VerifiedByHeuristic
	}
}

var notFound = Verification{Outcome: OutcomeNotFound}

// HeuristicConfig bounds the history scan fallback
type HeuristicConfig struct {
	Enabled bool
	// Window is the number of most recent recipient transactions inspected
	Window int
	// Tolerance is the accepted amount difference in destination smallest units
	Tolerance uint64
}

// Reconciler decides whether a job's destination action already exists
type Reconciler struct {
	store     queue.Store
	targets   map[queue.Direction]Target
	heuristic HeuristicConfig
	logger    *zap.Logger
}

// NewReconciler creates a reconciler over the given targets
func NewReconciler(store queue.Store, targets []Target, heuristic HeuristicConfig, logger *zap.Logger) *Reconciler {
	byDir := make(map[queue.Direction]Target, len(targets))
	for _, t := range targets {
		byDir[t.Direction()] = t
	}
	return &Reconciler{
		store:     store,
		targets:   byDir,
		heuristic: heuristic,
		logger:    logger,
	}
}

// Verify checks, in order, the processed-id ledger, the job's own persisted submission and
// the destination chain.
func (r *Reconciler) Verify(ctx context.Context, job *queue.Job) (Verification, error) {
	entry, err := r.store.LookupLedger(ctx, job.Direction, job.SourceEventKey)
	if err != nil {
		return notFound, fmt.Errorf("failed to look up ledger: %w", err)
	}
	if entry != nil {
		v := Verification{Outcome: OutcomeVerifiedByLedger, Confidence: 1, Evidence: EvidenceLedger, TxRef: entry.DestinationTxRef}
		r.observe(job, v)
		return v, nil
	}

	target, ok := r.targets[job.Direction]
	if !ok {
		return notFound, fmt.Errorf("no target for direction %s", job.Direction)
	}

	if job.SubmittedTxRef != "" {
		res, err := target.Status(ctx, job.SubmittedTxRef, job.SubmittedExpiry)
		if err != nil {
			return notFound, fmt.Errorf("failed to check submission %s: %w", job.SubmittedTxRef, err)
		}
		if res.State == TxConfirmed {
			v := Verification{Outcome: OutcomeVerifiedByLedger, Confidence: 1, Evidence: EvidenceSubmission, TxRef: job.SubmittedTxRef}
			r.observe(job, v)
			return v, nil
		}
	}

	v, err := r.verifyChain(ctx, target, job)
	if err != nil {
		return notFound, err
	}
	r.observe(job, v)
	return v, nil
}

// VerifyOnChain ignores the ledger and looks only at chain state. Audits use it to confirm
// that completed jobs are backed by a destination action.
func (r *Reconciler) VerifyOnChain(ctx context.Context, job *queue.Job) (Verification, error) {
	target, ok := r.targets[job.Direction]
	if !ok {
		return notFound, fmt.Errorf("no target for direction %s", job.Direction)
	}
	for _, ref := range []string{job.DestinationTxRef, job.SubmittedTxRef} {
		if ref == "" {
			continue
		}
		res, err := target.Status(ctx, ref, math.MaxUint64)
		if err != nil {
			return notFound, fmt.Errorf("failed to check %s: %w", ref, err)
		}
		if res.State == TxConfirmed {
			return Verification{Outcome: OutcomeVerifiedByLedger, Confidence: 1, Evidence: EvidenceDestinationTx, TxRef: ref}, nil
		}
	}
	return r.verifyChain(ctx, target, job)
}

func (r *Reconciler) verifyChain(ctx context.Context, target Target, job *queue.Job) (Verification, error) {
	if checker, ok := target.(ProcessedChecker); ok {
		done, err := checker.IsProcessed(ctx, job)
		if err != nil {
			return notFound, fmt.Errorf("failed to query processed state: %w", err)
		}
		if done {
			return Verification{Outcome: OutcomeVerifiedByLedger, Confidence: 1, Evidence: EvidenceSourceContract}, nil
		}
		return notFound, nil
	}

	history, ok := target.(HistorySource)
	if !ok || !r.heuristic.Enabled {
		return notFound, nil
	}
	return r.scanHistory(ctx, history, job)
}

func (r *Reconciler) scanHistory(ctx context.Context, history HistorySource, job *queue.Job) (Verification, error) {
	amount, ok := new(big.Int).SetString(job.Amount, 10)
	if !ok {
		return notFound, Permanent("invalid_amount", fmt.Errorf("%w: %q", errInvalidAmount, job.Amount))
	}
	actions, err := history.RecentActions(ctx, job.Recipient, r.heuristic.Window)
	if err != nil {
		return notFound, fmt.Errorf("failed to scan recipient history: %w", err)
	}

	tag := ActionMemo(job.ID)
	best := notFound
	for _, a := range actions {
		confidence, ok := r.match(a, amount, tag)
		if ok && confidence > best.Confidence {
			best = Verification{Outcome: OutcomeVerifiedByHeuristic, Confidence: confidence, Evidence: EvidenceHistory, TxRef: a.TxRef}
		}
	}

	if best.Satisfied() {
		r.logger.Warn("Heuristic match found in recipient history",
			zap.String("job_id", job.ID),
			zap.String("tx_ref", best.TxRef),
			zap.Float64("confidence", best.Confidence),
			zap.Int("window", r.heuristic.Window))
	} else {
		r.logger.Debug("No match in recipient history window; older actions are not visible",
			zap.String("job_id", job.ID),
			zap.Int("window", r.heuristic.Window),
			zap.Int("inspected", len(actions)))
	}
	return best, nil
}

// match scores one historical action against the job. Actions tagged for another job
// never match.
func (r *Reconciler) match(a *Action, amount *big.Int, tag string) (float64, bool) {
	tagged := false
	for _, m := range a.Memos {
		if m == tag {
			return 1, true
		}
		if IsActionMemo(m) {
			tagged = true
		}
	}
	if tagged || a.Amount == nil {
		return 0, false
	}

	diff := new(big.Int).Sub(a.Amount, amount)
	diff.Abs(diff)
	tolerance := new(big.Int).SetUint64(r.heuristic.Tolerance)
	if diff.Cmp(tolerance) > 0 {
		return 0, false
	}

	d, _ := new(big.Float).SetInt(diff).Float64()
	confidence := 1 - d/(float64(r.heuristic.Tolerance)+1)
	if confidence > maxAmountOnlyConfidence {
		confidence = maxAmountOnlyConfidence
	}
	return confidence, true
}

func (r *Reconciler) observe(job *queue.Job, v Verification) {
	metrics.ReconcileOutcomes.WithLabelValues(string(job.Direction), string(v.Outcome)).Inc()
}
