package relayer

import (
	"context"
	"math/big"
	"strings"

	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

// Event is a confirmed source event that requests a transfer
type Event struct {
	// Key is the event's natural unique id within its direction
	Key      string
	TxRef    string
	Position uint64
	// Amount is in the smallest unit of the chain that emitted the event
	Amount    *big.Int
	Sender    string
	Recipient string
}

// EventSource scans one chain for bridge events
type EventSource interface {
	Name() string
	Direction() queue.Direction
	Head(ctx context.Context) (uint64, error)
	ConfirmationDepth() uint64
	// StartPosition is the first block or slot to scan when no position is stored
	StartPosition() uint64
	// MaxRange bounds the number of blocks or slots fetched in one call
	MaxRange() uint64
	// FetchEvents returns the events in [from, to], oldest first
	FetchEvents(ctx context.Context, from, to uint64) ([]*Event, error)
}

// TxState is the observed state of a submitted destination action
type TxState int

const (
	TxPending TxState = iota
	TxConfirmed
	TxFailed
	// TxDropped means the action can no longer land and may be replaced
	TxDropped
)

func (s TxState) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	case TxDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// TxResult is a status lookup result. Reason is set for TxFailed and is classified.
type TxResult struct {
	State  TxState
	Reason error
}

// PreparedTx is a signed action whose reference is known before broadcast
type PreparedTx struct {
	Ref string
	// Expiry is a chain-specific bound after which an unseen Ref can no longer land
	Expiry  uint64
	Payload any
}

// Target executes the destination action of one direction
type Target interface {
	Chain() string
	Direction() queue.Direction
	ValidateRecipient(recipient string) error
	Prepare(ctx context.Context, job *queue.Job) (*PreparedTx, error)
	Broadcast(ctx context.Context, tx *PreparedTx) error
	Status(ctx context.Context, ref string, expiry uint64) (*TxResult, error)
	// OperatingBalance is the relayer's fee balance in native smallest units
	OperatingBalance(ctx context.Context) (*big.Int, error)
	NativeDecimals() int32
}

// ProcessedChecker is implemented by targets whose chain records processed source events
type ProcessedChecker interface {
	IsProcessed(ctx context.Context, job *queue.Job) (bool, error)
}

// Action is a destination action found in a recipient's history
type Action struct {
	TxRef  string
	Amount *big.Int
	Memos  []string
}

// HistorySource is implemented by targets that can list recent actions to a recipient
type HistorySource interface {
	RecentActions(ctx context.Context, recipient string, window int) ([]*Action, error)
}

const actionMemoPrefix = "bridge:"

// ActionMemo is the tag attached to destination actions so they can be attributed to a job
func ActionMemo(jobID string) string {
	return actionMemoPrefix + jobID
}

// IsActionMemo reports whether memo is a relayer tag
func IsActionMemo(memo string) bool {
	return strings.HasPrefix(memo, actionMemoPrefix)
}
