package relayer

import (
	"context"
	"math/big"
	"strings"

	"github.com/chainsafe/bridge-relayer/pkg/config"
	"github.com/chainsafe/bridge-relayer/pkg/ethereum"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
	"github.com/chainsafe/bridge-relayer/pkg/solana"
)

// LockScanner reads lock events from the source chain
type LockScanner interface {
	Head(ctx context.Context) (uint64, error)
	FetchLocks(ctx context.Context, from, to uint64) ([]*ethereum.LockEvent, error)
}

// LockSource is the EventSource for locks on the source chain
type LockSource struct {
	client LockScanner
	config *config.SourceConfig
}

// NewLockSource creates the source chain event source
func NewLockSource(client LockScanner, cfg *config.SourceConfig) *LockSource {
	return &LockSource{client: client, config: cfg}
}

func (s *LockSource) Name() string { return "source_locks" }
func (s *LockSource) Direction() queue.Direction { return queue.DirectionSourceToDestination }
func (s *LockSource) ConfirmationDepth() uint64 { return s.config.ConfirmationBlocks }
func (s *LockSource) StartPosition() uint64 { return s.config.StartBlock }
func (s *LockSource) MaxRange() uint64 { return s.config.MaxBlockRange }
func (s *LockSource) Head(ctx context.Context) (uint64, error) { return s.client.Head(ctx) }

func (s *LockSource) FetchEvents(ctx context.Context, from, to uint64) ([]*Event, error) {
	locks, err := s.client.FetchLocks(ctx, from, to)
	if err != nil {
		return nil, err
	}
	events := make([]*Event, 0, len(locks))
	for _, l := range locks {
		events = append(events, &Event{
			Key:       l.SequenceID.String(),
			TxRef:     l.TxHash.Hex(),
			Position:  l.BlockNumber,
			Amount:    l.Amount,
			Sender:    l.Sender.Hex(),
			Recipient: strings.TrimSpace(l.Recipient),
		})
	}
	return events, nil
}

// BurnScanner reads burns of the bridged mint from the destination chain
type BurnScanner interface {
	Head(ctx context.Context) (uint64, error)
	FetchBurns(ctx context.Context, from, to uint64) ([]*solana.BurnEvent, error)
}

// BurnSource is the EventSource for burns on the destination chain
type BurnSource struct {
	client BurnScanner
	config *config.DestinationConfig
}

// NewBurnSource creates the destination chain event source
func NewBurnSource(client BurnScanner, cfg *config.DestinationConfig) *BurnSource {
	return &BurnSource{client: client, config: cfg}
}

func (s *BurnSource) Name() string { return "destination_burns" }
func (s *BurnSource) Direction() queue.Direction { return queue.DirectionDestinationToSource }
func (s *BurnSource) ConfirmationDepth() uint64 { return s.config.ConfirmationSlots }
func (s *BurnSource) StartPosition() uint64 { return s.config.StartSlot }

// MaxRange is unbounded; signatures are paged by the client
func (s *BurnSource) MaxRange() uint64 { return 0 }
func (s *BurnSource) Head(ctx context.Context) (uint64, error) { return s.client.Head(ctx) }

func (s *BurnSource) FetchEvents(ctx context.Context, from, to uint64) ([]*Event, error) {
	// FetchBurns takes a half-open range (after, to]
	after := from
	if after > 0 {
		after--
	}
	burns, err := s.client.FetchBurns(ctx, after, to)
	if err != nil {
		return nil, err
	}
	events := make([]*Event, 0, len(burns))
	for _, b := range burns {
		events = append(events, &Event{
			Key:       b.EventKey(),
			TxRef:     b.Signature,
			Position:  b.Slot,
			Amount:    new(big.Int).SetUint64(b.Amount),
			Sender:    b.Owner,
			Recipient: strings.TrimSpace(b.Memo),
		})
	}
	return events, nil
}
