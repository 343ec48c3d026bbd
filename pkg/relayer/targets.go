package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/chainsafe/bridge-relayer/internal/metrics"
	"github.com/chainsafe/bridge-relayer/pkg/ethereum"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
	"github.com/chainsafe/bridge-relayer/pkg/solana"
)

// MintClient is the destination chain surface used to mint
type MintClient interface {
	AssociatedTokenAccount(owner solana.PublicKey) (solana.PublicKey, error)
	PrepareMint(ctx context.Context, owner solana.PublicKey, amount uint64, memo string) (*solana.PreparedMint, error)
	Send(ctx context.Context, tx *solana.Transaction) (string, error)
	TxStatus(ctx context.Context, signature string, lastValidBlockHeight uint64) (solana.TxStatus, json.RawMessage, error)
	Balance(ctx context.Context) (uint64, error)
	RecentMints(ctx context.Context, account solana.PublicKey, window int) ([]*solana.MintRecord, error)
}

// MintTarget mints on the destination chain for source locks
type MintTarget struct {
	client MintClient
	logger *zap.Logger
}

// NewMintTarget creates the mint target
func NewMintTarget(client MintClient, logger *zap.Logger) *MintTarget {
	return &MintTarget{client: client, logger: logger}
}

func (t *MintTarget) Chain() string { return "solana" }
func (t *MintTarget) Direction() queue.Direction { return queue.DirectionSourceToDestination }
func (t *MintTarget) NativeDecimals() int32 { return 9 }

// ValidateRecipient accepts a base58 wallet address
func (t *MintTarget) ValidateRecipient(recipient string) error {
	pk, err := solana.ParsePublicKey(recipient)
	if err != nil {
		return err
	}
	if pk.IsZero() {
		return fmt.Errorf("zero address")
	}
	return nil
}

// Prepare builds the create-account-if-absent, mint and memo transaction
func (t *MintTarget) Prepare(ctx context.Context, job *queue.Job) (*PreparedTx, error) {
	owner, err := solana.ParsePublicKey(job.Recipient)
	if err != nil {
		return nil, Permanent("invalid_recipient", err)
	}
	amount, err := strconv.ParseUint(job.Amount, 10, 64)
	if err != nil {
		return nil, Permanent("invalid_amount", fmt.Errorf("%w: %q", errInvalidAmount, job.Amount))
	}

	prepared, err := t.client.PrepareMint(ctx, owner, amount, ActionMemo(job.ID))
	if err != nil {
		return nil, classifySolana(err)
	}
	return &PreparedTx{Ref: prepared.Signature, Expiry: prepared.LastValidBlockHeight, Payload: prepared.Tx}, nil
}

func (t *MintTarget) Broadcast(ctx context.Context, tx *PreparedTx) error {
	signed, ok := tx.Payload.(*solana.Transaction)
	if !ok {
		return Permanent("invalid_payload", fmt.Errorf("unexpected payload %T", tx.Payload))
	}
	sig, err := t.client.Send(ctx, signed)
	if err != nil {
		return classifySolana(err)
	}
	if sig != tx.Ref {
		t.logger.Warn("Node returned a different signature", zap.String("expected", tx.Ref), zap.String("returned", sig))
	}
	return nil
}

func (t *MintTarget) Status(ctx context.Context, ref string, expiry uint64) (*TxResult, error) {
	status, txErr, err := t.client.TxStatus(ctx, ref, expiry)
	if err != nil {
		return nil, classifySolana(err)
	}
	switch status {
	case solana.TxConfirmed:
		return &TxResult{State: TxConfirmed}, nil
	case solana.TxFailed:
		retryable, kind := solana.ClassifyTxError(txErr)
		reason := fmt.Errorf("transaction error %s", string(txErr))
		if retryable {
			return &TxResult{State: TxFailed, Reason: Transient(string(kind), reason)}, nil
		}
		return &TxResult{State: TxFailed, Reason: Permanent(string(kind), reason)}, nil
	case solana.TxExpired:
		return &TxResult{State: TxDropped}, nil
	default:
		return &TxResult{State: TxPending}, nil
	}
}

func (t *MintTarget) OperatingBalance(ctx context.Context) (*big.Int, error) {
	lamports, err := t.client.Balance(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(lamports), nil
}

// RecentActions lists mints into the recipient's associated token account
func (t *MintTarget) RecentActions(ctx context.Context, recipient string, window int) ([]*Action, error) {
	owner, err := solana.ParsePublicKey(recipient)
	if err != nil {
		return nil, Permanent("invalid_recipient", err)
	}
	ata, err := t.client.AssociatedTokenAccount(owner)
	if err != nil {
		return nil, err
	}
	mints, err := t.client.RecentMints(ctx, ata, window)
	if err != nil {
		return nil, classifySolana(err)
	}
	actions := make([]*Action, 0, len(mints))
	for _, m := range mints {
		actions = append(actions, &Action{
			TxRef:  m.Signature,
			Amount: new(big.Int).SetUint64(m.Amount),
			Memos:  m.Memos,
		})
	}
	return actions, nil
}

func classifySolana(err error) error {
	retryable, kind := solana.ClassifyError(err)
	if retryable {
		return Transient(string(kind), err)
	}
	return Permanent(string(kind), err)
}

// UnlockClient is the source chain surface used to unlock
type UnlockClient interface {
	BuildUnlock(ctx context.Context, recipient common.Address, amount *big.Int, burnID [32]byte) (*types.Transaction, error)
	Send(ctx context.Context, tx *types.Transaction) error
	TxStatus(ctx context.Context, hash common.Hash) (ethereum.TxStatus, *types.Receipt, error)
	IsBurnProcessed(ctx context.Context, burnID [32]byte) (bool, error)
	Balance(ctx context.Context) (*big.Int, error)
}

// UnlockTarget unlocks on the source chain for destination burns. The bridge contract
// records every burn id it has unlocked.
type UnlockTarget struct {
	client UnlockClient
}

// NewUnlockTarget creates the unlock target
func NewUnlockTarget(client UnlockClient) *UnlockTarget {
	return &UnlockTarget{client: client}
}

func (t *UnlockTarget) Chain() string { return "ethereum" }
func (t *UnlockTarget) Direction() queue.Direction { return queue.DirectionDestinationToSource }
func (t *UnlockTarget) NativeDecimals() int32 { return 18 }

// ValidateRecipient accepts a non-zero 0x address. Mixed case addresses must carry a valid checksum.
func (t *UnlockTarget) ValidateRecipient(recipient string) error {
	if !strings.HasPrefix(recipient, "0x") || !common.IsHexAddress(recipient) {
		return fmt.Errorf("not a hex address")
	}
	addr := common.HexToAddress(recipient)
	if addr == (common.Address{}) {
		return fmt.Errorf("zero address")
	}
	body := recipient[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex() != recipient {
		return fmt.Errorf("bad checksum")
	}
	return nil
}

func (t *UnlockTarget) Prepare(ctx context.Context, job *queue.Job) (*PreparedTx, error) {
	amount, ok := new(big.Int).SetString(job.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, Permanent("invalid_amount", fmt.Errorf("%w: %q", errInvalidAmount, job.Amount))
	}
	tx, err := t.client.BuildUnlock(ctx, common.HexToAddress(job.Recipient), amount, ethereum.BurnID(job.SourceEventKey))
	if err != nil {
		return nil, classifyEthereum(err)
	}
	return &PreparedTx{Ref: tx.Hash().Hex(), Payload: tx}, nil
}

func (t *UnlockTarget) Broadcast(ctx context.Context, tx *PreparedTx) error {
	signed, ok := tx.Payload.(*types.Transaction)
	if !ok {
		return Permanent("invalid_payload", fmt.Errorf("unexpected payload %T", tx.Payload))
	}
	if err := t.client.Send(ctx, signed); err != nil {
		return classifyEthereum(err)
	}
	return nil
}

func (t *UnlockTarget) Status(ctx context.Context, ref string, _ uint64) (*TxResult, error) {
	status, receipt, err := t.client.TxStatus(ctx, common.HexToHash(ref))
	if err != nil {
		return nil, classifyEthereum(err)
	}
	switch status {
	case ethereum.TxConfirmed:
		if receipt != nil {
			metrics.GasUsed.Observe(float64(receipt.GasUsed))
		}
		return &TxResult{State: TxConfirmed}, nil
	case ethereum.TxReverted:
		return &TxResult{
			State:  TxFailed,
			Reason: Permanent(string(ethereum.KindContract), fmt.Errorf("unlock %s reverted", ref)),
		}, nil
	case ethereum.TxDropped:
		return &TxResult{State: TxDropped}, nil
	default:
		return &TxResult{State: TxPending}, nil
	}
}

func (t *UnlockTarget) OperatingBalance(ctx context.Context) (*big.Int, error) {
	return t.client.Balance(ctx)
}

// IsProcessed asks the bridge contract whether the job's burn was already unlocked
func (t *UnlockTarget) IsProcessed(ctx context.Context, job *queue.Job) (bool, error) {
	done, err := t.client.IsBurnProcessed(ctx, ethereum.BurnID(job.SourceEventKey))
	if err != nil {
		return false, classifyEthereum(err)
	}
	return done, nil
}

func classifyEthereum(err error) error {
	retryable, kind := ethereum.ClassifyError(err)
	if retryable {
		return Transient(string(kind), err)
	}
	return Permanent(string(kind), err)
}
