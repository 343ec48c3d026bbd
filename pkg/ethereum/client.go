package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	gethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/chainsafe/bridge-relayer/pkg/config"
	"github.com/chainsafe/bridge-relayer/pkg/ethereum/contracts"
)

// RPC is the subset of ethclient.Client used by the relayer
type RPC interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q gethereum.FilterQuery) ([]types.Log, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	CallContract(ctx context.Context, call gethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	Close()
}

// Client talks to the source chain bridge contract
type Client struct {
	config     *config.SourceConfig
	rpc        RPC
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	logger     *zap.Logger

	bridgeAddress common.Address
	bridgeABI     *abi.ABI
	maxGasPrice   *big.Int
}

// NewClient dials the source chain and checks it serves the configured chain id
func NewClient(ctx context.Context, cfg *config.SourceConfig, logger *zap.Logger) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source RPC: %w", err)
	}

	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("failed to query source chain id: %w", err)
	}
	if chainID.Int64() != cfg.ChainID {
		rpc.Close()
		return nil, fmt.Errorf("source chain id mismatch: configured %d, endpoint reports %s", cfg.ChainID, chainID)
	}

	c, err := NewClientWithRPC(rpc, cfg, logger)
	if err != nil {
		rpc.Close()
		return nil, err
	}

	logger.Info("Connected to source chain",
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("bridge_contract", c.bridgeAddress.Hex()),
		zap.String("relayer_address", c.address.Hex()))
	return c, nil
}

// NewClientWithRPC builds a client on an existing RPC connection
func NewClientWithRPC(rpc RPC, cfg *config.SourceConfig, logger *zap.Logger) (*Client, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.RelayerPrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to load relayer private key: %w", err)
	}

	bridgeABI, err := contracts.LockBridgeMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("failed to parse bridge ABI: %w", err)
	}

	var maxGasPrice *big.Int
	if cfg.MaxGasPrice != "" {
		v, ok := new(big.Int).SetString(cfg.MaxGasPrice, 10)
		if !ok {
			return nil, fmt.Errorf("invalid max_gas_price %q", cfg.MaxGasPrice)
		}
		maxGasPrice = v
	}

	return &Client{
		config:        cfg,
		rpc:           rpc,
		privateKey:    privateKey,
		address:       crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:       big.NewInt(cfg.ChainID),
		logger:        logger,
		bridgeAddress: common.HexToAddress(cfg.BridgeContract),
		bridgeABI:     bridgeABI,
		maxGasPrice:   maxGasPrice,
	}, nil
}

// Close closes the RPC connection
func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

// Address returns the relayer account address
func (c *Client) Address() common.Address {
	return c.address
}

// Head returns the latest block number
func (c *Client) Head(ctx context.Context) (uint64, error) {
	n, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return n, nil
}

// FetchLocks returns the Locked events emitted in [from, to]
func (c *Client) FetchLocks(ctx context.Context, from, to uint64) ([]*LockEvent, error) {
	ev := c.bridgeABI.Events[contracts.EventLocked]
	logs, err := c.rpc.FilterLogs(ctx, gethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.bridgeAddress},
		Topics:    [][]common.Hash{{ev.ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter lock events [%d, %d]: %w", from, to, err)
	}

	events := make([]*LockEvent, 0, len(logs))
	for i := range logs {
		if logs[i].Removed {
			continue
		}
		lock, err := c.decodeLock(&logs[i])
		if err != nil {
			return nil, err
		}
		events = append(events, lock)
	}
	return events, nil
}

func (c *Client) decodeLock(l *types.Log) (*LockEvent, error) {
	ev := c.bridgeABI.Events[contracts.EventLocked]
	if len(l.Topics) != 3 || l.Topics[0] != ev.ID {
		return nil, fmt.Errorf("unexpected topics in lock log %s:%d", l.TxHash.Hex(), l.Index)
	}

	values, err := ev.Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack lock log %s:%d: %w", l.TxHash.Hex(), l.Index, err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected lock log payload in %s:%d", l.TxHash.Hex(), l.Index)
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("lock log %s:%d: amount is %T", l.TxHash.Hex(), l.Index, values[0])
	}
	recipient, ok := values[1].(string)
	if !ok {
		return nil, fmt.Errorf("lock log %s:%d: recipient is %T", l.TxHash.Hex(), l.Index, values[1])
	}

	return &LockEvent{
		Sender:      common.BytesToAddress(l.Topics[1].Bytes()),
		Amount:      amount,
		Recipient:   recipient,
		SequenceID:  new(big.Int).SetBytes(l.Topics[2].Bytes()),
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
		LogIndex:    l.Index,
	}, nil
}

// BuildUnlock signs an unlock transaction without sending it. The hash is known before
// broadcast so it can be persisted first. Callers serialise calls to keep nonces ordered.
func (c *Client) BuildUnlock(ctx context.Context, recipient common.Address, amount *big.Int, burnID [32]byte) (*types.Transaction, error) {
	data, err := c.bridgeABI.Pack(contracts.MethodUnlock, recipient, amount, burnID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack unlock call: %w", err)
	}

	nonce, err := c.rpc.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      c.config.GasLimit,
		To:       &c.bridgeAddress,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign unlock transaction: %w", err)
	}
	return signed, nil
}

func (c *Client) gasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	if c.maxGasPrice != nil && gasPrice.Cmp(c.maxGasPrice) > 0 {
		c.logger.Warn("Suggested gas price exceeds maximum",
			zap.String("suggested", gasPrice.String()),
			zap.String("max", c.maxGasPrice.String()))
		return new(big.Int).Set(c.maxGasPrice), nil
	}
	return gasPrice, nil
}

// Send broadcasts a signed transaction
func (c *Client) Send(ctx context.Context, tx *types.Transaction) error {
	if err := c.rpc.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to send transaction %s: %w", tx.Hash().Hex(), err)
	}
	return nil
}

// TxStatus looks up a transaction sent by the relayer
func (c *Client) TxStatus(ctx context.Context, hash common.Hash) (TxStatus, *types.Receipt, error) {
	receipt, err := c.rpc.TransactionReceipt(ctx, hash)
	switch {
	case err == nil:
		if receipt.Status == types.ReceiptStatusSuccessful {
			return TxConfirmed, receipt, nil
		}
		return TxReverted, receipt, nil
	case !errors.Is(err, gethereum.NotFound):
		return TxPending, nil, fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
	}

	_, _, err = c.rpc.TransactionByHash(ctx, hash)
	switch {
	case err == nil:
		// in the pool, or mined without an indexed receipt yet
		return TxPending, nil, nil
	case !errors.Is(err, gethereum.NotFound):
		return TxPending, nil, fmt.Errorf("failed to get transaction %s: %w", hash.Hex(), err)
	}

	// Unknown to the node: never broadcast, evicted, or replaced. A later unlock for the
	// same burn id is rejected by the contract, so re-sending cannot double spend.
	return TxDropped, nil, nil
}

// IsBurnProcessed asks the bridge contract whether burnID was already unlocked
func (c *Client) IsBurnProcessed(ctx context.Context, burnID [32]byte) (bool, error) {
	data, err := c.bridgeABI.Pack(contracts.MethodProcessedBurns, burnID)
	if err != nil {
		return false, fmt.Errorf("failed to pack processedBurns call: %w", err)
	}
	out, err := c.rpc.CallContract(ctx, gethereum.CallMsg{To: &c.bridgeAddress, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("failed to call processedBurns: %w", err)
	}
	values, err := c.bridgeABI.Unpack(contracts.MethodProcessedBurns, out)
	if err != nil {
		return false, fmt.Errorf("failed to unpack processedBurns result: %w", err)
	}
	if len(values) != 1 {
		return false, fmt.Errorf("unexpected processedBurns result length %d", len(values))
	}
	done, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected processedBurns result type %T", values[0])
	}
	return done, nil
}

// Balance returns the relayer account balance in wei
func (c *Client) Balance(ctx context.Context) (*big.Int, error) {
	bal, err := c.rpc.BalanceAt(ctx, c.address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get relayer balance: %w", err)
	}
	return bal, nil
}

// BurnID derives the bytes32 identifier the bridge contract records for a destination burn
func BurnID(eventKey string) [32]byte {
	return crypto.Keccak256Hash([]byte(eventKey))
}
