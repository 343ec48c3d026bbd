package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chainsafe/bridge-relayer/pkg/config"
)

// Client talks to the destination chain on behalf of the relayer
type Client struct {
	config     *config.DestinationConfig
	rpc        *rpc.Client
	limiter    *rate.Limiter
	keypair    solanago.PrivateKey
	commitment rpc.CommitmentType
	logger     *zap.Logger

	mint        MintInfo
	memoProgram PublicKey
}

// NewClient connects to the destination RPC endpoint, loads the relayer keypair and reads
// the mint account. The relayer must be the mint authority.
func NewClient(ctx context.Context, cfg *config.DestinationConfig, logger *zap.Logger) (*Client, error) {
	keypair, err := LoadKeypair(cfg.RelayerKeypair)
	if err != nil {
		return nil, fmt.Errorf("failed to load relayer keypair: %w", err)
	}

	conn := rpc.New(cfg.RPCURL)
	c, err := NewClientWithRPC(ctx, conn, keypair, cfg, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("Connected to destination chain",
		zap.String("mint", c.mint.Address.String()),
		zap.String("token_program", c.mint.TokenProgram.String()),
		zap.Uint8("decimals", c.mint.Decimals),
		zap.String("relayer_address", keypair.PublicKey().String()))
	return c, nil
}

// NewClientWithRPC builds a client on an existing RPC client
func NewClientWithRPC(ctx context.Context, conn *rpc.Client, keypair solanago.PrivateKey, cfg *config.DestinationConfig, logger *zap.Logger) (*Client, error) {
	mint, err := ParsePublicKey(cfg.Mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint: %w", err)
	}
	memoProgram := DefaultMemoProgramID
	if cfg.MemoProgram != "" {
		if memoProgram, err = ParsePublicKey(cfg.MemoProgram); err != nil {
			return nil, fmt.Errorf("invalid memo program: %w", err)
		}
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	c := &Client{
		config:      cfg,
		rpc:         conn,
		limiter:     rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		keypair:     keypair,
		commitment:  rpc.CommitmentType(cfg.Commitment),
		logger:      logger,
		memoProgram: memoProgram,
	}

	info, err := c.GetMint(ctx, mint)
	if err != nil {
		return nil, err
	}
	if info.MintAuthority != keypair.PublicKey().String() {
		return nil, fmt.Errorf("relayer %s is not the mint authority of %s (authority %q)",
			keypair.PublicKey(), mint, info.MintAuthority)
	}
	if cfg.Decimals != 0 && int32(info.Decimals) != cfg.Decimals {
		return nil, fmt.Errorf("mint %s has %d decimals, configured %d", mint, info.Decimals, cfg.Decimals)
	}
	c.mint = *info
	return c, nil
}

// Close closes the RPC connection
func (c *Client) Close() {
	if err := c.rpc.Close(); err != nil {
		c.logger.Debug("Failed to close destination RPC", zap.Error(err))
	}
}

// Mint returns the bridged mint
func (c *Client) Mint() MintInfo {
	return c.mint
}

// Relayer returns the fee payer and mint authority address
func (c *Client) Relayer() PublicKey {
	return c.keypair.PublicKey()
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// Head returns the current slot at the configured commitment
func (c *Client) Head(ctx context.Context) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	slot, err := c.rpc.GetSlot(ctx, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("getSlot: %w", err)
	}
	return slot, nil
}

// BlockHeight returns the current block height at the configured commitment
func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	height, err := c.rpc.GetBlockHeight(ctx, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("getBlockHeight: %w", err)
	}
	return height, nil
}

// GetMint reads a mint account. The owning program is the token program to use with it.
func (c *Client) GetMint(ctx context.Context, mint PublicKey) (*MintInfo, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, mint, &rpc.GetAccountInfoOpts{
		Encoding:   solanago.EncodingJSONParsed,
		Commitment: c.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (res == nil || res.Value == nil)) {
		return nil, fmt.Errorf("mint account %s not found", mint)
	}
	if err != nil {
		return nil, fmt.Errorf("getAccountInfo: %w", err)
	}

	var data parsedMintData
	if res.Value.Data == nil {
		return nil, fmt.Errorf("account %s has no data", mint)
	}
	if err := json.Unmarshal(res.Value.Data.GetRawJSON(), &data); err != nil || data.Parsed.Type != "mint" {
		return nil, fmt.Errorf("account %s is not a token mint", mint)
	}

	info := &MintInfo{
		Address:       mint,
		TokenProgram:  res.Value.Owner,
		Decimals:      data.Parsed.Info.Decimals,
		Supply:        data.Parsed.Info.Supply,
		IsInitialized: data.Parsed.Info.IsInitialized,
	}
	if data.Parsed.Info.MintAuthority != nil {
		info.MintAuthority = *data.Parsed.Info.MintAuthority
	}
	return info, nil
}

// Balance returns the relayer's lamport balance
func (c *Client) Balance(ctx context.Context) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	res, err := c.rpc.GetBalance(ctx, c.keypair.PublicKey(), c.commitment)
	if err != nil {
		return 0, fmt.Errorf("getBalance: %w", err)
	}
	return res.Value, nil
}

// SignaturesForAddress returns up to limit signatures for address, newest first, older
// than before when it is set.
func (c *Client) SignaturesForAddress(ctx context.Context, address PublicKey, before solanago.Signature, limit int) ([]*rpc.TransactionSignature, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	res, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, address, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Before:     before,
		Commitment: c.commitment,
	})
	if err != nil {
		return nil, fmt.Errorf("getSignaturesForAddress: %w", err)
	}
	return res, nil
}

// GetTransaction fetches a transaction in jsonParsed encoding. It returns nil when the
// node does not have it.
func (c *Client) GetTransaction(ctx context.Context, signature solanago.Signature) (*TransactionResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var res *TransactionResult
	err := c.rpc.RPCCallForInto(ctx, &res, "getTransaction", []any{
		signature.String(),
		map[string]any{
			"encoding":                       solanago.EncodingJSONParsed,
			"commitment":                     c.commitment,
			"maxSupportedTransactionVersion": 0,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getTransaction: %w", err)
	}
	return res, nil
}

// FetchBurns returns burns of the bridged mint in slots (from, to]. Signatures are paged
// newest first until a slot at or below from is reached.
func (c *Client) FetchBurns(ctx context.Context, from, to uint64) ([]*BurnEvent, error) {
	var (
		before solanago.Signature
		burns  []*BurnEvent
	)
	pageSize := c.config.SignaturePageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	for {
		page, err := c.SignaturesForAddress(ctx, c.mint.Address, before, pageSize)
		if err != nil {
			return nil, err
		}
		done := len(page) < pageSize
		for _, info := range page {
			if info.Slot <= from {
				done = true
				break
			}
			if info.Slot > to || info.Err != nil {
				continue
			}
			tx, err := c.GetTransaction(ctx, info.Signature)
			if err != nil {
				return nil, err
			}
			if tx == nil {
				return nil, fmt.Errorf("transaction %s not available yet", info.Signature)
			}
			found, err := ParseBurns(tx, c.mint.Address)
			if err != nil {
				return nil, err
			}
			burns = append(burns, found...)
		}
		if done || len(page) == 0 {
			break
		}
		before = page[len(page)-1].Signature
	}

	// oldest first
	for i, j := 0, len(burns)-1; i < j; i, j = i+1, j-1 {
		burns[i], burns[j] = burns[j], burns[i]
	}
	return burns, nil
}

// RecentMints returns mints of the bridged mint into account among the account's most
// recent window transactions, newest first.
func (c *Client) RecentMints(ctx context.Context, account PublicKey, window int) ([]*MintRecord, error) {
	var (
		before solanago.Signature
		seen   int
		mints  []*MintRecord
	)
	for seen < window {
		limit := min(window-seen, 1000)
		page, err := c.SignaturesForAddress(ctx, account, before, limit)
		if err != nil {
			return nil, err
		}
		for _, info := range page {
			seen++
			if info.Err != nil {
				continue
			}
			tx, err := c.GetTransaction(ctx, info.Signature)
			if err != nil {
				return nil, err
			}
			found, err := ParseMints(tx, c.mint.Address, account)
			if err != nil {
				return nil, err
			}
			mints = append(mints, found...)
		}
		if len(page) < limit {
			break
		}
		before = page[len(page)-1].Signature
	}
	return mints, nil
}

// AssociatedTokenAccount returns owner's token account for the bridged mint
func (c *Client) AssociatedTokenAccount(owner PublicKey) (PublicKey, error) {
	return FindAssociatedTokenAddress(owner, c.mint.Address, c.mint.TokenProgram)
}

// PreparedMint is a signed, not yet broadcast mint transaction
type PreparedMint struct {
	Tx                   *Transaction
	Signature            string
	LastValidBlockHeight uint64
}

// PrepareMint builds and signs a transaction that creates owner's token account if needed,
// mints amount into it and tags it with memo.
func (c *Client) PrepareMint(ctx context.Context, owner PublicKey, amount uint64, text string) (*PreparedMint, error) {
	ata, err := c.AssociatedTokenAccount(owner)
	if err != nil {
		return nil, err
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	bh, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return nil, fmt.Errorf("getLatestBlockhash: %w", err)
	}

	relayer := c.keypair.PublicKey()
	mintIx, err := mintTo(c.mint.TokenProgram, c.mint.Address, ata, relayer, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to build mint instruction: %w", err)
	}
	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{
			createAssociatedTokenAccountIdempotent(relayer, ata, owner, c.mint.Address, c.mint.TokenProgram),
			mintIx,
			memo(c.memoProgram, text),
		},
		bh.Value.Blockhash,
		solanago.TransactionPayer(relayer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build mint transaction: %w", err)
	}
	_, err = tx.Sign(func(key PublicKey) *solanago.PrivateKey {
		if key.Equals(relayer) {
			return &c.keypair
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign mint transaction: %w", err)
	}

	return &PreparedMint{
		Tx:                   tx,
		Signature:            tx.Signatures[0].String(),
		LastValidBlockHeight: bh.Value.LastValidBlockHeight,
	}, nil
}

// Send broadcasts a signed transaction. Preflight runs at the configured commitment.
func (c *Client) Send(ctx context.Context, tx *Transaction) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return "", fmt.Errorf("sendTransaction: %w", err)
	}
	return sig.String(), nil
}

// TxStatus reports the state of signature. lastValidBlockHeight bounds how long an unknown
// signature may still land.
func (c *Client) TxStatus(ctx context.Context, signature string, lastValidBlockHeight uint64) (TxStatus, json.RawMessage, error) {
	sig, err := solanago.SignatureFromBase58(signature)
	if err != nil {
		return TxPending, nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}
	if err := c.wait(ctx); err != nil {
		return TxPending, nil, err
	}
	res, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return TxPending, nil, fmt.Errorf("getSignatureStatuses: %w", err)
	}

	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		height, err := c.BlockHeight(ctx)
		if err != nil {
			return TxPending, nil, err
		}
		if height > lastValidBlockHeight {
			return TxExpired, nil, nil
		}
		return TxPending, nil, nil
	}

	st := res.Value[0]
	if st.Err != nil {
		raw, err := json.Marshal(st.Err)
		if err != nil {
			return TxFailed, nil, nil
		}
		return TxFailed, raw, nil
	}
	if meetsCommitment(string(st.ConfirmationStatus), c.config.Commitment) {
		return TxConfirmed, nil, nil
	}
	return TxPending, nil, nil
}

func meetsCommitment(status, want string) bool {
	rank := map[string]int{"processed": 1, "confirmed": 2, "finalized": 3}
	return rank[status] >= rank[want] && rank[status] > 0
}
