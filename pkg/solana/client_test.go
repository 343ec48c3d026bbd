package solana

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/bridge-relayer/pkg/config"
)

func testDestinationConfig(mint PublicKey) *config.DestinationConfig {
	return &config.DestinationConfig{
		RPCURL:            "http://localhost:8899",
		Mint:              mint.String(),
		Decimals:          9,
		Commitment:        "finalized",
		RequestsPerSecond: 1000,
		SignaturePageSize: 2,
	}
}

func mintAccount(authority PublicKey, decimals int) map[string]any {
	return map[string]any{
		"context": map[string]any{"slot": 1},
		"value": map[string]any{
			"lamports":   1461600,
			"owner":      testTokenProgram.String(),
			"executable": false,
			"rentEpoch":  0,
			"data": map[string]any{
				"program": "spl-token",
				"parsed": map[string]any{
					"type": "mint",
					"info": map[string]any{
						"decimals":      decimals,
						"mintAuthority": authority.String(),
						"supply":        "0",
						"isInitialized": true,
					},
				},
				"space": 82,
			},
		},
	}
}

type clientFixture struct {
	client  *Client
	node    *mockNode
	relayer solanago.PrivateKey
	mint    PublicKey
}

func newClientFixture(t *testing.T, handler func(method string, params []any) (any, error)) *clientFixture {
	t.Helper()
	relayer := testKeypair(t, 1)
	mint := testKeypair(t, 3).PublicKey()
	node := newMockNode(t, func(method string, params []any) (any, error) {
		if method == "getAccountInfo" {
			return mintAccount(relayer.PublicKey(), 9), nil
		}
		if handler == nil {
			return nil, fmt.Errorf("unexpected call %s", method)
		}
		return handler(method, params)
	})

	c, err := NewClientWithRPC(context.Background(), node.client(), relayer, testDestinationConfig(mint), zap.NewNop())
	require.NoError(t, err)
	return &clientFixture{client: c, node: node, relayer: relayer, mint: mint}
}

func TestNewClient_ReadsMint(t *testing.T) {
	f := newClientFixture(t, nil)
	info := f.client.Mint()
	assert.Equal(t, f.mint, info.Address)
	assert.Equal(t, testTokenProgram, info.TokenProgram)
	assert.Equal(t, uint8(9), info.Decimals)
	assert.Equal(t, f.relayer.PublicKey(), f.client.Relayer())
}

func TestNewClient_RejectsMint(t *testing.T) {
	relayer := testKeypair(t, 1)
	stranger := testKeypair(t, 2)
	mint := testKeypair(t, 3).PublicKey()

	tests := []struct {
		name    string
		account any
	}{
		{"wrong authority", mintAccount(stranger.PublicKey(), 9)},
		{"wrong decimals", mintAccount(relayer.PublicKey(), 6)},
		{"missing account", map[string]any{"context": map[string]any{"slot": 1}, "value": nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := newMockNode(t, func(string, []any) (any, error) { return tt.account, nil })
			_, err := NewClientWithRPC(context.Background(), node.client(), relayer, testDestinationConfig(mint), zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func sigInfo(sig string, slot uint64, failed bool) map[string]any {
	info := map[string]any{"signature": sig, "slot": slot, "err": nil, "memo": nil, "confirmationStatus": "finalized"}
	if failed {
		info["err"] = map[string]any{"InstructionError": []any{0, "InvalidArgument"}}
	}
	return info
}

// beforeParam returns the pagination cursor of a getSignaturesForAddress call, "" on
// the first page
func beforeParam(params []any) string {
	opts, _ := params[1].(map[string]any)
	before, _ := opts["before"].(string)
	if before == (solanago.Signature{}).String() {
		return ""
	}
	return before
}

func TestFetchBurns_PagesAndFilters(t *testing.T) {
	s1, s2, s3, s4, s5 := testSignature(1), testSignature(2), testSignature(3), testSignature(4), testSignature(5)
	pages := map[string][]any{
		"": {sigInfo(s5, 50, false), sigInfo(s4, 40, false)},
		s4: {sigInfo(s3, 30, true), sigInfo(s2, 20, false)},
		s2: {sigInfo(s1, 10, false)},
	}
	var f *clientFixture
	f = newClientFixture(t, func(method string, params []any) (any, error) {
		switch method {
		case "getSignaturesForAddress":
			return pages[beforeParam(params)], nil
		case "getTransaction":
			sig := params[0].(string)
			raw := txJSON(sig, 0, "null", []string{
				memoIx("0x2222222222222222222222222222222222222222"),
				tokenIx("burn", f.mint.String(), "acct", "7"),
			}, nil)
			return json.RawMessage(raw), nil
		}
		return nil, fmt.Errorf("unexpected %s", method)
	})

	burns, err := f.client.FetchBurns(context.Background(), 15, 45)
	require.NoError(t, err)
	require.Len(t, burns, 2)
	assert.Equal(t, s2+":1", burns[0].EventKey(), "oldest first")
	assert.Equal(t, s4+":1", burns[1].EventKey())
	assert.Equal(t, 2, f.node.count("getTransaction"), "failed and out of range signatures are not fetched")
	assert.Equal(t, 3, f.node.count("getSignaturesForAddress"))
}

func TestFetchBurns_MissingTransaction(t *testing.T) {
	f := newClientFixture(t, func(method string, _ []any) (any, error) {
		switch method {
		case "getSignaturesForAddress":
			return []any{sigInfo(testSignature(1), 10, false)}, nil
		case "getTransaction":
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected %s", method)
	})

	_, err := f.client.FetchBurns(context.Background(), 0, 20)
	assert.Error(t, err, "a range is not complete until every transaction can be read")
}

func latestBlockhash(t *testing.T, lastValid uint64) map[string]any {
	return map[string]any{
		"context": map[string]any{"slot": 5},
		"value": map[string]any{
			"blockhash":            testKeypair(t, 8).PublicKey().String(),
			"lastValidBlockHeight": lastValid,
		},
	}
}

func TestPrepareMint(t *testing.T) {
	f := newClientFixture(t, func(method string, _ []any) (any, error) {
		if method == "getLatestBlockhash" {
			return latestBlockhash(t, 1234), nil
		}
		return nil, fmt.Errorf("unexpected %s", method)
	})
	owner := testKeypair(t, 2).PublicKey()

	prepared, err := f.client.PrepareMint(context.Background(), owner, 5_000, "bridge:s2d:0xabc:0")
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), prepared.LastValidBlockHeight)
	assert.Equal(t, prepared.Tx.Signatures[0].String(), prepared.Signature)

	msg := prepared.Tx.Message
	body, err := msg.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, prepared.Tx.Signatures[0].Verify(f.relayer.PublicKey(), body))
	assert.Equal(t, f.relayer.PublicKey(), msg.AccountKeys[0], "relayer pays the fee")
	assert.Equal(t, testKeypair(t, 8).PublicKey().String(), msg.RecentBlockhash.String())

	ata, err := f.client.AssociatedTokenAccount(owner)
	require.NoError(t, err)
	assert.Contains(t, msg.AccountKeys, ata)

	require.Len(t, msg.Instructions, 3)
	program := func(i int) PublicKey { return msg.AccountKeys[msg.Instructions[i].ProgramIDIndex] }
	assert.Equal(t, solanago.SPLAssociatedTokenAccountProgramID, program(0))
	assert.Equal(t, []byte{ataCreateIdempotent}, []byte(msg.Instructions[0].Data))

	assert.Equal(t, testTokenProgram, program(1))
	mintData := []byte(msg.Instructions[1].Data)
	require.Len(t, mintData, 9)
	assert.Equal(t, byte(7), mintData[0], "mint_to")
	assert.Equal(t, uint64(5_000), binary.LittleEndian.Uint64(mintData[1:]))

	assert.Equal(t, DefaultMemoProgramID, program(2))
	assert.Equal(t, []byte("bridge:s2d:0xabc:0"), []byte(msg.Instructions[2].Data))
}

func TestSend(t *testing.T) {
	var sent string
	f := newClientFixture(t, func(method string, params []any) (any, error) {
		switch method {
		case "getLatestBlockhash":
			return latestBlockhash(t, 10), nil
		case "sendTransaction":
			sent = params[0].(string)
			return testSignature(9), nil
		}
		return nil, fmt.Errorf("unexpected %s", method)
	})

	prepared, err := f.client.PrepareMint(context.Background(), testKeypair(t, 2).PublicKey(), 1, "m")
	require.NoError(t, err)
	sig, err := f.client.Send(context.Background(), prepared.Tx)
	require.NoError(t, err)
	assert.Equal(t, testSignature(9), sig)

	wire, err := base64.StdEncoding.DecodeString(sent)
	require.NoError(t, err)
	want, err := prepared.Tx.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, want, wire)
}

func TestSend_PreflightFailure(t *testing.T) {
	f := newClientFixture(t, func(method string, _ []any) (any, error) {
		switch method {
		case "getLatestBlockhash":
			return latestBlockhash(t, 10), nil
		case "sendTransaction":
			return nil, &rpcError{
				Code:    -32002,
				Message: "Transaction simulation failed: Error processing Instruction 1: custom program error: 0x11",
				Data: map[string]any{
					"err":  map[string]any{"InstructionError": []any{1, map[string]any{"Custom": 17}}},
					"logs": []string{"Program log: Error: Account is frozen"},
				},
			}
		}
		return nil, fmt.Errorf("unexpected %s", method)
	})

	prepared, err := f.client.PrepareMint(context.Background(), testKeypair(t, 2).PublicKey(), 1, "m")
	require.NoError(t, err)
	_, err = f.client.Send(context.Background(), prepared.Tx)
	require.Error(t, err)

	retryable, kind := ClassifyError(err)
	assert.False(t, retryable)
	assert.Equal(t, KindFrozen, kind)
}

func TestTxStatus(t *testing.T) {
	tests := []struct {
		name   string
		status any
		height uint64
		want   TxStatus
	}{
		{"unknown before expiry", nil, 100, TxPending},
		{"unknown after expiry", nil, 101, TxExpired},
		{"processed", map[string]any{"slot": 1, "err": nil, "confirmationStatus": "processed"}, 0, TxPending},
		{"finalized", map[string]any{"slot": 1, "err": nil, "confirmationStatus": "finalized"}, 0, TxConfirmed},
		{"failed", map[string]any{"slot": 1, "err": map[string]any{"InstructionError": []any{1, map[string]any{"Custom": 17}}}, "confirmationStatus": "finalized"}, 0, TxFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClientFixture(t, func(method string, _ []any) (any, error) {
				switch method {
				case "getSignatureStatuses":
					return map[string]any{"context": map[string]any{"slot": 1}, "value": []any{tt.status}}, nil
				case "getBlockHeight":
					return tt.height, nil
				}
				return nil, fmt.Errorf("unexpected %s", method)
			})

			status, txErr, err := f.client.TxStatus(context.Background(), testSignature(4), 100)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
			if tt.want == TxFailed {
				_, kind := ClassifyTxError(txErr)
				assert.Equal(t, KindFrozen, kind)
			}
		})
	}
}

func TestTxStatus_RPCError(t *testing.T) {
	f := newClientFixture(t, func(string, []any) (any, error) {
		return nil, &rpcError{Code: -32005, Message: "Node is behind by 42 slots"}
	})
	_, _, err := f.client.TxStatus(context.Background(), testSignature(4), 100)
	require.Error(t, err)
	retryable, kind := ClassifyError(err)
	assert.True(t, retryable)
	assert.Equal(t, KindBlockhash, kind)
}

func TestTxStatus_InvalidSignature(t *testing.T) {
	f := newClientFixture(t, nil)
	_, _, err := f.client.TxStatus(context.Background(), "not-a-signature", 100)
	assert.Error(t, err)
	assert.Zero(t, f.node.count("getSignatureStatuses"))
}

func TestRecentMints(t *testing.T) {
	var f *clientFixture
	f = newClientFixture(t, func(method string, params []any) (any, error) {
		switch method {
		case "getSignaturesForAddress":
			assert.Equal(t, float64(3), params[1].(map[string]any)["limit"])
			return []any{sigInfo(testSignature(2), 9, false), sigInfo(testSignature(1), 8, true)}, nil
		case "getTransaction":
			ata, _ := f.client.AssociatedTokenAccount(testKeypair(t, 2).PublicKey())
			return json.RawMessage(txJSON(params[0].(string), 9, "null", []string{
				tokenIx("mintTo", f.mint.String(), ata.String(), "44"),
				memoIx("bridge:s2d:0xdef:3"),
			}, nil)), nil
		}
		return nil, fmt.Errorf("unexpected %s", method)
	})

	ata, err := f.client.AssociatedTokenAccount(testKeypair(t, 2).PublicKey())
	require.NoError(t, err)
	mints, err := f.client.RecentMints(context.Background(), ata, 3)
	require.NoError(t, err)
	require.Len(t, mints, 1)
	assert.Equal(t, uint64(44), mints[0].Amount)
	assert.Equal(t, testSignature(2), mints[0].Signature)
	assert.Equal(t, []string{"bridge:s2d:0xdef:3"}, mints[0].Memos)
	assert.Equal(t, 1, f.node.count("getTransaction"), "failed signatures are skipped")
}
