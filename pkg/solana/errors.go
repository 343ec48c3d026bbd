package solana

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// ErrorKind labels a destination chain error for retry decisions and metrics
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network_error"
	KindRateLimit   ErrorKind = "rate_limited"
	KindBlockhash   ErrorKind = "blockhash_error"
	KindBalance     ErrorKind = "insufficient_balance"
	KindFrozen      ErrorKind = "account_frozen"
	KindInstruction ErrorKind = "instruction_error"
	KindUnknown     ErrorKind = "unknown_error"
)

// tokenErrAccountFrozen is the token program's custom error code for a frozen account
const tokenErrAccountFrozen = 17

var customErrorPattern = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// ClassifyError reports whether an RPC or preflight error is worth retrying.
// Unknown errors are retried.
func ClassifyError(err error) (bool, ErrorKind) {
	if errors.Is(err, context.DeadlineExceeded) {
		return true, KindNetwork
	}
	if txErr, ok := preflightInstructionError(err); ok {
		return ClassifyTxError(txErr)
	}
	msg := err.Error()
	if code, ok := customProgramError(msg); ok {
		if code == tokenErrAccountFrozen {
			return false, KindFrozen
		}
		return false, KindInstruction
	}

	switch {
	case containsAny(msg, "429", "Too Many Requests", "rate limit"):
		return true, KindRateLimit
	case containsAny(msg, "connection refused", "connection reset", "timeout", "timed out", "EOF", "no such host", "502", "503"):
		return true, KindNetwork
	case containsAny(msg, "Blockhash not found", "BlockhashNotFound", "block height exceeded", "Node is behind"):
		return true, KindBlockhash
	case containsAny(msg, "insufficient funds for fee", "InsufficientFundsForFee", "insufficient lamports",
		"Attempt to debit an account but found no record of a prior credit"):
		return true, KindBalance
	case containsAny(msg, "custom program error", "invalid account data", "Program failed to complete"):
		return false, KindInstruction
	}
	return true, KindUnknown
}

// ClassifyTxError classifies the err field of a landed transaction, e.g.
// {"InstructionError":[1,{"Custom":17}]}. A landed failure never succeeds if resent,
// except when the fee payer ran out of lamports.
func ClassifyTxError(raw json.RawMessage) (bool, ErrorKind) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case "InsufficientFundsForFee", "InsufficientFundsForRent":
			return true, KindBalance
		case "BlockhashNotFound":
			return true, KindBlockhash
		}
		return false, KindUnknown
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false, KindUnknown
	}
	ixErr, ok := obj["InstructionError"]
	if !ok {
		return false, KindUnknown
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(ixErr, &parts); err != nil || len(parts) != 2 {
		return false, KindInstruction
	}
	var custom struct {
		Custom *uint32 `json:"Custom"`
	}
	if err := json.Unmarshal(parts[1], &custom); err == nil && custom.Custom != nil && *custom.Custom == tokenErrAccountFrozen {
		return false, KindFrozen
	}
	return false, KindInstruction
}

// preflightInstructionError returns the err field of a failed simulation when the node
// reports one for an instruction, e.g. {"err":{"InstructionError":[1,{"Custom":17}]}}
func preflightInstructionError(err error) (json.RawMessage, bool) {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Data == nil {
		return nil, false
	}
	raw, mErr := json.Marshal(rpcErr.Data)
	if mErr != nil {
		return nil, false
	}
	var data struct {
		Err json.RawMessage `json:"err"`
	}
	if json.Unmarshal(raw, &data) != nil || !isSet(data.Err) {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(data.Err, &obj) != nil {
		return nil, false
	}
	if _, ok := obj["InstructionError"]; !ok {
		return nil, false
	}
	return data.Err, true
}

// customProgramError extracts the code from "custom program error: 0x11"
func customProgramError(msg string) (uint64, bool) {
	m := customErrorPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	code, err := strconv.ParseUint(m[1], 16, 32)
	if err != nil {
		return 0, false
	}
	return code, true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
