package ethereum

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind labels a chain error for retry decisions and metrics
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network_error"
	KindNodeState   ErrorKind = "node_state_error"
	KindGas         ErrorKind = "gas_error"
	KindNonce       ErrorKind = "nonce_error"
	KindBalance     ErrorKind = "insufficient_balance"
	KindContract    ErrorKind = "contract_error"
	KindAlreadyDone ErrorKind = "already_processed"
	KindUnknown     ErrorKind = "unknown_error"
)

// ClassifyError reports whether err is worth retrying and what kind of error it is.
// Unknown errors are retried.
func ClassifyError(err error) (bool, ErrorKind) {
	if errors.Is(err, context.DeadlineExceeded) {
		return true, KindNetwork
	}
	msg := err.Error()

	if containsAny(msg, "burn already processed", "already unlocked") {
		return false, KindAlreadyDone
	}
	if containsAny(msg, "connection refused", "connection reset", "timeout", "context deadline exceeded",
		"timed out", "no response", "EOF", "429", "too many requests", "rate limit") {
		return true, KindNetwork
	}
	if containsAny(msg, "missing trie node", "layer stale", "state inconsistency",
		"receipt not found", "block not found", "header not found") {
		return true, KindNodeState
	}
	if containsAny(msg, "gas required exceeds allowance", "insufficient funds for gas",
		"gas price too low", "max fee per gas less than block base fee") {
		return true, KindGas
	}
	if containsAny(msg, "nonce too low", "nonce too high", "replacement transaction underpriced",
		"already known") {
		return true, KindNonce
	}
	// The relayer's fee balance can be topped up, so this is retried.
	if containsAny(msg, "insufficient funds", "insufficient balance") {
		return true, KindBalance
	}
	if containsAny(msg, "execution reverted", "invalid opcode", "out of gas") {
		return false, KindContract
	}
	return true, KindUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
